package model

import (
	"time"
)

// Visibility tells the recipient why it is allowed to see a device
// location. It is computed per recipient during fan-out, never stored.
type Visibility string

const (
	VisibilityOwn         Visibility = "own"
	VisibilityShared      Visibility = "shared"
	VisibilityFriend      Visibility = "friend"
	VisibilityGroupMember Visibility = "group_member"
)

const (
	RoleAdmin = "A"
	RoleUser  = "U"
)

type User struct {
	UUID      string     `json:"uuid"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	Nickname  string     `json:"nickname"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type Device struct {
	IMEI      string     `json:"imei"`
	OwnerUUID string     `json:"owner_uuid"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type Friend struct {
	UUID          string    `json:"uuid"`
	Email         string    `json:"email"`
	Nickname      string    `json:"nickname"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	RequestSentBy string    `json:"request_sent_by"`
}

const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
)

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserLocation is one observation of a principal, enriched with the
// display fields recipients need. Optional readings stay nil when the
// reporter never sent them.
type UserLocation struct {
	UUID      string    `json:"uuid"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Battery   *int      `json:"battery"`
	Accuracy  *float64  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceLocation is one observation of a collar device. Latitude and
// longitude are nil for devices that have never reported.
type DeviceLocation struct {
	DeviceID       string     `json:"device_id"`
	OwnerUUID      string     `json:"owner_uuid"`
	OwnerEmail     string     `json:"owner_email"`
	OwnerNickname  string     `json:"owner_nickname"`
	DeviceName     string     `json:"device_name"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	Altitude       *float64   `json:"altitude"`
	Speed          *float64   `json:"speed"`
	Battery        *int       `json:"battery"`
	BatteryMV      *int       `json:"battery_mv"`
	Bark           *int       `json:"bark"`
	Satellites     *int       `json:"satellites"`
	LTESignal      *int       `json:"lte_signal"`
	LoraRSSI       *int       `json:"lora_rssi"`
	ConnectionType *string    `json:"connection_type"`
	Time           *string    `json:"time"`
	Timestamp      time.Time  `json:"timestamp"`
	Type           Visibility `json:"type"`
}

// Retag returns a copy tagged for one audience segment. The same update
// is re-tagged for each segment before dispatch.
func (d DeviceLocation) Retag(v Visibility) DeviceLocation {
	d.Type = v
	return d
}

// UserLocationRecord is the canonical normalized form of a principal's
// self-reported position, ready for the location cache.
type UserLocationRecord struct {
	UUID      string
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Speed     *float64
	Battery   *int
	Accuracy  *float64
	Timestamp time.Time
}

// DeviceLocationRecord is the canonical normalized form of a device
// observation, whichever source it arrived from. Fields the source did
// not carry stay nil and must not clobber retained values.
type DeviceLocationRecord struct {
	DeviceID       string
	Latitude       *float64
	Longitude      *float64
	Altitude       *float64
	Speed          *float64
	Battery        *int
	BatteryMV      *int
	Bark           *int
	Satellites     *int
	LTESignal      *int
	LoraRSSI       *int
	ConnectionType *string
	Time           *string
	Timestamp      time.Time
}
