package model

import (
	"encoding/json"
)

// Inbound message types accepted on the phone socket.
const (
	MsgUserLocation   = "user_location"
	MsgDeviceLocation = "device_location"
)

// Outbound push types.
const (
	MsgUserLocations   = "user_locations"
	MsgDeviceLocations = "device_locations"
	MsgGroups          = "groups"
	MsgFriendRequest   = "friend_request"
	MsgFriendAccepted  = "friend_accepted"
	MsgGroupInvitation = "group_invitation"
	MsgDeviceShared    = "device_shared"
)

// Envelope is the wire frame of every socket message in either
// direction: a type tag and a type-dependent payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UserLocationReport is the data payload of a user_location message.
// Latitude and longitude are pointers so that a missing field fails
// validation instead of decoding as zero.
type UserLocationReport struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Altitude  *float64 `json:"altitude"`
	Speed     *float64 `json:"speed"`
	Battery   *int     `json:"battery"`
	Accuracy  *float64 `json:"accuracy"`
}

// DeviceLocationReport is the data payload of a device_location
// message. Older firmware sends imei/lat/lon instead of
// device_id/latitude/longitude; both spellings are accepted.
type DeviceLocationReport struct {
	DeviceID       string   `json:"device_id"`
	IMEI           string   `json:"imei"`
	Latitude       *float64 `json:"latitude"`
	Lat            *float64 `json:"lat"`
	Longitude      *float64 `json:"longitude"`
	Lon            *float64 `json:"lon"`
	Altitude       *float64 `json:"altitude"`
	Speed          *float64 `json:"speed"`
	Battery        *int     `json:"battery"`
	BatteryMV      *int     `json:"battery_mv"`
	Bark           *int     `json:"bark"`
	Satellites     *int     `json:"satellites"`
	LTESignal      *int     `json:"lte_signal"`
	LoraRSSI       *int     `json:"lora_rssi"`
	ConnectionType *string  `json:"connection_type"`
	Time           *string  `json:"time"`
}

// Push is an outbound server-to-client message.
type Push struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func UserLocationsPush(locs []UserLocation) Push {
	return Push{Type: MsgUserLocations, Data: locs}
}

func DeviceLocationsPush(locs []DeviceLocation) Push {
	return Push{Type: MsgDeviceLocations, Data: locs}
}

func GroupsPush(groups []Group) Push {
	return Push{Type: MsgGroups, Data: groups}
}

func FriendRequestPush(fromUUID, fromEmail string) Push {
	return Push{Type: MsgFriendRequest, Data: map[string]string{"from": fromUUID, "email": fromEmail}}
}

func FriendAcceptedPush(byUUID string) Push {
	return Push{Type: MsgFriendAccepted, Data: map[string]string{"by": byUUID}}
}

func GroupInvitationPush(groupID, byUUID string) Push {
	return Push{Type: MsgGroupInvitation, Data: map[string]string{"group_id": groupID, "by": byUUID}}
}

func DeviceSharedPush(imei, name, byUUID string) Push {
	return Push{Type: MsgDeviceShared, Data: map[string]string{"device_imei": imei, "device_name": name, "by": byUUID}}
}
