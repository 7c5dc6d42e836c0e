// Package store defines the persistence boundary of the realtime core.
// The broadcast path only ever reads through these interfaces; it never
// caches audience sets between updates.
package store

import (
	"context"
	"errors"
	"time"

	"woofpack.dev/dogtracker/internal/model"
)

var ErrNotFound = errors.New("store: not found")
var ErrConflict = errors.New("store: already exists")

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, uuid string) (model.User, error)
	UpdateUserLastSeen(ctx context.Context, uuid string, t time.Time) error
	IsAdmin(ctx context.Context, uuid string) (bool, error)
	AdminExists(ctx context.Context) (bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type FriendStore interface {
	// AcceptedFriends returns the deduplicated set of principals with an
	// accepted friend edge in either direction.
	AcceptedFriends(ctx context.Context, uuid string) ([]string, error)
	// FriendsOf returns pending and accepted friends, both directions.
	FriendsOf(ctx context.Context, uuid string) ([]model.Friend, error)
	FriendEdgeExists(ctx context.Context, a, b string) (bool, error)
	AddFriendRequest(ctx context.Context, from, to string) error
	// AcceptFriendRequest flips the pending edge requester->accepter to
	// accepted; ErrNotFound when no such pending edge exists.
	AcceptFriendRequest(ctx context.Context, requester, accepter string) error
	RemoveFriend(ctx context.Context, a, b string) error
}

type GroupStore interface {
	GroupsFor(ctx context.Context, uuid string) ([]model.Group, error)
	CreateGroup(ctx context.Context, g model.Group) error
	GroupOwner(ctx context.Context, id string) (string, error)
	DeleteGroup(ctx context.Context, id string) error
	AddGroupMember(ctx context.Context, id, uuid string) error
	RemoveGroupMember(ctx context.Context, id, uuid string) error
	GroupMemberOrOwner(ctx context.Context, id, uuid string) (bool, error)
}

type DeviceStore interface {
	CreateDevice(ctx context.Context, d model.Device) error
	DeviceByIMEI(ctx context.Context, imei string) (model.Device, error)
	DevicesOwnedBy(ctx context.Context, uuid string) ([]model.Device, error)
	UpdateDeviceName(ctx context.Context, imei, owner, name string) error
	UpdateDeviceLastSeen(ctx context.Context, imei string, t time.Time) error
	DeleteDevice(ctx context.Context, imei, owner string) error
	ShareDevice(ctx context.Context, imei, owner, with string) error
	UnshareDevice(ctx context.Context, imei, owner, with string) error
	// SharedUsers returns every principal holding a device-share edge
	// for the device.
	SharedUsers(ctx context.Context, imei string) ([]string, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
}

type LocationStore interface {
	UpsertUserLocation(ctx context.Context, rec model.UserLocationRecord) error
	// UpsertDeviceLocation merges the record into the last-known state:
	// nil fields keep whatever value was stored before.
	UpsertDeviceLocation(ctx context.Context, rec model.DeviceLocationRecord) error
	// FriendLocations returns the live positions of the principal's
	// accepted friends; the principal's own row is included only when
	// includeSelf is set.
	FriendLocations(ctx context.Context, uuid string, includeSelf bool) ([]model.UserLocation, error)
	// DeviceLocations returns devices owned by (tag own) or shared with
	// (tag shared) the principal, location fields nil when the device
	// has never reported.
	DeviceLocations(ctx context.Context, uuid string) ([]model.DeviceLocation, error)
	// DeviceLocationByIMEI returns the enriched last-known observation
	// of one device, untagged.
	DeviceLocationByIMEI(ctx context.Context, imei string) (model.DeviceLocation, error)
}

// Store is the full collaborator surface the server is wired with.
type Store interface {
	UserStore
	FriendStore
	GroupStore
	DeviceStore
	LocationStore
}
