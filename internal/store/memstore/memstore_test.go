package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
)

func addUser(t *testing.T, m *Memstore, uid string) {
	t.Helper()
	err := m.CreateUser(context.Background(), model.User{
		UUID: uid, Email: uid + "@example.com", Nickname: uid, Role: model.RoleUser, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	m := New()
	addUser(t, m, "alice")
	err := m.CreateUser(context.Background(), model.User{UUID: "alice2", Email: "alice@example.com"})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate email: got %v", err)
	}
}

func TestFriendLifecycle(t *testing.T) {
	ctx := context.Background()
	m := New()
	addUser(t, m, "alice")
	addUser(t, m, "bob")

	if err := m.AddFriendRequest(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}

	// Pending edges are not accepted friendships.
	friends, err := m.AcceptedFriends(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 0 {
		t.Fatalf("pending request counted as accepted: %v", friends)
	}

	// Only the addressee can accept, and only in the right direction.
	if err := m.AcceptFriendRequest(ctx, "bob", "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("reversed accept: got %v", err)
	}
	if err := m.AcceptFriendRequest(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}

	// Accepted friendship is visible from both sides.
	for _, uid := range []string{"alice", "bob"} {
		friends, err := m.AcceptedFriends(ctx, uid)
		if err != nil {
			t.Fatal(err)
		}
		if len(friends) != 1 {
			t.Fatalf("%s has %d friends, want 1", uid, len(friends))
		}
	}

	if err := m.RemoveFriend(ctx, "bob", "alice"); err != nil {
		t.Fatal(err)
	}
	friends, err = m.AcceptedFriends(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 0 {
		t.Fatalf("friendship survived removal: %v", friends)
	}
}

func TestUpsertDeviceLocationMergesNilFields(t *testing.T) {
	ctx := context.Background()
	m := New()
	addUser(t, m, "alice")
	if err := m.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	lat, lon := 52.0, 4.0
	sats := 9
	if err := m.UpsertDeviceLocation(ctx, model.DeviceLocationRecord{
		DeviceID: "dev1", Latitude: &lat, Longitude: &lon, Satellites: &sats, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	battery := 60
	if err := m.UpsertDeviceLocation(ctx, model.DeviceLocationRecord{
		DeviceID: "dev1", Battery: &battery, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	loc, err := m.DeviceLocationByIMEI(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Latitude == nil || *loc.Latitude != 52.0 || loc.Satellites == nil || *loc.Satellites != 9 {
		t.Errorf("earlier fields clobbered: %+v", loc)
	}
	if loc.Battery == nil || *loc.Battery != 60 {
		t.Errorf("new field not merged: %+v", loc)
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	ctx := context.Background()
	m := New()
	addUser(t, m, "alice")
	addUser(t, m, "carol")
	if err := m.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := m.ShareDevice(ctx, "dev1", "alice", "carol"); err != nil {
		t.Fatal(err)
	}

	// Only the owner may delete.
	if err := m.DeleteDevice(ctx, "dev1", "carol"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("non-owner delete: got %v", err)
	}
	if err := m.DeleteDevice(ctx, "dev1", "alice"); err != nil {
		t.Fatal(err)
	}
	shared, err := m.SharedUsers(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 0 {
		t.Errorf("shares survived device deletion: %v", shared)
	}
	locs, err := m.DeviceLocations(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 0 {
		t.Errorf("deleted device still visible: %+v", locs)
	}
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	m := New()
	addUser(t, m, "alice")
	addUser(t, m, "bob")
	g := model.Group{ID: "g1", Name: "park crew", OwnerID: "alice", MemberIDs: []string{"alice"}, CreatedAt: time.Now()}
	if err := m.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	ok, err := m.GroupMemberOrOwner(ctx, "g1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("non-member counted as member")
	}
	if err := m.AddGroupMember(ctx, "g1", "bob"); err != nil {
		t.Fatal(err)
	}
	groups, err := m.GroupsFor(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].MemberIDs) != 2 {
		t.Fatalf("groups for bob: %+v", groups)
	}
	if err := m.RemoveGroupMember(ctx, "g1", "bob"); err != nil {
		t.Fatal(err)
	}
	groups, err = m.GroupsFor(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Fatalf("bob still in group after removal: %+v", groups)
	}
}
