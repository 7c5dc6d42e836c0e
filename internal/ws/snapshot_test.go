package ws

import (
	"context"
	"testing"
	"time"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store/memstore"
)

func TestSnapshotEmptyForNewUser(t *testing.T) {
	st := memstore.New()
	mustCreateUser(t, st, "alice")

	pushes, err := snapshotPushes(context.Background(), st, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(pushes) != 0 {
		t.Fatalf("new user snapshot has %d pushes, want 0", len(pushes))
	}
}

func TestSnapshotOrderAndContent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	mustCreateUser(t, st, "alice")
	mustCreateUser(t, st, "bob")
	mustBefriend(t, st, "bob", "alice")

	if err := st.UpsertUserLocation(ctx, model.UserLocationRecord{
		UUID: "bob", Latitude: 52.0, Longitude: 4.0, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	// Alice's own position must not appear in her snapshot.
	if err := st.UpsertUserLocation(ctx, model.UserLocationRecord{
		UUID: "alice", Latitude: 1.0, Longitude: 1.0, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateGroup(ctx, model.Group{ID: "g1", Name: "park crew", OwnerID: "alice", MemberIDs: []string{"alice"}, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	pushes, err := snapshotPushes(ctx, st, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(pushes) != 3 {
		t.Fatalf("snapshot has %d pushes, want 3", len(pushes))
	}
	if pushes[0].Type != model.MsgUserLocations || pushes[1].Type != model.MsgDeviceLocations || pushes[2].Type != model.MsgGroups {
		t.Fatalf("snapshot order %q %q %q", pushes[0].Type, pushes[1].Type, pushes[2].Type)
	}

	friendLocs := pushes[0].Data.([]model.UserLocation)
	if len(friendLocs) != 1 || friendLocs[0].UUID != "bob" {
		t.Errorf("friend locations = %+v", friendLocs)
	}
	devLocs := pushes[1].Data.([]model.DeviceLocation)
	if len(devLocs) != 1 || devLocs[0].Type != model.VisibilityOwn {
		t.Errorf("device locations = %+v", devLocs)
	}
	groups := pushes[2].Data.([]model.Group)
	if len(groups) != 1 || groups[0].ID != "g1" {
		t.Errorf("groups = %+v", groups)
	}
}

// A shared device that has never reported still shows up, with nil
// coordinates and the shared tag.
func TestSnapshotSharedDeviceWithoutLocation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	mustCreateUser(t, st, "alice")
	mustCreateUser(t, st, "carol")
	if err := st.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := st.ShareDevice(ctx, "dev1", "alice", "carol"); err != nil {
		t.Fatal(err)
	}

	pushes, err := snapshotPushes(ctx, st, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(pushes) != 1 || pushes[0].Type != model.MsgDeviceLocations {
		t.Fatalf("unexpected snapshot %+v", pushes)
	}
	locs := pushes[0].Data.([]model.DeviceLocation)
	if len(locs) != 1 {
		t.Fatalf("device locations = %+v", locs)
	}
	loc := locs[0]
	if loc.Type != model.VisibilityShared {
		t.Errorf("tag = %q, want shared", loc.Type)
	}
	if loc.Latitude != nil || loc.Longitude != nil {
		t.Errorf("never-reported device carries coordinates: %+v", loc)
	}
	if loc.DeviceName != "Rex" || loc.OwnerNickname != "alice" {
		t.Errorf("missing enrichment: %+v", loc)
	}
}

func mustCreateUser(t *testing.T, st *memstore.Memstore, uid string) {
	t.Helper()
	err := st.CreateUser(context.Background(), model.User{
		UUID: uid, Email: uid + "@example.com", Nickname: uid, Role: model.RoleUser, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func mustBefriend(t *testing.T, st *memstore.Memstore, from, to string) {
	t.Helper()
	ctx := context.Background()
	if err := st.AddFriendRequest(ctx, from, to); err != nil {
		t.Fatal(err)
	}
	if err := st.AcceptFriendRequest(ctx, from, to); err != nil {
		t.Fatal(err)
	}
}
