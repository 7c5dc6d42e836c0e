package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/registry"
	"woofpack.dev/dogtracker/internal/store/memstore"
)

type mockHandle struct {
	got []model.Push
}

func (h *mockHandle) Send(ctx context.Context, msg model.Push) error {
	h.got = append(h.got, msg)
	return nil
}

func newUser(t *testing.T, st *memstore.Memstore, uid, email string) {
	t.Helper()
	err := st.CreateUser(context.Background(), model.User{
		UUID: uid, Email: email, Nickname: uid, Role: model.RoleUser, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func befriend(t *testing.T, st *memstore.Memstore, a, b string) {
	t.Helper()
	ctx := context.Background()
	if err := st.AddFriendRequest(ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if err := st.AcceptFriendRequest(ctx, a, b); err != nil {
		t.Fatal(err)
	}
}

func TestUserUpdateReachesFriendsOnly(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	newUser(t, st, "alice", "alice@example.com")
	newUser(t, st, "bob", "bob@example.com")
	newUser(t, st, "carol", "carol@example.com")
	befriend(t, st, "alice", "bob")

	aliceH := &mockHandle{}
	bobH := &mockHandle{}
	carolH := &mockHandle{}
	reg.Register("alice", aliceH)
	reg.Register("bob", bobH)
	reg.Register("carol", carolH)

	err := ro.RouteUserUpdate(ctx, model.UserLocationRecord{
		UUID: "alice", Latitude: 52.0, Longitude: 4.0, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(aliceH.got) != 0 {
		t.Errorf("sender received %d pushes", len(aliceH.got))
	}
	if len(carolH.got) != 0 {
		t.Errorf("non-friend received %d pushes", len(carolH.got))
	}
	if len(bobH.got) != 1 {
		t.Fatalf("friend received %d pushes, want 1", len(bobH.got))
	}
	push := bobH.got[0]
	if push.Type != model.MsgUserLocations {
		t.Errorf("push type = %q", push.Type)
	}
	locs := push.Data.([]model.UserLocation)
	if len(locs) != 1 || locs[0].UUID != "alice" || *locs[0].Latitude != 52.0 {
		t.Errorf("unexpected payload %+v", locs)
	}
}

func TestUserUpdateOfflineFriendSkipped(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	newUser(t, st, "alice", "alice@example.com")
	newUser(t, st, "bob", "bob@example.com")
	befriend(t, st, "alice", "bob")

	err := ro.RouteUserUpdate(ctx, model.UserLocationRecord{
		UUID: "alice", Latitude: 1, Longitude: 2, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Position must still be retained for bob's next snapshot.
	locs, err := st.FriendLocations(ctx, "bob", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].UUID != "alice" {
		t.Fatalf("stored location not visible to friend: %+v", locs)
	}
}

func TestDeviceUpdateTagsPerAudience(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	newUser(t, st, "alice", "alice@example.com")
	newUser(t, st, "bob", "bob@example.com")
	newUser(t, st, "carol", "carol@example.com")
	befriend(t, st, "alice", "bob")
	if err := st.CreateDevice(ctx, model.Device{IMEI: "860000000000001", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := st.ShareDevice(ctx, "860000000000001", "alice", "carol"); err != nil {
		t.Fatal(err)
	}

	bobH := &mockHandle{}
	carolH := &mockHandle{}
	reg.Register("bob", bobH)
	reg.Register("carol", carolH)

	lat, lon := 52.0, 4.0
	err := ro.RouteDeviceUpdate(ctx, model.DeviceLocationRecord{
		DeviceID: "860000000000001", Latitude: &lat, Longitude: &lon, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(bobH.got) != 1 {
		t.Fatalf("friend received %d pushes, want 1", len(bobH.got))
	}
	bobLocs := bobH.got[0].Data.([]model.DeviceLocation)
	if bobLocs[0].Type != model.VisibilityFriend {
		t.Errorf("friend push tagged %q", bobLocs[0].Type)
	}
	if len(carolH.got) != 1 {
		t.Fatalf("share recipient received %d pushes, want 1", len(carolH.got))
	}
	carolLocs := carolH.got[0].Data.([]model.DeviceLocation)
	if carolLocs[0].Type != model.VisibilityShared {
		t.Errorf("shared push tagged %q", carolLocs[0].Type)
	}
	if carolLocs[0].DeviceName != "Rex" || carolLocs[0].OwnerNickname != "alice" {
		t.Errorf("push missing enrichment: %+v", carolLocs[0])
	}
}

func TestDeviceUpdateUnknownDeviceDropped(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	lat, lon := 1.0, 2.0
	err := ro.RouteDeviceUpdate(ctx, model.DeviceLocationRecord{
		DeviceID: "123", Latitude: &lat, Longitude: &lon, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unknown device should drop silently, got %v", err)
	}
}

func TestDeviceUpdateMergesPartialFields(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	newUser(t, st, "alice", "alice@example.com")
	if err := st.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	lat, lon := 52.0, 4.0
	bark := 2
	if err := ro.RouteDeviceUpdate(ctx, model.DeviceLocationRecord{
		DeviceID: "dev1", Latitude: &lat, Longitude: &lon, Bark: &bark, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	battery := 77
	if err := ro.RouteDeviceUpdate(ctx, model.DeviceLocationRecord{
		DeviceID: "dev1", Battery: &battery, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	loc, err := st.DeviceLocationByIMEI(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Latitude == nil || *loc.Latitude != 52.0 {
		t.Errorf("latitude clobbered by partial update: %+v", loc.Latitude)
	}
	if loc.Battery == nil || *loc.Battery != 77 {
		t.Errorf("battery not merged: %+v", loc.Battery)
	}
	if loc.Bark == nil || *loc.Bark != 2 {
		t.Errorf("bark clobbered: %+v", loc.Bark)
	}
}

func TestTelemetryReportRouted(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New(zerolog.Nop())
	ro := NewRouter(reg, st, zerolog.Nop())

	newUser(t, st, "alice", "alice@example.com")
	newUser(t, st, "bob", "bob@example.com")
	befriend(t, st, "alice", "bob")
	if err := st.CreateDevice(ctx, model.Device{IMEI: "dev1", OwnerUUID: "alice", Name: "Rex", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	bobH := &mockHandle{}
	reg.Register("bob", bobH)

	err := ro.RouteTelemetryReport(ctx, "dev1", 52.0, 4.0, 81, 3, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(bobH.got) != 1 {
		t.Fatalf("friend received %d pushes, want 1", len(bobH.got))
	}
	locs := bobH.got[0].Data.([]model.DeviceLocation)
	if *locs[0].Battery != 81 || *locs[0].Bark != 3 {
		t.Errorf("unexpected payload %+v", locs[0])
	}
}
