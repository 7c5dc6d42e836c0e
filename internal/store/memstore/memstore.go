// Package memstore is a mutex-guarded in-memory Store. It backs tests
// and db-less local runs; semantics mirror pgstore.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
)

type edge struct {
	from string
	to   string
}

type friendEdge struct {
	status    string
	createdAt time.Time
}

type groupRec struct {
	group   model.Group
	members map[string]bool
}

type Memstore struct {
	mu      sync.Mutex
	users   map[string]model.User
	emails  map[string]string
	friends map[edge]friendEdge
	groups  map[string]*groupRec
	devices map[string]model.Device
	shares  map[string]map[string]bool
	userLoc map[string]model.UserLocationRecord
	devLoc  map[string]model.DeviceLocationRecord
}

func New() *Memstore {
	return &Memstore{
		users:   make(map[string]model.User),
		emails:  make(map[string]string),
		friends: make(map[edge]friendEdge),
		groups:  make(map[string]*groupRec),
		devices: make(map[string]model.Device),
		shares:  make(map[string]map[string]bool),
		userLoc: make(map[string]model.UserLocationRecord),
		devLoc:  make(map[string]model.DeviceLocationRecord),
	}
}

var _ store.Store = (*Memstore)(nil)

func (m *Memstore) CreateUser(ctx context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[u.Email]; ok {
		return store.ErrConflict
	}
	m.users[u.UUID] = u
	m.emails[u.Email] = u.UUID
	return nil
}

func (m *Memstore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.emails[email]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return m.users[uid], nil
}

func (m *Memstore) UserByID(ctx context.Context, uuid string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uuid]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *Memstore) UpdateUserLastSeen(ctx context.Context, uuid string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uuid]
	if !ok {
		return store.ErrNotFound
	}
	u.LastSeen = &t
	m.users[uuid] = u
	return nil
}

func (m *Memstore) IsAdmin(ctx context.Context, uuid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uuid]
	if !ok {
		return false, nil
	}
	return u.Role == model.RoleAdmin, nil
}

func (m *Memstore) AdminExists(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memstore) ListUsers(ctx context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (m *Memstore) AcceptedFriends(ctx context.Context, uuid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool)
	for e, f := range m.friends {
		if f.status != model.FriendAccepted {
			continue
		}
		if e.from == uuid {
			set[e.to] = true
		} else if e.to == uuid {
			set[e.from] = true
		}
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memstore) FriendsOf(ctx context.Context, uuid string) ([]model.Friend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Friend
	for e, f := range m.friends {
		var other string
		if e.from == uuid {
			other = e.to
		} else if e.to == uuid {
			other = e.from
		} else {
			continue
		}
		u, ok := m.users[other]
		if !ok {
			continue
		}
		out = append(out, model.Friend{
			UUID: u.UUID, Email: u.Email, Nickname: u.Nickname,
			Status: f.status, CreatedAt: f.createdAt, RequestSentBy: e.from,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (m *Memstore) FriendEdgeExists(ctx context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.friends[edge{a, b}]; ok {
		return true, nil
	}
	_, ok := m.friends[edge{b, a}]
	return ok, nil
}

func (m *Memstore) AddFriendRequest(ctx context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[edge{from, to}] = friendEdge{status: model.FriendPending, createdAt: time.Now()}
	return nil
}

func (m *Memstore) AcceptFriendRequest(ctx context.Context, requester, accepter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.friends[edge{requester, accepter}]
	if !ok || f.status != model.FriendPending {
		return store.ErrNotFound
	}
	f.status = model.FriendAccepted
	m.friends[edge{requester, accepter}] = f
	return nil
}

func (m *Memstore) RemoveFriend(ctx context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok1 := m.friends[edge{a, b}]
	_, ok2 := m.friends[edge{b, a}]
	if !ok1 && !ok2 {
		return store.ErrNotFound
	}
	delete(m.friends, edge{a, b})
	delete(m.friends, edge{b, a})
	return nil
}

func (m *Memstore) GroupsFor(ctx context.Context, uuid string) ([]model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Group
	for _, g := range m.groups {
		if g.group.OwnerID != uuid && !g.members[uuid] {
			continue
		}
		out = append(out, groupView(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func groupView(g *groupRec) model.Group {
	v := g.group
	v.MemberIDs = make([]string, 0, len(g.members))
	for uid := range g.members {
		v.MemberIDs = append(v.MemberIDs, uid)
	}
	sort.Strings(v.MemberIDs)
	return v
}

func (m *Memstore) CreateGroup(ctx context.Context, g model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &groupRec{group: g, members: make(map[string]bool)}
	for _, uid := range g.MemberIDs {
		rec.members[uid] = true
	}
	m.groups[g.ID] = rec
	return nil
}

func (m *Memstore) GroupOwner(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return "", store.ErrNotFound
	}
	return g.group.OwnerID, nil
}

func (m *Memstore) DeleteGroup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.groups, id)
	return nil
}

func (m *Memstore) AddGroupMember(ctx context.Context, id, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	g.members[uuid] = true
	return nil
}

func (m *Memstore) RemoveGroupMember(ctx context.Context, id, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok || !g.members[uuid] {
		return store.ErrNotFound
	}
	delete(g.members, uuid)
	return nil
}

func (m *Memstore) GroupMemberOrOwner(ctx context.Context, id, uuid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return false, store.ErrNotFound
	}
	return g.group.OwnerID == uuid || g.members[uuid], nil
}

func (m *Memstore) CreateDevice(ctx context.Context, d model.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.IMEI]; ok {
		return store.ErrConflict
	}
	m.devices[d.IMEI] = d
	return nil
}

func (m *Memstore) DeviceByIMEI(ctx context.Context, imei string) (model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok {
		return model.Device{}, store.ErrNotFound
	}
	return d, nil
}

func (m *Memstore) DevicesOwnedBy(ctx context.Context, uuid string) ([]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Device
	for _, d := range m.devices {
		if d.OwnerUUID == uuid {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IMEI < out[j].IMEI })
	return out, nil
}

func (m *Memstore) UpdateDeviceName(ctx context.Context, imei, owner, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok || d.OwnerUUID != owner {
		return store.ErrNotFound
	}
	d.Name = name
	m.devices[imei] = d
	return nil
}

func (m *Memstore) UpdateDeviceLastSeen(ctx context.Context, imei string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok {
		return store.ErrNotFound
	}
	d.LastSeen = &t
	m.devices[imei] = d
	return nil
}

func (m *Memstore) DeleteDevice(ctx context.Context, imei, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok || d.OwnerUUID != owner {
		return store.ErrNotFound
	}
	delete(m.devices, imei)
	delete(m.shares, imei)
	delete(m.devLoc, imei)
	return nil
}

func (m *Memstore) ShareDevice(ctx context.Context, imei, owner, with string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok || d.OwnerUUID != owner {
		return store.ErrNotFound
	}
	if m.shares[imei] == nil {
		m.shares[imei] = make(map[string]bool)
	}
	m.shares[imei][with] = true
	return nil
}

func (m *Memstore) UnshareDevice(ctx context.Context, imei, owner, with string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[imei]
	if !ok || d.OwnerUUID != owner || !m.shares[imei][with] {
		return store.ErrNotFound
	}
	delete(m.shares[imei], with)
	return nil
}

func (m *Memstore) SharedUsers(ctx context.Context, imei string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.shares[imei]))
	for uid := range m.shares[imei] {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memstore) ListDevices(ctx context.Context) ([]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IMEI < out[j].IMEI })
	return out, nil
}

func (m *Memstore) UpsertUserLocation(ctx context.Context, rec model.UserLocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLoc[rec.UUID] = rec
	return nil
}

func (m *Memstore) UpsertDeviceLocation(ctx context.Context, rec model.DeviceLocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.devLoc[rec.DeviceID]
	if !ok {
		m.devLoc[rec.DeviceID] = rec
		return nil
	}
	m.devLoc[rec.DeviceID] = mergeDeviceRecord(prev, rec)
	return nil
}

func mergeDeviceRecord(prev, next model.DeviceLocationRecord) model.DeviceLocationRecord {
	out := prev
	out.Timestamp = next.Timestamp
	if next.Latitude != nil {
		out.Latitude = next.Latitude
	}
	if next.Longitude != nil {
		out.Longitude = next.Longitude
	}
	if next.Altitude != nil {
		out.Altitude = next.Altitude
	}
	if next.Speed != nil {
		out.Speed = next.Speed
	}
	if next.Battery != nil {
		out.Battery = next.Battery
	}
	if next.BatteryMV != nil {
		out.BatteryMV = next.BatteryMV
	}
	if next.Bark != nil {
		out.Bark = next.Bark
	}
	if next.Satellites != nil {
		out.Satellites = next.Satellites
	}
	if next.LTESignal != nil {
		out.LTESignal = next.LTESignal
	}
	if next.LoraRSSI != nil {
		out.LoraRSSI = next.LoraRSSI
	}
	if next.ConnectionType != nil {
		out.ConnectionType = next.ConnectionType
	}
	if next.Time != nil {
		out.Time = next.Time
	}
	return out
}

func (m *Memstore) FriendLocations(ctx context.Context, uuid string, includeSelf bool) ([]model.UserLocation, error) {
	friends, err := m.AcceptedFriends(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if includeSelf {
		friends = append(friends, uuid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserLocation
	for _, uid := range friends {
		rec, ok := m.userLoc[uid]
		if !ok {
			continue
		}
		u := m.users[uid]
		lat, lon := rec.Latitude, rec.Longitude
		out = append(out, model.UserLocation{
			UUID: uid, Email: u.Email, Nickname: u.Nickname,
			Latitude: &lat, Longitude: &lon,
			Altitude: rec.Altitude, Speed: rec.Speed,
			Battery: rec.Battery, Accuracy: rec.Accuracy,
			Timestamp: rec.Timestamp,
		})
	}
	return out, nil
}

func (m *Memstore) DeviceLocations(ctx context.Context, uuid string) ([]model.DeviceLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeviceLocation
	for imei, d := range m.devices {
		if d.OwnerUUID == uuid {
			out = append(out, m.deviceLocationLocked(imei, model.VisibilityOwn))
		} else if m.shares[imei][uuid] {
			out = append(out, m.deviceLocationLocked(imei, model.VisibilityShared))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (m *Memstore) DeviceLocationByIMEI(ctx context.Context, imei string) (model.DeviceLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[imei]; !ok {
		return model.DeviceLocation{}, store.ErrNotFound
	}
	return m.deviceLocationLocked(imei, ""), nil
}

func (m *Memstore) deviceLocationLocked(imei string, tag model.Visibility) model.DeviceLocation {
	d := m.devices[imei]
	owner := m.users[d.OwnerUUID]
	loc := model.DeviceLocation{
		DeviceID:      imei,
		OwnerUUID:     d.OwnerUUID,
		OwnerEmail:    owner.Email,
		OwnerNickname: owner.Nickname,
		DeviceName:    d.Name,
		Type:          tag,
	}
	rec, ok := m.devLoc[imei]
	if !ok {
		return loc
	}
	loc.Latitude = rec.Latitude
	loc.Longitude = rec.Longitude
	loc.Altitude = rec.Altitude
	loc.Speed = rec.Speed
	loc.Battery = rec.Battery
	loc.BatteryMV = rec.BatteryMV
	loc.Bark = rec.Bark
	loc.Satellites = rec.Satellites
	loc.LTESignal = rec.LTESignal
	loc.LoraRSSI = rec.LoraRSSI
	loc.ConnectionType = rec.ConnectionType
	loc.Time = rec.Time
	loc.Timestamp = rec.Timestamp
	return loc
}
