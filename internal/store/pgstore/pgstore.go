// Package pgstore implements store.Store on postgres via pgx.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
)

type PgStore struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

var _ store.Store = (*PgStore)(nil)

// InitSchema creates all tables when they do not exist yet.
func (p *PgStore) InitSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS "user" (
	uuid TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	nickname TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'U' CHECK (role IN ('U','A')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS user_location (
	uuid TEXT PRIMARY KEY REFERENCES "user"(uuid),
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	altitude DOUBLE PRECISION,
	speed DOUBLE PRECISION,
	battery INTEGER,
	accuracy DOUBLE PRECISION,
	"timestamp" TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS device (
	imei TEXT PRIMARY KEY,
	owner_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS device_location (
	device_id TEXT PRIMARY KEY REFERENCES device(imei),
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	altitude DOUBLE PRECISION,
	speed DOUBLE PRECISION,
	battery INTEGER,
	battery_mv INTEGER,
	bark INTEGER,
	satellites INTEGER,
	lte_signal INTEGER,
	lora_rssi INTEGER,
	connection_type TEXT,
	"time" TEXT,
	"timestamp" TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS friend (
	user_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	friend_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_uuid, friend_uuid)
);
CREATE TABLE IF NOT EXISTS "group" (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	owner_id TEXT NOT NULL REFERENCES "user"(uuid),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS group_member (
	group_id TEXT NOT NULL REFERENCES "group"(id) ON DELETE CASCADE,
	user_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (group_id, user_uuid)
);
CREATE TABLE IF NOT EXISTS device_share (
	device_imei TEXT NOT NULL REFERENCES device(imei) ON DELETE CASCADE,
	owner_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	shared_with_uuid TEXT NOT NULL REFERENCES "user"(uuid),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (device_imei, shared_with_uuid)
);
`

func (p *PgStore) CreateUser(ctx context.Context, u model.User) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO "user" (uuid,email,password,nickname,role,created_at) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (email) DO NOTHING`,
		u.UUID, u.Email, u.Password, u.Nickname, u.Role, u.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func (p *PgStore) scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.UUID, &u.Email, &u.Password, &u.Nickname, &u.Role, &u.CreatedAt, &u.LastSeen)
	if err == pgx.ErrNoRows {
		return model.User{}, store.ErrNotFound
	}
	return u, err
}

const userCols = `uuid,email,password,nickname,role,created_at,last_seen`

func (p *PgStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return p.scanUser(p.db.QueryRow(ctx, `SELECT `+userCols+` FROM "user" WHERE email = $1`, email))
}

func (p *PgStore) UserByID(ctx context.Context, uuid string) (model.User, error) {
	return p.scanUser(p.db.QueryRow(ctx, `SELECT `+userCols+` FROM "user" WHERE uuid = $1`, uuid))
}

func (p *PgStore) UpdateUserLastSeen(ctx context.Context, uuid string, t time.Time) error {
	_, err := p.db.Exec(ctx, `UPDATE "user" SET last_seen = $1 WHERE uuid = $2`, t, uuid)
	return err
}

func (p *PgStore) IsAdmin(ctx context.Context, uuid string) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM "user" WHERE uuid = $1 AND role = $2)`, uuid, model.RoleAdmin).Scan(&ok)
	return ok, err
}

func (p *PgStore) AdminExists(ctx context.Context) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM "user" WHERE role = $1)`, model.RoleAdmin).Scan(&ok)
	return ok, err
}

func (p *PgStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.Query(ctx, `SELECT `+userCols+` FROM "user" ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.UUID, &u.Email, &u.Password, &u.Nickname, &u.Role, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PgStore) AcceptedFriends(ctx context.Context, uuid string) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT friend_uuid FROM friend WHERE user_uuid = $1 AND status = 'accepted'
		 UNION
		 SELECT user_uuid FROM friend WHERE friend_uuid = $1 AND status = 'accepted'`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (p *PgStore) FriendsOf(ctx context.Context, uuid string) ([]model.Friend, error) {
	rows, err := p.db.Query(ctx,
		`SELECT u.uuid, u.email, u.nickname, f.status, f.created_at, f.user_uuid
		 FROM friend f JOIN "user" u ON f.friend_uuid = u.uuid
		 WHERE f.user_uuid = $1
		 UNION
		 SELECT u.uuid, u.email, u.nickname, f.status, f.created_at, f.user_uuid
		 FROM friend f JOIN "user" u ON f.user_uuid = u.uuid
		 WHERE f.friend_uuid = $1`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Friend
	for rows.Next() {
		var f model.Friend
		if err := rows.Scan(&f.UUID, &f.Email, &f.Nickname, &f.Status, &f.CreatedAt, &f.RequestSentBy); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *PgStore) FriendEdgeExists(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friend
		 WHERE (user_uuid = $1 AND friend_uuid = $2) OR (user_uuid = $2 AND friend_uuid = $1))`, a, b).Scan(&ok)
	return ok, err
}

func (p *PgStore) AddFriendRequest(ctx context.Context, from, to string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO friend (user_uuid, friend_uuid, status) VALUES ($1, $2, 'pending')`, from, to)
	return err
}

func (p *PgStore) AcceptFriendRequest(ctx context.Context, requester, accepter string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE friend SET status = 'accepted'
		 WHERE user_uuid = $1 AND friend_uuid = $2 AND status = 'pending'`, requester, accepter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) RemoveFriend(ctx context.Context, a, b string) error {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM friend
		 WHERE (user_uuid = $1 AND friend_uuid = $2) OR (user_uuid = $2 AND friend_uuid = $1)`, a, b)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) GroupsFor(ctx context.Context, uuid string) ([]model.Group, error) {
	rows, err := p.db.Query(ctx,
		`SELECT DISTINCT g.id, g.name, g.description, g.owner_id, g.created_at
		 FROM "group" g LEFT JOIN group_member gm ON g.id = gm.group_id
		 WHERE g.owner_id = $1 OR gm.user_uuid = $1
		 ORDER BY g.created_at`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		members, err := p.groupMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].MemberIDs = members
	}
	return out, nil
}

func (p *PgStore) groupMembers(ctx context.Context, id string) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT user_uuid FROM group_member WHERE group_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (p *PgStore) CreateGroup(ctx context.Context, g model.Group) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.Exec(ctx,
		`INSERT INTO "group" (id,name,description,owner_id,created_at) VALUES ($1,$2,$3,$4,$5)`,
		g.ID, g.Name, g.Description, g.OwnerID, g.CreatedAt)
	if err != nil {
		return err
	}
	for _, uid := range g.MemberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO group_member (group_id,user_uuid) VALUES ($1,$2) ON CONFLICT DO NOTHING`, g.ID, uid)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *PgStore) GroupOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := p.db.QueryRow(ctx, `SELECT owner_id FROM "group" WHERE id = $1`, id).Scan(&owner)
	if err == pgx.ErrNoRows {
		return "", store.ErrNotFound
	}
	return owner, err
}

func (p *PgStore) DeleteGroup(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM "group" WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) AddGroupMember(ctx context.Context, id, uuid string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO group_member (group_id,user_uuid) VALUES ($1,$2) ON CONFLICT DO NOTHING`, id, uuid)
	return err
}

func (p *PgStore) RemoveGroupMember(ctx context.Context, id, uuid string) error {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM group_member WHERE group_id = $1 AND user_uuid = $2`, id, uuid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) GroupMemberOrOwner(ctx context.Context, id, uuid string) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM "group" g LEFT JOIN group_member gm ON g.id = gm.group_id
			WHERE g.id = $1 AND (g.owner_id = $2 OR gm.user_uuid = $2))`, id, uuid).Scan(&ok)
	return ok, err
}

func (p *PgStore) CreateDevice(ctx context.Context, d model.Device) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO device (imei,owner_uuid,name,created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (imei) DO NOTHING`,
		d.IMEI, d.OwnerUUID, d.Name, d.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func (p *PgStore) DeviceByIMEI(ctx context.Context, imei string) (model.Device, error) {
	var d model.Device
	err := p.db.QueryRow(ctx,
		`SELECT imei,owner_uuid,name,created_at,last_seen FROM device WHERE imei = $1`, imei).
		Scan(&d.IMEI, &d.OwnerUUID, &d.Name, &d.CreatedAt, &d.LastSeen)
	if err == pgx.ErrNoRows {
		return model.Device{}, store.ErrNotFound
	}
	return d, err
}

func (p *PgStore) DevicesOwnedBy(ctx context.Context, uuid string) ([]model.Device, error) {
	rows, err := p.db.Query(ctx,
		`SELECT imei,owner_uuid,name,created_at,last_seen FROM device WHERE owner_uuid = $1 ORDER BY created_at`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.IMEI, &d.OwnerUUID, &d.Name, &d.CreatedAt, &d.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PgStore) UpdateDeviceName(ctx context.Context, imei, owner, name string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE device SET name = $1 WHERE imei = $2 AND owner_uuid = $3`, name, imei, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) UpdateDeviceLastSeen(ctx context.Context, imei string, t time.Time) error {
	_, err := p.db.Exec(ctx, `UPDATE device SET last_seen = $1 WHERE imei = $2`, t, imei)
	return err
}

func (p *PgStore) DeleteDevice(ctx context.Context, imei, owner string) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.Exec(ctx, `DELETE FROM device_share WHERE device_imei = $1`, imei)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM device_location WHERE device_id = $1`, imei)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM device WHERE imei = $1 AND owner_uuid = $2`, imei, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (p *PgStore) ShareDevice(ctx context.Context, imei, owner, with string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO device_share (device_imei,owner_uuid,shared_with_uuid) VALUES ($1,$2,$3)
		 ON CONFLICT (device_imei,shared_with_uuid) DO NOTHING`, imei, owner, with)
	return err
}

func (p *PgStore) UnshareDevice(ctx context.Context, imei, owner, with string) error {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM device_share WHERE device_imei = $1 AND owner_uuid = $2 AND shared_with_uuid = $3`,
		imei, owner, with)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PgStore) SharedUsers(ctx context.Context, imei string) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT shared_with_uuid FROM device_share WHERE device_imei = $1`, imei)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (p *PgStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := p.db.Query(ctx,
		`SELECT imei,owner_uuid,name,created_at,last_seen FROM device ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.IMEI, &d.OwnerUUID, &d.Name, &d.CreatedAt, &d.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PgStore) UpsertUserLocation(ctx context.Context, rec model.UserLocationRecord) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO user_location (uuid,latitude,longitude,altitude,speed,battery,accuracy,"timestamp")
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (uuid) DO UPDATE SET
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude, speed = EXCLUDED.speed,
			battery = EXCLUDED.battery, accuracy = EXCLUDED.accuracy,
			"timestamp" = EXCLUDED."timestamp"`,
		rec.UUID, rec.Latitude, rec.Longitude, rec.Altitude, rec.Speed, rec.Battery, rec.Accuracy, rec.Timestamp)
	return err
}

func (p *PgStore) UpsertDeviceLocation(ctx context.Context, rec model.DeviceLocationRecord) error {
	// COALESCE keeps the stored value whenever the incoming field is
	// nil, so partial sources never erase retained telemetry.
	_, err := p.db.Exec(ctx,
		`INSERT INTO device_location
			(device_id,latitude,longitude,altitude,speed,battery,battery_mv,bark,
			 satellites,lte_signal,lora_rssi,connection_type,"time","timestamp")
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (device_id) DO UPDATE SET
			latitude = COALESCE(EXCLUDED.latitude, device_location.latitude),
			longitude = COALESCE(EXCLUDED.longitude, device_location.longitude),
			altitude = COALESCE(EXCLUDED.altitude, device_location.altitude),
			speed = COALESCE(EXCLUDED.speed, device_location.speed),
			battery = COALESCE(EXCLUDED.battery, device_location.battery),
			battery_mv = COALESCE(EXCLUDED.battery_mv, device_location.battery_mv),
			bark = COALESCE(EXCLUDED.bark, device_location.bark),
			satellites = COALESCE(EXCLUDED.satellites, device_location.satellites),
			lte_signal = COALESCE(EXCLUDED.lte_signal, device_location.lte_signal),
			lora_rssi = COALESCE(EXCLUDED.lora_rssi, device_location.lora_rssi),
			connection_type = COALESCE(EXCLUDED.connection_type, device_location.connection_type),
			"time" = COALESCE(EXCLUDED."time", device_location."time"),
			"timestamp" = EXCLUDED."timestamp"`,
		rec.DeviceID, rec.Latitude, rec.Longitude, rec.Altitude, rec.Speed, rec.Battery, rec.BatteryMV,
		rec.Bark, rec.Satellites, rec.LTESignal, rec.LoraRSSI, rec.ConnectionType, rec.Time, rec.Timestamp)
	return err
}

func (p *PgStore) FriendLocations(ctx context.Context, uuid string, includeSelf bool) ([]model.UserLocation, error) {
	query := `SELECT u.uuid, u.email, u.nickname, ul.latitude, ul.longitude,
			ul.altitude, ul.speed, ul.battery, ul.accuracy, ul."timestamp"
		 FROM "user" u JOIN user_location ul ON u.uuid = ul.uuid
		 WHERE u.uuid IN (
			SELECT friend_uuid FROM friend WHERE user_uuid = $1 AND status = 'accepted'
			UNION
			SELECT user_uuid FROM friend WHERE friend_uuid = $1 AND status = 'accepted')`
	if includeSelf {
		query += ` OR u.uuid = $1`
	}
	rows, err := p.db.Query(ctx, query, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.UserLocation
	for rows.Next() {
		var l model.UserLocation
		if err := rows.Scan(&l.UUID, &l.Email, &l.Nickname, &l.Latitude, &l.Longitude,
			&l.Altitude, &l.Speed, &l.Battery, &l.Accuracy, &l.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const deviceLocCols = `d.imei, d.owner_uuid, u.email, u.nickname, d.name,
	dl.latitude, dl.longitude, dl.altitude, dl.speed, dl.battery, dl.battery_mv,
	dl.bark, dl.satellites, dl.lte_signal, dl.lora_rssi, dl.connection_type,
	dl."time", dl."timestamp"`

func scanDeviceLocation(rows pgx.Rows, tag model.Visibility) (model.DeviceLocation, error) {
	var l model.DeviceLocation
	var ts *time.Time
	err := rows.Scan(&l.DeviceID, &l.OwnerUUID, &l.OwnerEmail, &l.OwnerNickname, &l.DeviceName,
		&l.Latitude, &l.Longitude, &l.Altitude, &l.Speed, &l.Battery, &l.BatteryMV,
		&l.Bark, &l.Satellites, &l.LTESignal, &l.LoraRSSI, &l.ConnectionType, &l.Time, &ts)
	if err != nil {
		return l, err
	}
	if ts != nil {
		l.Timestamp = *ts
	}
	l.Type = tag
	return l, nil
}

func (p *PgStore) DeviceLocations(ctx context.Context, uuid string) ([]model.DeviceLocation, error) {
	var out []model.DeviceLocation
	own, err := p.queryDeviceLocations(ctx,
		`SELECT `+deviceLocCols+`
		 FROM device d JOIN "user" u ON d.owner_uuid = u.uuid
		 LEFT JOIN device_location dl ON d.imei = dl.device_id
		 WHERE d.owner_uuid = $1`, uuid, model.VisibilityOwn)
	if err != nil {
		return nil, err
	}
	out = append(out, own...)
	shared, err := p.queryDeviceLocations(ctx,
		`SELECT `+deviceLocCols+`
		 FROM device_share ds JOIN device d ON ds.device_imei = d.imei
		 JOIN "user" u ON d.owner_uuid = u.uuid
		 LEFT JOIN device_location dl ON d.imei = dl.device_id
		 WHERE ds.shared_with_uuid = $1`, uuid, model.VisibilityShared)
	if err != nil {
		return nil, err
	}
	return append(out, shared...), nil
}

func (p *PgStore) queryDeviceLocations(ctx context.Context, query, arg string, tag model.Visibility) ([]model.DeviceLocation, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DeviceLocation
	for rows.Next() {
		l, err := scanDeviceLocation(rows, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *PgStore) DeviceLocationByIMEI(ctx context.Context, imei string) (model.DeviceLocation, error) {
	locs, err := p.queryDeviceLocations(ctx,
		`SELECT `+deviceLocCols+`
		 FROM device d JOIN "user" u ON d.owner_uuid = u.uuid
		 LEFT JOIN device_location dl ON d.imei = dl.device_id
		 WHERE d.imei = $1`, imei, "")
	if err != nil {
		return model.DeviceLocation{}, err
	}
	if len(locs) == 0 {
		return model.DeviceLocation{}, store.ErrNotFound
	}
	return locs[0], nil
}
