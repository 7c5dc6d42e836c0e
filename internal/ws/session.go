package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"woofpack.dev/dogtracker/internal/model"
	"woofpack.dev/dogtracker/internal/store"
)

// session is the per-connection state machine after a successful
// handshake. One goroutine (ServeHTTP) runs the read loop; Send may be
// called from any fan-out goroutine and serializes writes itself.
type session struct {
	srv     *Server
	c       *websocket.Conn
	uid     string
	created time.Time
	writeMu sync.Mutex
	logger  zerolog.Logger
}

func newSession(srv *Server, c *websocket.Conn, uid string) *session {
	return &session{
		srv:     srv,
		c:       c,
		uid:     uid,
		created: time.Now(),
		logger:  srv.logger.With().Str("uid", uid).Logger(),
	}
}

// Send delivers one push frame. Delivery deliberately ignores the
// caller's context: a sender disconnecting mid-fan-out must not fail
// deliveries to unrelated recipients.
func (sess *session) Send(_ context.Context, msg model.Push) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.c.Write(ctx, websocket.MessageText, b)
}

// sendSnapshot pushes the connect-time state in a fixed sequence:
// friend locations, device locations, groups. Empty categories send
// nothing.
func (sess *session) sendSnapshot(ctx context.Context) {
	pushes, err := snapshotPushes(ctx, sess.srv.st, sess.uid)
	if err != nil {
		sess.logger.Err(err).Msg("error assembling initial snapshot")
		return
	}
	for _, p := range pushes {
		if err := sess.Send(ctx, p); err != nil {
			sess.logger.Err(err).Str("type", p.Type).Msg("error sending initial snapshot")
			return
		}
	}
}

func snapshotPushes(ctx context.Context, st store.Store, uid string) ([]model.Push, error) {
	var pushes []model.Push
	friendLocs, err := st.FriendLocations(ctx, uid, false)
	if err != nil {
		return nil, err
	}
	if len(friendLocs) > 0 {
		pushes = append(pushes, model.UserLocationsPush(friendLocs))
	}
	deviceLocs, err := st.DeviceLocations(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(deviceLocs) > 0 {
		pushes = append(pushes, model.DeviceLocationsPush(deviceLocs))
	}
	groups, err := st.GroupsFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		pushes = append(pushes, model.GroupsPush(groups))
	}
	return pushes, nil
}

// readLoop processes inbound messages one at a time until the
// transport drops. A failure handling one message never ends the
// session.
func (sess *session) readLoop(ctx context.Context) {
	for {
		_, data, err := sess.c.Read(ctx)
		if err != nil {
			sess.logger.Info().Err(err).Msg("connection closed")
			return
		}
		sess.handleMessage(ctx, data)
	}
}

func (sess *session) handleMessage(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			sess.logger.Error().Interface("panic", r).Msg("recovered from message handler")
		}
	}()

	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		sess.logger.Warn().Err(err).Msg("malformed message dropped")
		return
	}
	now := time.Now()
	switch env.Type {
	case model.MsgUserLocation:
		rec, err := sess.srv.norm.NormalizeUserReport(sess.uid, env.Data, now)
		if err != nil {
			sess.logger.Warn().Err(err).Msg("invalid user location dropped")
			return
		}
		if err := sess.srv.router.RouteUserUpdate(ctx, rec); err != nil {
			sess.logger.Err(err).Msg("error routing user location")
		}
	case model.MsgDeviceLocation:
		rec, err := sess.srv.norm.NormalizeDeviceReport(ctx, sess.uid, env.Data, now)
		if err != nil {
			// Fire-and-forget: rejected device reports are dropped
			// without a reply frame.
			sess.logger.Warn().Err(err).Msg("device location dropped")
			return
		}
		if err := sess.srv.router.RouteDeviceUpdate(ctx, rec); err != nil {
			sess.logger.Err(err).Msg("error routing device location")
		}
	default:
		sess.logger.Warn().Str("type", env.Type).Msg("unknown message type")
	}
}
