// Package ws serves the bidirectional phone socket: token handshake,
// initial snapshot burst, then a per-connection inbound loop feeding
// the fan-out router.
package ws

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"woofpack.dev/dogtracker/internal/fanout"
	"woofpack.dev/dogtracker/internal/registry"
	"woofpack.dev/dogtracker/internal/store"
)

// Handshake rejections use distinct close codes so clients can tell a
// forgotten token from a stale one.
const (
	StatusTokenRequired websocket.StatusCode = 4001
	StatusInvalidToken  websocket.StatusCode = 4002
)

// TokenVerifier resolves an identity token to a principal id.
type TokenVerifier interface {
	Verify(token string) (string, bool)
}

type Server struct {
	logger   zerolog.Logger
	reg      *registry.Registry
	router   *fanout.Router
	norm     *fanout.Normalizer
	st       store.Store
	verifier TokenVerifier
}

func NewServer(reg *registry.Registry, router *fanout.Router, norm *fanout.Normalizer, st store.Store, verifier TokenVerifier, logger zerolog.Logger) *Server {
	return &Server{
		logger:   logger.With().Str("module", "websocket").Logger(),
		reg:      reg,
		router:   router,
		norm:     norm,
		st:       st,
		verifier: verifier,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.logger.Err(err).Msg("error while upgrading websocket")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		_ = c.Close(StatusTokenRequired, "token required")
		return
	}
	uid, ok := s.verifier.Verify(token)
	if !ok {
		_ = c.Close(StatusInvalidToken, "invalid token")
		return
	}

	sess := newSession(s, c, uid)
	s.reg.Register(uid, sess)
	defer func() {
		s.reg.Unregister(uid, sess)
		_ = c.Close(websocket.StatusNormalClosure, "")
	}()

	sess.sendSnapshot(r.Context())
	sess.readLoop(r.Context())
}

// writeTimeout bounds a single outbound frame; a stuck client trips
// the registry's purge-on-failure path instead of stalling fan-out.
const writeTimeout = 10 * time.Second
