// Package registry tracks which principals currently hold a live
// socket. It is the single source of truth for reachability; every
// outbound push goes through Send.
package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"woofpack.dev/dogtracker/internal/model"
)

// Handle is a live outbound transport for one principal. Send must be
// safe for concurrent use and return an error once the transport is
// dead.
type Handle interface {
	Send(ctx context.Context, msg model.Push) error
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]Handle
	logger   zerolog.Logger
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]Handle),
		logger:   logger.With().Str("module", "registry").Logger(),
	}
}

// Register maps the principal to the handle, unconditionally replacing
// any previous mapping. The superseded transport is not closed here;
// its own session notices the broken socket and tears itself down.
func (r *Registry) Register(uid string, h Handle) {
	r.mu.Lock()
	_, replaced := r.sessions[uid]
	r.sessions[uid] = h
	r.mu.Unlock()
	r.logger.Info().Str("uid", uid).Bool("replaced", replaced).Msg("session registered")
}

// Unregister removes the mapping only while it still points at h. A
// late unregister from a replaced session must not clobber the fresher
// mapping.
func (r *Registry) Unregister(uid string, h Handle) {
	r.mu.Lock()
	cur, ok := r.sessions[uid]
	if ok && cur == h {
		delete(r.sessions, uid)
		r.mu.Unlock()
		r.logger.Info().Str("uid", uid).Msg("session unregistered")
		return
	}
	r.mu.Unlock()
}

// Send delivers msg to the principal's live session. Absent principals
// are a no-op. A transport failure purges the dead entry so later
// sends short-circuit.
func (r *Registry) Send(ctx context.Context, uid string, msg model.Push) {
	r.mu.Lock()
	h, ok := r.sessions[uid]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := h.Send(ctx, msg); err != nil {
		r.logger.Error().Err(err).Str("uid", uid).Str("type", msg.Type).Msg("send failed, dropping session")
		r.Unregister(uid, h)
	}
}

func (r *Registry) IsOnline(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[uid]
	return ok
}
