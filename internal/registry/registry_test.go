package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"woofpack.dev/dogtracker/internal/model"
)

type mockHandle struct {
	mu   sync.Mutex
	got  []model.Push
	fail bool
}

func (h *mockHandle) Send(ctx context.Context, msg model.Push) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("broken transport")
	}
	h.got = append(h.got, msg)
	return nil
}

func (h *mockHandle) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

func TestRegisterReplaces(t *testing.T) {
	r := New(zerolog.Nop())
	h1 := &mockHandle{}
	h2 := &mockHandle{}
	r.Register("alice", h1)
	r.Register("alice", h2)

	r.Send(context.Background(), "alice", model.Push{Type: "test"})
	if h1.count() != 0 {
		t.Errorf("superseded handle received %d messages", h1.count())
	}
	if h2.count() != 1 {
		t.Errorf("current handle received %d messages, want 1", h2.count())
	}
}

func TestStaleUnregisterKeepsCurrent(t *testing.T) {
	r := New(zerolog.Nop())
	h1 := &mockHandle{}
	h2 := &mockHandle{}
	r.Register("alice", h1)
	r.Register("alice", h2)
	r.Unregister("alice", h1)

	if !r.IsOnline("alice") {
		t.Fatal("stale unregister removed the fresh session")
	}
	r.Send(context.Background(), "alice", model.Push{Type: "test"})
	if h2.count() != 1 {
		t.Errorf("current handle received %d messages, want 1", h2.count())
	}
}

func TestUnregisterOwnHandle(t *testing.T) {
	r := New(zerolog.Nop())
	h := &mockHandle{}
	r.Register("alice", h)
	r.Unregister("alice", h)
	if r.IsOnline("alice") {
		t.Fatal("alice still online after unregister")
	}
}

func TestSendToAbsentIsNoop(t *testing.T) {
	r := New(zerolog.Nop())
	r.Send(context.Background(), "nobody", model.Push{Type: "test"})
}

func TestSendFailurePurges(t *testing.T) {
	r := New(zerolog.Nop())
	h := &mockHandle{fail: true}
	r.Register("alice", h)

	r.Send(context.Background(), "alice", model.Push{Type: "test"})
	if r.IsOnline("alice") {
		t.Fatal("alice still online after failed send")
	}
}
