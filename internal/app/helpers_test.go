package app_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type fakeHandle struct {
	id     string
	ch     chan domain.OutboundMessage
	fail   error
	closed atomic.Bool
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, ch: make(chan domain.OutboundMessage, 64)}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Send(msg domain.OutboundMessage) error {
	if h.fail != nil {
		return h.fail
	}
	if h.closed.Load() {
		return domain.ErrHandleClosed
	}
	select {
	case h.ch <- msg:
		return nil
	default:
		return domain.ErrSlowConsumer
	}
}

func (h *fakeHandle) Close() { h.closed.Store(true) }

func (h *fakeHandle) next(t *testing.T) domain.OutboundMessage {
	t.Helper()
	select {
	case msg := <-h.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("handle %s: no message received", h.id)
		return nil
	}
}

func (h *fakeHandle) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-h.ch:
		t.Fatalf("handle %s: unexpected message %#v", h.id, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type engine struct {
	clock      *clockwork.FakeClock
	registry   *app.Registry
	dispatcher *app.Dispatcher
	scheduler  *app.Scheduler
}

func newEngine(t *testing.T, grace time.Duration) *engine {
	t.Helper()
	return newEngineWithPresence(t, grace, nil)
}

func newEngineWithPresence(t *testing.T, grace time.Duration, presence app.Presence) *engine {
	t.Helper()
	clock := clockwork.NewFakeClock()
	registry := app.NewRegistry(app.RegistryConfig{Clock: clock, GracePeriod: grace, Presence: presence})
	dispatcher := app.NewDispatcher(app.DispatcherConfig{Registry: registry})
	scheduler := app.NewScheduler(app.SchedulerConfig{
		Clock:      clock,
		Registry:   registry,
		Dispatcher: dispatcher,
	})
	registry.OnEmpty(scheduler.CancelIfEmpty)
	t.Cleanup(scheduler.Stop)
	return &engine{clock: clock, registry: registry, dispatcher: dispatcher, scheduler: scheduler}
}

// join adds a handle and drains its join snapshot.
func (e *engine) join(t *testing.T, roomID string, h *fakeHandle) domain.RoomView {
	t.Helper()
	view, err := e.registry.Join(roomID, h)
	if err != nil {
		t.Fatalf("join %s: %v", h.id, err)
	}
	if msg, ok := h.next(t).(domain.Snapshot); !ok || msg.Room != view {
		t.Fatalf("expected join snapshot %+v, got %#v", view, msg)
	}
	return view
}

// tick advances one interval and returns what each handle received.
func (e *engine) tick(t *testing.T, handles ...*fakeHandle) []domain.OutboundMessage {
	t.Helper()
	e.clock.Advance(app.DefaultTickInterval)
	out := make([]domain.OutboundMessage, len(handles))
	for i, h := range handles {
		out[i] = h.next(t)
	}
	return out
}
