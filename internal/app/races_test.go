package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// gatedPresence holds every publication until release is called and records
// what it was asked to publish.
type gatedPresence struct {
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []string
}

func newGatedPresence() *gatedPresence {
	return &gatedPresence{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
}

func (p *gatedPresence) RoomChanged(_ context.Context, v domain.RoomView) {
	p.wait()
	p.record(fmt.Sprintf("changed %s %s %d/%d", v.RoomID, v.State, v.SecondsRemaining, v.Participants))
}

func (p *gatedPresence) RoomRemoved(_ context.Context, roomID string) {
	p.wait()
	p.record("removed " + roomID)
}

func (p *gatedPresence) wait() {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.gate
}

func (p *gatedPresence) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *gatedPresence) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *gatedPresence) release() { p.once.Do(func() { close(p.gate) }) }

func (p *gatedPresence) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("presence was never called")
	}
}

// gatedHandle blocks delivery of the expiry message until gate is closed.
type gatedHandle struct {
	*fakeHandle
	gate    chan struct{}
	entered chan struct{}
}

func (h *gatedHandle) Send(msg domain.OutboundMessage) error {
	if _, ok := msg.(domain.Expired); ok {
		close(h.entered)
		<-h.gate
	}
	return h.fakeHandle.Send(msg)
}

func TestRejoinBeforeEmptyHookKeepsCountdown(t *testing.T) {
	e := newEngine(t, time.Minute)
	gate := make(chan struct{})
	entered := make(chan struct{})
	e.registry.OnEmpty(func(roomID string) {
		close(entered)
		<-gate
		e.scheduler.CancelIfEmpty(roomID)
	})

	alice := newFakeHandle("alice")
	e.join(t, "R1", alice)
	_, err := e.scheduler.Start("R1")
	require.NoError(t, err)

	left := make(chan struct{})
	go func() {
		defer close(left)
		e.registry.Leave("R1", alice)
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("empty-room hook not called")
	}

	bob := newFakeHandle("bob")
	view := e.join(t, "R1", bob)
	require.Equal(t, domain.RoomRunning, view.State)
	state, err := e.scheduler.Start("R1")
	require.NoError(t, err)
	require.Equal(t, domain.RoomRunning, state.State)

	close(gate)
	<-left

	job, err := e.scheduler.Job("R1")
	require.NoError(t, err, "countdown survives the late hook")
	require.Equal(t, domain.RoomRunning, job.State)
	view, err = e.registry.Snapshot("R1")
	require.NoError(t, err)
	require.Equal(t, domain.RoomRunning, view.State)
	require.Equal(t, 1, view.Participants)
	require.Equal(t, domain.Tick{Remaining: 29}, e.tick(t, bob)[0])
}

func TestSlowPresenceDoesNotStallScheduler(t *testing.T) {
	p := newGatedPresence()
	t.Cleanup(p.release)
	e := newEngineWithPresence(t, time.Minute, p)

	alice, bob := newFakeHandle("alice"), newFakeHandle("bob")
	e.join(t, "R1", alice)
	e.join(t, "R2", bob)
	p.waitEntered(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.scheduler.Start("R1")
		e.scheduler.Cancel("R1")
		_, _ = e.scheduler.Start("R2")
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler blocked behind presence")
	}
	require.Equal(t, domain.Tick{Remaining: 29}, e.tick(t, bob)[0])

	p.release()
	e.registry.FlushPresence()
	events := p.recorded()
	require.NotEmpty(t, events)
	last := map[string]string{}
	for _, ev := range events {
		var kind, room string
		_, _ = fmt.Sscanf(ev, "%s %s", &kind, &room)
		last[room] = ev
	}
	require.Equal(t, "changed R1 idle 30/1", last["R1"])
	require.Equal(t, "changed R2 running 30/1", last["R2"])
}

func TestPresenceNeverRevivesRemovedRoom(t *testing.T) {
	p := newGatedPresence()
	t.Cleanup(p.release)
	e := newEngineWithPresence(t, time.Minute, p)

	alice := newFakeHandle("alice")
	e.join(t, "R1", alice)
	p.waitEntered(t)

	e.registry.Leave("R1", alice)
	e.registry.Teardown("R1")
	p.release()
	e.registry.FlushPresence()
	require.Equal(t, []string{"changed R1 idle 30/1", "removed R1"}, p.recorded())
}

func TestPresenceEndsWithRemovalUnderChurn(t *testing.T) {
	p := newGatedPresence()
	p.release()
	e := newEngineWithPresence(t, time.Minute, p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := newFakeHandle(fmt.Sprintf("p%d", i))
			if _, err := e.registry.Join("R1", h); err == nil {
				e.registry.Leave("R1", h)
			}
		}()
	}
	wg.Wait()
	e.registry.Teardown("R1")
	e.registry.FlushPresence()

	events := p.recorded()
	require.NotEmpty(t, events)
	require.Equal(t, "removed R1", events[len(events)-1])
}

func TestJoinRacingExpiryLandsInFreshRoom(t *testing.T) {
	e := newEngine(t, time.Minute)
	alice := &gatedHandle{fakeHandle: newFakeHandle("alice"), gate: make(chan struct{}), entered: make(chan struct{})}
	_, err := e.registry.Join("R1", alice)
	require.NoError(t, err)
	alice.next(t)

	_, err = e.scheduler.Start("R1")
	require.NoError(t, err)
	for i := 0; i < 29; i++ {
		e.tick(t, alice.fakeHandle)
	}

	e.clock.Advance(app.DefaultTickInterval)
	select {
	case <-alice.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry not dispatched")
	}

	bob := newFakeHandle("bob")
	joined := make(chan domain.RoomView, 1)
	go func() {
		view, _ := e.registry.Join("R1", bob)
		joined <- view
	}()
	time.Sleep(20 * time.Millisecond)
	close(alice.gate)

	require.Equal(t, domain.Expired{}, alice.next(t))
	var view domain.RoomView
	select {
	case view = <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("join did not complete")
	}
	require.Equal(t, domain.RoomView{RoomID: "R1", State: domain.RoomIdle, SecondsRemaining: 30, Participants: 1}, view)
	require.Equal(t, domain.Snapshot{Room: view}, bob.next(t))

	require.Eventually(t, alice.closed.Load, time.Second, 5*time.Millisecond)
	require.False(t, bob.closed.Load(), "late joiner is not closed with the expired room")
	e.clock.Advance(app.DefaultTickInterval)
	bob.expectNothing(t)
}

func TestResetResynchronizesParticipants(t *testing.T) {
	e := newEngine(t, time.Minute)
	alice, bob := newFakeHandle("alice"), newFakeHandle("bob")
	e.join(t, "R1", alice)
	e.join(t, "R1", bob)

	_, err := e.scheduler.Start("R1")
	require.NoError(t, err)
	e.tick(t, alice, bob)
	e.tick(t, alice, bob)

	view, err := e.scheduler.Reset(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, domain.RoomView{RoomID: "R1", State: domain.RoomIdle, SecondsRemaining: 30, Participants: 2}, view)
	for _, h := range []*fakeHandle{alice, bob} {
		require.Equal(t, domain.Snapshot{Room: view}, h.next(t))
	}

	e.clock.Advance(app.DefaultTickInterval)
	alice.expectNothing(t)
	_, err = e.scheduler.Job("R1")
	require.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = e.scheduler.Reset(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}
