package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/telemetry"
)

// Handle is one live participant connection. Send must not block.
type Handle interface {
	ID() string
	Send(msg domain.OutboundMessage) error
	Close()
}

// Presence observes room lifecycle changes (e.g. a Redis liveness marker).
type Presence interface {
	RoomChanged(ctx context.Context, view domain.RoomView)
	RoomRemoved(ctx context.Context, roomID string)
}

type RegistryConfig struct {
	Clock          clockwork.Clock
	GracePeriod    time.Duration
	CountdownStart int
	Presence       Presence
}

// Registry tracks live rooms and their participant handles.
type Registry struct {
	clock    clockwork.Clock
	grace    time.Duration
	start    int
	presence *presenceQueue

	mu      sync.Mutex
	rooms   map[string]*room
	onEmpty func(roomID string)
}

// room holds per-room state. Lock order: sendMu, then the registry lock, then
// mu. The registry lock is never held while waiting for sendMu.
type room struct {
	id string

	// sendMu serializes broadcasts and joins so every handle sees messages in
	// broadcast order and a snapshot never trails a tick.
	sendMu sync.Mutex

	mu        sync.Mutex
	handles   map[string]Handle
	state     domain.RoomState
	remaining int
	removed   bool
	grace     clockwork.Timer
	graceGen  uint64
}

func NewRegistry(c RegistryConfig) *Registry {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.CountdownStart <= 0 {
		c.CountdownStart = DefaultCountdownStart
	}
	r := &Registry{
		clock: c.Clock,
		grace: c.GracePeriod,
		start: c.CountdownStart,
		rooms: make(map[string]*room),
	}
	if c.Presence != nil {
		r.presence = newPresenceQueue(c.Presence)
	}
	return r
}

// OnEmpty registers the hook invoked when a room loses its last participant.
func (r *Registry) OnEmpty(fn func(roomID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEmpty = fn
}

// Join adds h to the room, creating the room if needed. The returned view is
// also enqueued on h as a snapshot before any later broadcast.
func (r *Registry) Join(roomID string, h Handle) (domain.RoomView, error) {
	if roomID == "" {
		return domain.RoomView{}, fmt.Errorf("%w: empty room id", domain.ErrInvalidInput)
	}

	for {
		rm := r.getOrCreate(roomID)

		rm.sendMu.Lock()
		rm.mu.Lock()
		if rm.removed {
			// Reaped between lookup and lock; retry against a fresh room.
			rm.mu.Unlock()
			rm.sendMu.Unlock()
			continue
		}
		rm.stopGraceLocked()
		rm.handles[h.ID()] = h
		view := rm.viewLocked()
		if err := h.Send(domain.Snapshot{Room: view}); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("handle_id", h.ID()).Msg("snapshot not delivered")
		}
		r.notifyChanged(view)
		rm.mu.Unlock()
		rm.sendMu.Unlock()

		log.Debug().Str("room_id", roomID).Str("handle_id", h.ID()).Int("participants", view.Participants).Msg("participant joined")
		return view, nil
	}
}

func (r *Registry) getOrCreate(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[roomID]; ok {
		return rm
	}
	rm := &room{
		id:        roomID,
		handles:   make(map[string]Handle),
		state:     domain.RoomIdle,
		remaining: r.start,
	}
	r.rooms[roomID] = rm
	telemetry.ActiveRooms.Inc()
	log.Info().Str("room_id", roomID).Msg("room created")
	return rm
}

// Leave removes h from the room. Leaving twice or leaving an unknown room is a no-op.
func (r *Registry) Leave(roomID string, h Handle) {
	rm, ok := r.lookup(roomID)
	if !ok {
		return
	}

	rm.mu.Lock()
	cur, ok := rm.handles[h.ID()]
	if rm.removed || !ok || cur != h {
		rm.mu.Unlock()
		return
	}
	delete(rm.handles, h.ID())
	emptied := len(rm.handles) == 0
	view := rm.viewLocked()
	r.notifyChanged(view)
	rm.mu.Unlock()

	log.Debug().Str("room_id", roomID).Str("handle_id", h.ID()).Int("participants", view.Participants).Msg("participant left")

	if !emptied {
		return
	}

	r.mu.Lock()
	onEmpty := r.onEmpty
	r.mu.Unlock()
	if onEmpty != nil {
		onEmpty(roomID)
	}
	r.scheduleReap(rm)
}

func (r *Registry) scheduleReap(rm *room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.removed || len(rm.handles) > 0 {
		return
	}
	rm.stopGraceLocked()
	gen := rm.graceGen
	rm.grace = r.clock.AfterFunc(r.grace, func() { r.reap(rm, gen) })
}

// reap removes an empty, non-running room once its grace period elapses.
func (r *Registry) reap(rm *room, gen uint64) {
	r.mu.Lock()
	rm.mu.Lock()
	if rm.removed || rm.graceGen != gen || len(rm.handles) > 0 || rm.state == domain.RoomRunning {
		rm.mu.Unlock()
		r.mu.Unlock()
		return
	}
	rm.removed = true
	rm.grace = nil
	if r.rooms[rm.id] == rm {
		delete(r.rooms, rm.id)
		telemetry.ActiveRooms.Dec()
	}
	r.notifyRemoved(rm.id)
	rm.mu.Unlock()
	r.mu.Unlock()

	log.Info().Str("room_id", rm.id).Msg("empty room removed")
}

// Teardown removes the room immediately and returns the handles it held.
func (r *Registry) Teardown(roomID string) []Handle {
	rm, ok := r.lookup(roomID)
	if !ok {
		return nil
	}
	rm.sendMu.Lock()
	defer rm.sendMu.Unlock()
	return r.remove(rm)
}

// remove deletes rm from the registry. The caller holds rm.sendMu, so no join
// or broadcast can observe the room between its last message and removal.
func (r *Registry) remove(rm *room) []Handle {
	r.mu.Lock()
	rm.mu.Lock()
	if rm.removed {
		rm.mu.Unlock()
		r.mu.Unlock()
		return nil
	}
	rm.removed = true
	rm.stopGraceLocked()
	if r.rooms[rm.id] == rm {
		delete(r.rooms, rm.id)
		telemetry.ActiveRooms.Dec()
	}
	handles := rm.handleListLocked()
	rm.handles = make(map[string]Handle)
	r.notifyRemoved(rm.id)
	rm.mu.Unlock()
	r.mu.Unlock()

	log.Info().Str("room_id", rm.id).Int("participants", len(handles)).Msg("room torn down")
	return handles
}

// Snapshot returns the room's current countdown and participant count.
func (r *Registry) Snapshot(roomID string) (domain.RoomView, error) {
	rm, ok := r.lookup(roomID)
	if !ok {
		return domain.RoomView{}, domain.ErrRoomNotFound
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.removed {
		return domain.RoomView{}, domain.ErrRoomNotFound
	}
	return rm.viewLocked(), nil
}

// Rooms lists every live room ordered by ID.
func (r *Registry) Rooms() []domain.RoomView {
	r.mu.Lock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.Unlock()

	views := make([]domain.RoomView, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		if !rm.removed {
			views = append(views, rm.viewLocked())
		}
		rm.mu.Unlock()
	}
	sort.Slice(views, func(i, j int) bool { return views[i].RoomID < views[j].RoomID })
	return views
}

// setCountdown records a scheduler state transition on the room.
func (r *Registry) setCountdown(roomID string, state domain.RoomState, remaining int) error {
	rm, ok := r.lookup(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	rm.mu.Lock()
	if rm.removed {
		rm.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	rm.state = state
	rm.remaining = remaining
	r.notifyChanged(rm.viewLocked())
	rm.mu.Unlock()
	return nil
}

// resetIfEmpty returns the room to idle when nobody is in it. It reports
// false, leaving the room untouched, if a participant is present. A room that
// no longer exists counts as empty.
func (r *Registry) resetIfEmpty(roomID string) bool {
	rm, ok := r.lookup(roomID)
	if !ok {
		return true
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.removed {
		return true
	}
	if len(rm.handles) > 0 {
		return false
	}
	rm.state = domain.RoomIdle
	rm.remaining = r.start
	r.notifyChanged(rm.viewLocked())
	return true
}

// FlushPresence waits until every room change has reached the Presence.
func (r *Registry) FlushPresence() {
	r.presence.flush()
}

func (r *Registry) lookup(roomID string) (*room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// notifyChanged and notifyRemoved queue presence updates; callers hold rm.mu.
func (r *Registry) notifyChanged(view domain.RoomView) {
	r.presence.push(view.RoomID, presenceUpdate{view: view})
}

func (r *Registry) notifyRemoved(roomID string) {
	r.presence.push(roomID, presenceUpdate{removed: true})
}

func (rm *room) viewLocked() domain.RoomView {
	return domain.RoomView{
		RoomID:           rm.id,
		State:            rm.state,
		SecondsRemaining: rm.remaining,
		Participants:     len(rm.handles),
	}
}

func (rm *room) handleListLocked() []Handle {
	out := make([]Handle, 0, len(rm.handles))
	for _, h := range rm.handles {
		out = append(out, h)
	}
	return out
}

func (rm *room) stopGraceLocked() {
	rm.graceGen++
	if rm.grace != nil {
		rm.grace.Stop()
		rm.grace = nil
	}
}

// applyLocked folds a broadcast countdown message into the room state so
// snapshots always match the last value delivered.
func (rm *room) applyLocked(msg domain.OutboundMessage) {
	switch m := msg.(type) {
	case domain.Tick:
		rm.state = domain.RoomRunning
		rm.remaining = m.Remaining
	case domain.Expired:
		rm.state = domain.RoomExpired
		rm.remaining = 0
	}
}
