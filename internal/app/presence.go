package app

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// presenceQueue publishes room lifecycle changes to a Presence off the
// engine's locks. Pending updates are coalesced per room to the latest one and
// published by a single drain goroutine, so a room's updates reach the
// Presence in the order they were queued. Callers queue while holding the
// room's lock.
type presenceQueue struct {
	presence Presence

	mu      sync.Mutex
	idle    *sync.Cond
	pending map[string]presenceUpdate
	order   []string
	running bool
}

type presenceUpdate struct {
	view    domain.RoomView
	removed bool
}

func newPresenceQueue(p Presence) *presenceQueue {
	q := &presenceQueue{presence: p, pending: make(map[string]presenceUpdate)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

func (q *presenceQueue) push(roomID string, u presenceUpdate) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[roomID]; !ok {
		q.order = append(q.order, roomID)
	}
	q.pending[roomID] = u
	if !q.running {
		q.running = true
		go q.drain()
	}
}

func (q *presenceQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.order) == 0 {
			q.running = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		roomID := q.order[0]
		q.order = q.order[1:]
		u := q.pending[roomID]
		delete(q.pending, roomID)
		q.mu.Unlock()

		if u.removed {
			q.presence.RoomRemoved(context.Background(), roomID)
		} else {
			q.presence.RoomChanged(context.Background(), u.view)
		}
	}
}

// flush blocks until every queued update has been published.
func (q *presenceQueue) flush() {
	if q == nil {
		return
	}
	q.mu.Lock()
	for q.running {
		q.idle.Wait()
	}
	q.mu.Unlock()
}
