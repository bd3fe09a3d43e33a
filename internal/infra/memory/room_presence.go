package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// RoomPresence is an in-memory implementation of app.Presence. It mirrors the
// last known view of every live room.
type RoomPresence struct {
	mu    sync.RWMutex
	rooms map[string]domain.RoomView
}

func NewRoomPresence() *RoomPresence {
	return &RoomPresence{rooms: make(map[string]domain.RoomView)}
}

func (p *RoomPresence) RoomChanged(_ context.Context, view domain.RoomView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[view.RoomID] = view
}

func (p *RoomPresence) RoomRemoved(_ context.Context, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
}

func (p *RoomPresence) Get(roomID string) (domain.RoomView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	view, ok := p.rooms[roomID]
	return view, ok
}

func (p *RoomPresence) Rooms() []domain.RoomView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.RoomView, 0, len(p.rooms))
	for _, v := range p.rooms {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
