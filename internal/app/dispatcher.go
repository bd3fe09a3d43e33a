package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/telemetry"
)

const defaultFanOut = 64

// DeliveryFailure records one handle that could not be reached.
type DeliveryFailure struct {
	Handle Handle
	Err    error
}

// DeliveryReport summarizes one broadcast.
type DeliveryReport struct {
	RoomID    string
	Delivered int
	Failed    []DeliveryFailure
}

type DispatcherConfig struct {
	Registry *Registry
	// MaxConcurrent bounds the per-broadcast fan-out goroutines.
	MaxConcurrent int
}

// Dispatcher fans messages out to every handle registered in a room.
type Dispatcher struct {
	registry *Registry
	limit    int
}

func NewDispatcher(c DispatcherConfig) *Dispatcher {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultFanOut
	}
	return &Dispatcher{registry: c.Registry, limit: c.MaxConcurrent}
}

// Broadcast sends msg to every handle in the room. A failing handle never
// blocks the others; failures come back in the report. Broadcasts to the same
// room are delivered to each handle in call order.
func (d *Dispatcher) Broadcast(ctx context.Context, roomID string, msg domain.OutboundMessage) (DeliveryReport, error) {
	report, _, err := d.deliver(ctx, roomID, func(rm *room) domain.OutboundMessage {
		rm.applyLocked(msg)
		return msg
	}, false)
	return report, err
}

// BroadcastFinal sends msg like Broadcast and then removes the room before any
// join can observe it. It returns the removed room's handles for the caller to
// close; a join racing the final message lands in a fresh room.
func (d *Dispatcher) BroadcastFinal(ctx context.Context, roomID string, msg domain.OutboundMessage) (DeliveryReport, []Handle, error) {
	return d.deliver(ctx, roomID, func(rm *room) domain.OutboundMessage {
		rm.applyLocked(msg)
		return msg
	}, true)
}

// Resync sends every handle a snapshot of the room's current view, ordered
// with the room's other broadcasts.
func (d *Dispatcher) Resync(ctx context.Context, roomID string) (DeliveryReport, error) {
	report, _, err := d.deliver(ctx, roomID, func(rm *room) domain.OutboundMessage {
		return domain.Snapshot{Room: rm.viewLocked()}
	}, false)
	return report, err
}

// deliver fans the message built under the room lock out to the room's
// handles while holding the room's send lock.
func (d *Dispatcher) deliver(ctx context.Context, roomID string, build func(*room) domain.OutboundMessage, final bool) (DeliveryReport, []Handle, error) {
	report := DeliveryReport{RoomID: roomID}

	rm, ok := d.registry.lookup(roomID)
	if !ok {
		return report, nil, domain.ErrRoomNotFound
	}

	rm.sendMu.Lock()
	defer rm.sendMu.Unlock()

	rm.mu.Lock()
	if rm.removed {
		rm.mu.Unlock()
		return report, nil, domain.ErrRoomNotFound
	}
	msg := build(rm)
	targets := rm.handleListLocked()
	rm.mu.Unlock()

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(d.limit)

	for _, h := range targets {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := h.Send(msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, DeliveryFailure{
					Handle: h,
					Err:    fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err),
				})
				return nil
			}
			report.Delivered++
			return nil
		})
	}
	err := eg.Wait()

	if n := len(report.Failed); n > 0 {
		telemetry.DeliveryFailures.Add(float64(n))
	}
	if final {
		return report, d.registry.remove(rm), err
	}
	return report, nil, err
}

// Prune removes and closes every handle that failed in report.
func (d *Dispatcher) Prune(roomID string, report DeliveryReport) {
	for _, f := range report.Failed {
		log.Warn().
			Err(f.Err).
			Str("room_id", roomID).
			Str("handle_id", f.Handle.ID()).
			Msg("dropping unreachable participant")
		d.registry.Leave(roomID, f.Handle)
		f.Handle.Close()
	}
}
