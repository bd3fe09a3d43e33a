package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/telemetry"
)

const (
	DefaultCountdownStart = 30
	DefaultTickInterval   = time.Second
)

type SchedulerConfig struct {
	Clock          clockwork.Clock
	CountdownStart int
	TickInterval   time.Duration
	Registry       *Registry
	Dispatcher     *Dispatcher
}

// JobState describes a countdown job at a point in time.
type JobState struct {
	RoomID    string
	Start     int
	Remaining int
	State     domain.RoomState
	Interval  time.Duration
}

// Scheduler owns at most one countdown job per room.
//
// Lock order: Scheduler.mu, then job.mu, then registry locks.
type Scheduler struct {
	clock      clockwork.Clock
	start      int
	interval   time.Duration
	registry   *Registry
	dispatcher *Dispatcher

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

type job struct {
	roomID   string
	start    int
	interval time.Duration
	ticker   clockwork.Ticker

	remaining atomic.Int64
	state     atomic.Value // domain.RoomState

	// mu is held while a tick is produced and dispatched; cancelled is only
	// read or written under it.
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	stopOnce  sync.Once
}

func NewScheduler(c SchedulerConfig) *Scheduler {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.CountdownStart <= 0 {
		c.CountdownStart = DefaultCountdownStart
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return &Scheduler{
		clock:      c.Clock,
		start:      c.CountdownStart,
		interval:   c.TickInterval,
		registry:   c.Registry,
		dispatcher: c.Dispatcher,
		jobs:       make(map[string]*job),
	}
}

// Start begins the room's countdown. If a countdown is already running the
// call is a no-op that reports the running job.
func (s *Scheduler) Start(roomID string) (JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[roomID]; ok && j.getState() == domain.RoomRunning {
		return j.snapshot(), nil
	}

	if err := s.registry.setCountdown(roomID, domain.RoomRunning, s.start); err != nil {
		return JobState{}, err
	}

	j := &job{
		roomID:   roomID,
		start:    s.start,
		interval: s.interval,
		ticker:   s.clock.NewTicker(s.interval),
		done:     make(chan struct{}),
	}
	j.remaining.Store(int64(s.start))
	j.state.Store(domain.RoomRunning)
	s.jobs[roomID] = j

	s.wg.Add(1)
	go s.run(j)

	log.Info().Str("room_id", roomID).Int("start", s.start).Dur("interval", s.interval).Msg("countdown started")
	return j.snapshot(), nil
}

// Cancel stops the room's countdown. Once Cancel returns no further tick for
// the cancelled job is dispatched. Cancelling an idle room is a no-op.
func (s *Scheduler) Cancel(roomID string) {
	s.cancel(roomID, false)
}

// CancelIfEmpty cancels the room's countdown only if the room has no
// participants at that moment. It is the registry's empty-room hook: whoever
// joins after the last participant left keeps the running countdown.
func (s *Scheduler) CancelIfEmpty(roomID string) {
	s.cancel(roomID, true)
}

func (s *Scheduler) cancel(roomID string, onlyIfEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[roomID]
	if !ok {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		delete(s.jobs, roomID)
		return
	}
	if onlyIfEmpty {
		if !s.registry.resetIfEmpty(roomID) {
			log.Debug().Str("room_id", roomID).Msg("room repopulated; countdown kept")
			return
		}
	} else if j.getState() == domain.RoomRunning {
		// The room may already be gone; nothing to reset then.
		_ = s.registry.setCountdown(roomID, domain.RoomIdle, s.start)
	}
	delete(s.jobs, roomID)
	j.cancelled = true
	j.stop()
	j.state.Store(domain.RoomIdle)

	telemetry.CountdownJobs.WithLabelValues(telemetry.OutcomeCancelled).Inc()
	log.Info().Str("room_id", roomID).Int64("remaining", j.remaining.Load()).Msg("countdown cancelled")
}

// Reset cancels the room's countdown and sends every participant a snapshot of
// the resulting idle view.
func (s *Scheduler) Reset(ctx context.Context, roomID string) (domain.RoomView, error) {
	if _, err := s.registry.Snapshot(roomID); err != nil {
		return domain.RoomView{}, err
	}
	s.Cancel(roomID)

	report, err := s.dispatcher.Resync(ctx, roomID)
	if err != nil {
		return domain.RoomView{}, err
	}
	s.dispatcher.Prune(roomID, report)
	return s.registry.Snapshot(roomID)
}

// Job reports the room's current job, if any.
func (s *Scheduler) Job(roomID string) (JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[roomID]
	if !ok {
		return JobState{}, domain.ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Stop cancels every job and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Cancel(id)
	}
	s.wg.Wait()
}

func (s *Scheduler) run(j *job) {
	defer s.wg.Done()
	defer j.ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-j.ticker.Chan():
		}
		if !s.tick(j) {
			return
		}
	}
}

// tick produces and dispatches one countdown step. It reports whether the job
// should keep running.
func (s *Scheduler) tick(j *job) bool {
	j.mu.Lock()
	if j.cancelled {
		j.mu.Unlock()
		return false
	}

	remaining := int(j.remaining.Add(-1))
	var msg domain.OutboundMessage = domain.Tick{Remaining: remaining}
	if remaining <= 0 {
		msg = domain.Expired{}
	}

	var (
		report  DeliveryReport
		closing []Handle
		err     error
	)
	if remaining <= 0 {
		report, closing, err = s.dispatcher.BroadcastFinal(context.Background(), j.roomID, msg)
	} else {
		report, err = s.dispatcher.Broadcast(context.Background(), j.roomID, msg)
	}
	if err != nil {
		j.cancelled = true
		j.stop()
		j.state.Store(domain.RoomIdle)
		j.mu.Unlock()
		s.forget(j)

		outcome := telemetry.OutcomeCancelled
		if errors.Is(err, domain.ErrRoomNotFound) {
			outcome = telemetry.OutcomeOrphaned
		}
		telemetry.CountdownJobs.WithLabelValues(outcome).Inc()
		log.Warn().Err(err).Str("room_id", j.roomID).Int("remaining", remaining).Msg("countdown dropped: room unavailable")
		return false
	}
	telemetry.TicksDispatched.Inc()

	if remaining <= 0 {
		for _, h := range closing {
			h.Close()
		}
		j.cancelled = true
		j.stop()
		j.state.Store(domain.RoomExpired)
		j.mu.Unlock()
		s.forget(j)

		telemetry.CountdownJobs.WithLabelValues(telemetry.OutcomeExpired).Inc()
		log.Info().Str("room_id", j.roomID).Int("delivered", report.Delivered).Msg("countdown expired")
		return false
	}
	j.mu.Unlock()

	// Pruning may empty the room, which cancels this job through the registry
	// hook; it must run without j.mu held.
	s.dispatcher.Prune(j.roomID, report)
	return true
}

func (s *Scheduler) forget(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.roomID] == j {
		delete(s.jobs, j.roomID)
	}
}

func (j *job) stop() {
	j.stopOnce.Do(func() { close(j.done) })
}

func (j *job) getState() domain.RoomState {
	return j.state.Load().(domain.RoomState)
}

func (j *job) snapshot() JobState {
	return JobState{
		RoomID:    j.roomID,
		Start:     j.start,
		Remaining: int(j.remaining.Load()),
		State:     j.getState(),
		Interval:  j.interval,
	}
}
