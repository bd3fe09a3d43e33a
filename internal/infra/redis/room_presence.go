package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/domain"
)

const presenceTimeout = 2 * time.Second

// RoomPresence marks room liveness in Redis so other instances (and operators)
// can see which rooms are live:
//
//	HSET quiz:room:{id} state <state> seconds_remaining <n> participants <n>
//
// Writes are best effort; failures are logged and never reach the room.
type RoomPresence struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRoomPresence(client redis.UniversalClient, ttl time.Duration) *RoomPresence {
	return &RoomPresence{client: client, ttl: ttl}
}

func (p *RoomPresence) RoomChanged(ctx context.Context, view domain.RoomView) {
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	key := p.key(view.RoomID)
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, key,
		"state", string(view.State),
		"seconds_remaining", view.SecondsRemaining,
		"participants", view.Participants,
	)
	if p.ttl > 0 {
		pipe.Expire(ctx, key, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("room_id", view.RoomID).Msg("presence update failed")
	}
}

func (p *RoomPresence) RoomRemoved(ctx context.Context, roomID string) {
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	if err := p.client.Del(ctx, p.key(roomID)).Err(); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("presence removal failed")
	}
}

// Lookup reads the last published view of a room.
func (p *RoomPresence) Lookup(ctx context.Context, roomID string) (domain.RoomView, error) {
	fields, err := p.client.HGetAll(ctx, p.key(roomID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.RoomView{}, err
	}
	if len(fields) == 0 {
		return domain.RoomView{}, domain.ErrRoomNotFound
	}
	remaining, _ := strconv.Atoi(fields["seconds_remaining"])
	participants, _ := strconv.Atoi(fields["participants"])
	return domain.RoomView{
		RoomID:           roomID,
		State:            domain.RoomState(fields["state"]),
		SecondsRemaining: remaining,
		Participants:     participants,
	}, nil
}

func (p *RoomPresence) key(roomID string) string {
	return "quiz:room:" + roomID
}
