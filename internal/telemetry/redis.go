package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MonitorRedis attaches tracing, metrics and a debug logging hook to the client.
func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{})
	return nil
}

type redisLog struct{}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			log.Warn().Err(err).Str("network", network).Str("addr", addr).Msg("redis: dial failed")
			return conn, err
		}
		log.Debug().Str("network", network).Str("addr", addr).Msg("redis: dialed")
		return conn, nil
	}
}

func (redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		log.Trace().Str("cmd", cmd.Name()).Dur("took", time.Since(start)).Err(err).Msg("redis: processed")
		return err
	}
}

func (redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		log.Trace().Int("cmds", len(cmds)).Dur("took", time.Since(start)).Err(err).Msg("redis: pipeline processed")
		return err
	}
}
