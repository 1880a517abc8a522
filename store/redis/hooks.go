package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/blogkit/log"
)

// commandLog 只记录命令名和 key，值里是会话 token
type commandLog struct {
	logger *log.Logger
	debug  bool
	slow   time.Duration
	now    func() time.Time
}

func (h *commandLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.Error().Err(err).Str("addr", addr).Msg("redis dial failed")
		}
		return conn, err
	}
}

func (h *commandLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := h.now()
		err := next(ctx, cmd)
		h.record(cmd.FullName(), firstKey(cmd), h.now().Sub(start), err)
		return err
	}
}

func (h *commandLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := h.now()
		err := next(ctx, cmds)
		h.record("pipeline", "", h.now().Sub(start), err)
		return err
	}
}

func (h *commandLog) record(name, key string, d time.Duration, err error) {
	switch {
	case err != nil && !errors.Is(err, redis.Nil):
		h.logger.Warn().Err(err).Str("cmd", name).Str("key", key).Dur("duration", d).Msg("redis command failed")
	case h.slow > 0 && d > h.slow:
		h.logger.Warn().Str("cmd", name).Str("key", key).Dur("duration", d).Msg("redis slow command")
	case h.debug:
		h.logger.Debug().Str("cmd", name).Str("key", key).Dur("duration", d).Msg("redis command")
	}
}

func firstKey(cmd redis.Cmder) string {
	if args := cmd.Args(); len(args) > 1 {
		if s, ok := args[1].(string); ok {
			return s
		}
	}
	return ""
}
