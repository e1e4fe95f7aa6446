package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const pollKeyPrefix = "payment:poll:"

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// PollThrottle lets one provider status query per reference through each
// window, shared by every instance pointing at the same Redis. Redis errors
// fail open.
type PollThrottle struct {
	cli setNXer
	log *zerolog.Logger
}

func NewPollThrottle(cli setNXer, logger *zerolog.Logger) *PollThrottle {
	return &PollThrottle{cli: cli, log: logger}
}

func (t *PollThrottle) Allow(ctx context.Context, reference string, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	ok, err := t.cli.SetNX(ctx, pollKeyPrefix+reference, 1, window)
	if err != nil {
		t.log.Warn().Err(err).Str("merchant_reference", reference).Msg("poll throttle unavailable; allowing")
		return true
	}
	return ok
}
