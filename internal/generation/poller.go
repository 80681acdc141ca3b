// Package generation drives AI generation jobs: one submit call to a proxy
// function, then status polls on a fixed interval until the job succeeds,
// fails, runs out of budget or is cancelled.
package generation

import (
	"context"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
)

// PollConfig bounds a polling loop. Either Timeout or MaxAttempts (or both) must be set.
type PollConfig struct {
	Name        string
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
	Clock       Clock
}

var (
	// VideoPolling checks every 3 seconds for at most 5 minutes.
	VideoPolling = PollConfig{Name: "video", Interval: 3 * time.Second, Timeout: 5 * time.Minute}
	// MusicPolling checks every 5 seconds, 60 times.
	MusicPolling = PollConfig{Name: "music", Interval: 5 * time.Second, MaxAttempts: 60}
)

// Budget is the total wall-clock time the loop may spend.
func (c PollConfig) Budget() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return time.Duration(c.MaxAttempts) * c.Interval
}

// Progress is reported after every status check.
type Progress struct {
	Attempt int           `json:"attempt"`
	Elapsed time.Duration `json:"elapsed"`
}

// CheckFunc performs one status check. done=true ends the loop with value;
// a non-nil error ends it with that error.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Poll waits one interval, checks, and repeats. No check is issued after a
// terminal result, after the attempt cap, after the timeout or once ctx is done.
func Poll[T any](ctx context.Context, cfg PollConfig, check CheckFunc[T], onTick func(Progress)) (T, error) {
	var zero T
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	if cfg.Interval <= 0 || (cfg.Timeout <= 0 && cfg.MaxAttempts <= 0) {
		return zero, models.NewValidationError("poll config needs an interval and a timeout or attempt cap")
	}

	start := clock.Now()
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			return zero, models.NewGenerationTimeoutError(cfg.Budget())
		}

		wait := cfg.Interval
		timedOut := false
		if cfg.Timeout > 0 {
			elapsed := clock.Now().Sub(start)
			if elapsed+cfg.Interval > cfg.Timeout {
				wait = cfg.Timeout - elapsed
				timedOut = true
			}
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-clock.After(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return zero, err
		}
		if timedOut {
			return zero, models.NewGenerationTimeoutError(cfg.Budget())
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		observability.GenerationPolls.WithLabelValues(cfg.Name).Inc()
		value, done, err := check(ctx)
		if onTick != nil {
			onTick(Progress{Attempt: attempt, Elapsed: clock.Now().Sub(start)})
		}
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
	}
}
