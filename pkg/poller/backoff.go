package poller

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// Backoff describes an exponential schedule with jitter.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoff is used for caller-level retries of create calls.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.2}
}

// Delay returns the wait before retry number n (0-based), jitter included.
func (b Backoff) Delay(n int) time.Duration {
	d := b.Initial
	for i := 0; i < n; i++ {
		d = grow(d, b.Max, b.Multiplier)
	}
	return withJitter(d, b.Jitter)
}

// Retry runs fn and repeats it up to retries more times while the error is
// retryable (rate limited or network). A server supplied Retry-After wins
// over the computed delay when it is longer.
func Retry(ctx context.Context, retries int, b Backoff, fn func(context.Context) error) error {
	var err error
	for n := 0; ; n++ {
		err = fn(ctx)
		if err == nil || !apierr.IsRetryable(err) || n >= retries {
			return err
		}
		delay := b.Delay(n)
		if ra := apierr.RetryAfterOf(err); ra > delay {
			delay = ra
		}
		slog.Warn("retrying after error", "attempt", n+1, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apierr.Wrap(apierr.KindCanceled, "retry", ctx.Err())
		case <-timer.C:
		}
	}
}

func grow(cur, max time.Duration, mult float64) time.Duration {
	if mult <= 1 {
		return cur
	}
	next := time.Duration(float64(cur) * mult)
	if max > 0 && next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * frac * float64(d)
	out := time.Duration(float64(d) + delta)
	if out < 0 {
		return 0
	}
	return out
}
