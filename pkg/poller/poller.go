// Package poller waits for remote jobs to reach a terminal state.
//
// A poll owns nothing but its loop variables; any number of polls may run
// concurrently against the same client.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// ErrTimeout is wrapped by the error returned when a poll runs out of time.
var ErrTimeout = errors.New("poll timed out")

// Phase is the normalized lifecycle position of a remote job.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseQueued
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Snapshot is one observation of a remote job.
type Snapshot struct {
	Phase    Phase
	Status   string // raw label as returned by the platform
	Progress *int
	Message  string
}

// Options controls a single poll.
type Options struct {
	// Name is used in log lines and error ops, e.g. "storyboard".
	Name string
	// Interval is the first wait between fetches.
	Interval time.Duration
	// MaxInterval caps the wait when Multiplier > 1.
	MaxInterval time.Duration
	// Multiplier grows the wait after each pending observation. Values below 1 mean a fixed interval.
	Multiplier float64
	// Jitter randomizes each wait by ±Jitter of its length. 0 disables it.
	Jitter float64
	// Timeout is measured on the wall clock from the first fetch.
	Timeout time.Duration
	// MaxConsecutiveFailures is how many transient fetch errors in a row are absorbed.
	MaxConsecutiveFailures int
	Logger                 *slog.Logger
}

// DefaultOptions mirrors the platform's recommended polling cadence.
func DefaultOptions() Options {
	return Options{
		Interval:               5 * time.Second,
		MaxInterval:            30 * time.Second,
		Multiplier:             1.5,
		Jitter:                 0.1,
		Timeout:                30 * time.Minute,
		MaxConsecutiveFailures: 5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Multiplier < 1 {
		o.Multiplier = 1
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.MaxConsecutiveFailures < 0 {
		o.MaxConsecutiveFailures = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Name == "" {
		o.Name = "job"
	}
	return o
}

// Poll calls fetch until classify reports a terminal phase, the timeout
// elapses, the context ends, or fetch keeps failing.
//
// On timeout the last observation is returned together with an error of kind
// apierr.KindTimeout wrapping ErrTimeout. The remote job keeps running.
// Each fetch is bounded by the remaining timeout, so a hanging status request
// cannot hold the poll past it.
func Poll[T any](ctx context.Context, fetch func(context.Context) (T, error), classify func(T) Snapshot, opts Options) (T, Snapshot, error) {
	opts = opts.withDefaults()
	op := "poll " + opts.Name
	log := opts.Logger.With("job", opts.Name)

	var (
		last     T
		lastSnap Snapshot
		highest  Phase
		failures int
		attempt  int
	)
	start := time.Now()
	deadline := start.Add(opts.Timeout)
	wait := opts.Interval
	timedOut := func() error {
		return &apierr.Error{
			Kind:    apierr.KindTimeout,
			Op:      op,
			Message: fmt.Sprintf("not finished after %v (last status %q)", opts.Timeout, lastSnap.Status),
			Err:     ErrTimeout,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return last, lastSnap, apierr.Wrap(apierr.KindCanceled, op, err)
		}

		attempt++
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		v, err := fetch(fetchCtx)
		outOfTime := fetchCtx.Err() != nil && ctx.Err() == nil
		cancel()
		if err != nil && outOfTime {
			log.Debug("poll fetch cut off by timeout", "attempt", attempt, "error", err)
			return last, lastSnap, timedOut()
		}
		if err != nil {
			if !apierr.IsTransient(err) {
				log.Debug("poll fetch failed", "attempt", attempt, "error", err)
				return last, lastSnap, err
			}
			failures++
			log.Warn("poll fetch failed, will retry", "attempt", attempt, "consecutive", failures, "error", err)
			if failures > opts.MaxConsecutiveFailures {
				return last, lastSnap, &apierr.Error{
					Kind:    apierr.KindPersistentFailure,
					Op:      op,
					Message: fmt.Sprintf("%d consecutive status fetch failures", failures),
					Err:     err,
				}
			}
		} else {
			failures = 0
			snap := classify(v)
			log.Debug("poll status", "attempt", attempt, "status", snap.Status, "phase", snap.Phase.String())

			switch snap.Phase {
			case PhaseCompleted:
				return v, snap, nil
			case PhaseFailed:
				msg := snap.Message
				if msg == "" {
					msg = "remote job ended with status " + snap.Status
				}
				return v, snap, &apierr.Error{Kind: apierr.KindRemoteJob, Op: op, Message: msg}
			case PhaseUnknown:
				log.Warn("unrecognized job status, treating as pending", "status", snap.Status)
			default:
				if snap.Phase < highest {
					log.Warn("job status moved backwards, ignoring", "status", snap.Status, "seen", highest.String())
					snap.Phase = highest
				} else {
					highest = snap.Phase
				}
			}
			last, lastSnap = v, snap
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last, lastSnap, timedOut()
		}

		sleep := withJitter(wait, opts.Jitter)
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, lastSnap, apierr.Wrap(apierr.KindCanceled, op, ctx.Err())
		case <-timer.C:
		}
		wait = grow(wait, opts.MaxInterval, opts.Multiplier)
	}
}

// CreateThenPoll issues create once and then polls the job it started.
// The creation acknowledgement is returned even when polling fails so the
// caller keeps the remote ids.
func CreateThenPoll[C, T any](
	ctx context.Context,
	create func(context.Context) (C, error),
	fetch func(context.Context, C) (T, error),
	classify func(T) Snapshot,
	opts Options,
) (C, T, Snapshot, error) {
	var zero T
	ack, err := create(ctx)
	if err != nil {
		return ack, zero, Snapshot{}, err
	}
	v, snap, err := Poll(ctx, func(ctx context.Context) (T, error) { return fetch(ctx, ack) }, classify, opts)
	return ack, v, snap, err
}

// IsTimeout reports whether err came from a poll that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
