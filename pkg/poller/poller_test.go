package poller

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

type stubJob struct {
	Status  string
	Message string
}

func classifyStub(j stubJob) Snapshot {
	s := Snapshot{Status: j.Status, Message: j.Message}
	switch strings.ToUpper(j.Status) {
	case "QUEUED":
		s.Phase = PhaseQueued
	case "PROCESSING":
		s.Phase = PhaseProcessing
	case "COMPLETED":
		s.Phase = PhaseCompleted
	case "ERROR", "FAILED":
		s.Phase = PhaseFailed
	}
	return s
}

// sequence returns a fetch func that walks through statuses, repeating the last one.
func sequence(calls *int32, statuses ...string) func(context.Context) (stubJob, error) {
	return func(context.Context) (stubJob, error) {
		n := atomic.AddInt32(calls, 1)
		i := int(n) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return stubJob{Status: statuses[i]}, nil
	}
}

func fastOptions() Options {
	return Options{
		Name:                   "stub",
		Interval:               10 * time.Millisecond,
		Multiplier:             1,
		Timeout:                5 * time.Second,
		MaxConsecutiveFailures: 2,
	}
}

func TestPoll_CompletesOnThirdFetch(t *testing.T) {
	var calls int32
	job, snap, err := Poll(context.Background(), sequence(&calls, "QUEUED", "PROCESSING", "COMPLETED"), classifyStub, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", job.Status)
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoll_TimeoutWithinOneInterval(t *testing.T) {
	var calls int32
	opts := fastOptions()
	opts.Interval = 50 * time.Millisecond
	opts.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, snap, err := Poll(context.Background(), sequence(&calls, "PROCESSING"), classifyStub, opts)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindTimeout))
	assert.True(t, IsTimeout(err))
	assert.Equal(t, "PROCESSING", snap.Status)
	assert.GreaterOrEqual(t, elapsed, opts.Timeout)
	assert.Less(t, elapsed, opts.Timeout+opts.Interval+40*time.Millisecond)
}

func TestPoll_TimeoutCutsOffBlockedFetch(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) (stubJob, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return stubJob{Status: "PROCESSING"}, nil
		}
		// a status request that never answers on its own
		<-ctx.Done()
		return stubJob{}, apierr.Wrap(apierr.KindTimeout, "GET /stub", ctx.Err())
	}
	opts := fastOptions()
	opts.Interval = 10 * time.Millisecond
	opts.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, snap, err := Poll(context.Background(), fetch, classifyStub, opts)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, apierr.Is(err, apierr.KindPersistentFailure))
	assert.Equal(t, "PROCESSING", snap.Status)
	assert.GreaterOrEqual(t, elapsed, opts.Timeout)
	assert.Less(t, elapsed, opts.Timeout+opts.Interval+100*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPoll_RemoteFailureCarriesMessage(t *testing.T) {
	fetch := func(context.Context) (stubJob, error) {
		return stubJob{Status: "ERROR", Message: "no media matched the prompt"}, nil
	}
	_, snap, err := Poll(context.Background(), fetch, classifyStub, fastOptions())

	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindRemoteJob))
	assert.Contains(t, err.Error(), "no media matched the prompt")
	assert.Equal(t, PhaseFailed, snap.Phase)
}

func TestPoll_AbsorbsTransientFailures(t *testing.T) {
	var calls int32
	fetch := func(context.Context) (stubJob, error) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1, 2:
			return stubJob{}, apierr.New(apierr.KindNetwork, "GET /storyboard/get", "connection reset")
		case 3:
			return stubJob{Status: "PROCESSING"}, nil
		case 4:
			return stubJob{}, apierr.New(apierr.KindServer, "GET /storyboard/get", "bad gateway")
		default:
			return stubJob{Status: "COMPLETED"}, nil
		}
	}
	_, _, err := Poll(context.Background(), fetch, classifyStub, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestPoll_PersistentFailureIsDistinctFromTimeout(t *testing.T) {
	var calls int32
	fetch := func(context.Context) (stubJob, error) {
		atomic.AddInt32(&calls, 1)
		return stubJob{}, apierr.New(apierr.KindNetwork, "GET /render/get", "no route to host")
	}
	_, _, err := Poll(context.Background(), fetch, classifyStub, fastOptions())

	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindPersistentFailure))
	assert.False(t, IsTimeout(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var inner *apierr.Error
	require.True(t, errors.As(errors.Unwrap(err), &inner))
	assert.Equal(t, apierr.KindNetwork, inner.Kind)
}

func TestPoll_HardErrorReturnsImmediately(t *testing.T) {
	var calls int32
	fetch := func(context.Context) (stubJob, error) {
		atomic.AddInt32(&calls, 1)
		return stubJob{}, apierr.New(apierr.KindAuth, "GET /render/get", "invalid key")
	}
	_, _, err := Poll(context.Background(), fetch, classifyStub, fastOptions())

	assert.True(t, apierr.Is(err, apierr.KindAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPoll_UnknownStatusKeepsPolling(t *testing.T) {
	var calls int32
	_, snap, err := Poll(context.Background(), sequence(&calls, "WARMING_UP", "SOMETHING_NEW", "COMPLETED"), classifyStub, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoll_PhaseNeverRegresses(t *testing.T) {
	var calls int32
	var seen []Phase
	opts := fastOptions()
	opts.Timeout = 45 * time.Millisecond

	record := func(j stubJob) Snapshot {
		s := classifyStub(j)
		seen = append(seen, s.Phase)
		return s
	}
	_, snap, err := Poll(context.Background(), sequence(&calls, "QUEUED", "PROCESSING", "QUEUED"), record, opts)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, seen, PhaseQueued)
	assert.Equal(t, PhaseProcessing, snap.Phase, "reported phase must not fall back to queued")
}

func TestPoll_ContextCancellation(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOptions()
	opts.Interval = time.Second

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := Poll(ctx, sequence(&calls, "PROCESSING"), classifyStub, opts)

	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindCanceled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCreateThenPoll_KeepsAckOnTimeout(t *testing.T) {
	var calls int32
	opts := fastOptions()
	opts.Timeout = 30 * time.Millisecond

	create := func(context.Context) (string, error) { return "job-42", nil }
	fetch := func(ctx context.Context, id string) (stubJob, error) {
		assert.Equal(t, "job-42", id)
		return sequence(&calls, "QUEUED")(ctx)
	}

	ack, _, _, err := CreateThenPoll(context.Background(), create, fetch, classifyStub, opts)
	assert.Equal(t, "job-42", ack)
	assert.True(t, IsTimeout(err))
}

func TestCreateThenPoll_CreateFailureSkipsPolling(t *testing.T) {
	create := func(context.Context) (string, error) {
		return "", apierr.New(apierr.KindServer, "POST /storyboard/create", "boom")
	}
	fetch := func(context.Context, string) (stubJob, error) {
		t.Fatal("fetch must not be called")
		return stubJob{}, nil
	}

	_, _, _, err := CreateThenPoll(context.Background(), create, fetch, classifyStub, fastOptions())
	assert.True(t, apierr.Is(err, apierr.KindServer))
}
