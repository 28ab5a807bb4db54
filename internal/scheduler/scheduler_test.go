package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fast() Scheduler {
	return New(Options{
		Interval: time.Millisecond * 20,
		Grace:    time.Millisecond * 50,
		Force:    time.Millisecond * 50,
	})
}

func TestOnceReturnsJobError(t *testing.T) {
	err := fast().Once(context.Background(), func(context.Context) error {
		return errors.New("state corrupt")
	})
	require.ErrorContains(t, err, "state corrupt")
}

func TestLoopRepeatsUntilStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	err := fast().Loop(ctx, func(context.Context) error {
		if runs.Add(1) == 3 {
			cancel()
		}
		return errors.New("ignored")
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, runs.Load())
}

func TestLoopNeverOverlaps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*200)
	defer cancel()

	var active atomic.Int32
	var overlapped atomic.Bool
	err := fast().Loop(ctx, func(context.Context) error {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(time.Millisecond * 30)
		active.Add(-1)
		return nil
	})
	require.NoError(t, err)
	require.False(t, overlapped.Load())
}

func TestStopWaitsForInflightRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished, cancelledEarly atomic.Bool

	go func() {
		<-started
		cancel()
	}()
	err := fast().Once(ctx, func(jobCtx context.Context) error {
		close(started)
		time.Sleep(time.Millisecond * 20)
		cancelledEarly.Store(jobCtx.Err() != nil)
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)
	require.True(t, finished.Load())
	require.False(t, cancelledEarly.Load(), "run is not cancelled during the grace period")
}

func TestStopCancelsAfterGrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Once(ctx, func(jobCtx context.Context) error {
		<-jobCtx.Done()
		return jobCtx.Err()
	})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestStopTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)
	err := fast().Once(ctx, func(context.Context) error {
		<-release
		return nil
	})
	require.True(t, errors.Is(err, ErrShutdownTimeout))
}

func TestLoopDoesNotStartAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int32
	err := fast().Loop(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, runs.Load())
}
