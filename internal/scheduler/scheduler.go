// Package scheduler runs a job once or repeatedly with a fixed delay between runs, and
// drains an in-flight run when asked to stop.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrShutdownTimeout is returned when a run is still going after both drain periods.
var ErrShutdownTimeout = errors.New("run did not finish before shutdown deadline")

const (
	DefaultInterval = time.Minute * 360
	DefaultGrace    = time.Second * 10
	DefaultForce    = time.Second * 5
)

type Job func(ctx context.Context) error

type Options struct {
	// Interval is the delay between the end of a run and the start of the next.
	Interval time.Duration
	// Grace is how long an in-flight run may keep going after a stop is requested.
	Grace time.Duration
	// Force is how long a run gets to return once its context has been cancelled.
	Force time.Duration
}

type Scheduler struct {
	opts Options
}

func New(opts Options) Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Force <= 0 {
		opts.Force = DefaultForce
	}
	return Scheduler{opts: opts}
}

// run executes `job` in the background. The job's context is not cancelled when ctx is,
// it is only cancelled once the grace period after a stop request has passed.
func (s Scheduler) run(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- job(jobCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "stop requested, waiting for the current run to finish", "grace", s.opts.Grace)
	grace := time.NewTimer(s.opts.Grace)
	defer grace.Stop()
	select {
	case err := <-done:
		return err
	case <-grace.C:
	}

	slog.WarnContext(ctx, "run did not stop in time, cancelling it", "force", s.opts.Force)
	cancel()
	force := time.NewTimer(s.opts.Force)
	defer force.Stop()
	select {
	case err := <-done:
		return err
	case <-force.C:
		slog.ErrorContext(ctx, "run still not finished after cancellation")
		return ErrShutdownTimeout
	}
}

// Once runs `job` a single time and returns its error.
func (s Scheduler) Once(ctx context.Context, job Job) error {
	return s.run(ctx, job)
}

// Loop runs `job` right away and then again `Interval` after each run finished, until ctx is
// done. Job errors are logged and do not stop the loop.
func (s Scheduler) Loop(ctx context.Context, job Job) error {
	for {
		// the timer and the stop signal can fire together, a stop always wins
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "scheduler stopped")
			return nil
		}
		err := s.run(ctx, job)
		if errors.Is(err, ErrShutdownTimeout) {
			return err
		}
		if err != nil {
			slog.ErrorContext(ctx, "run failed", "err", err)
		}
		if ctx.Err() != nil {
			continue
		}

		timer := time.NewTimer(s.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}
