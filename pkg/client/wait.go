package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/metrics"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// DefaultPollInterval is the pause between status checks
const DefaultPollInterval = 1000 * time.Millisecond

// StatusFunc fetches the current status of a task
type StatusFunc func(ctx context.Context, taskUUID types.PredictionTaskUUID) (*types.TaskStatus, error)

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

type waitOptions struct {
	timeout      time.Duration
	hasTimeout   bool
	pollInterval time.Duration
	now          func() time.Time
	sleep        SleepFunc
	onPoll       func(attempt int, status *types.TaskStatus)
}

// WaitOption configures WaitForCompletion
type WaitOption func(*waitOptions)

// WithTimeout bounds the total time spent polling. A zero timeout still
// performs one status check.
func WithTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// WithPollInterval sets the pause between status checks
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithClock replaces the wall clock and the sleep between polls
func WithClock(now func() time.Time, sleep SleepFunc) WaitOption {
	return func(o *waitOptions) {
		if now != nil {
			o.now = now
		}
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithPollHook is called after every status check
func WithPollHook(fn func(attempt int, status *types.TaskStatus)) WaitOption {
	return func(o *waitOptions) { o.onPoll = fn }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait polls getStatus until the task is terminal. The timeout is checked
// before every attempt except the first, so at least one status check
// always happens. A failed terminal state is returned, not raised.
func Wait(ctx context.Context, getStatus StatusFunc, taskUUID types.PredictionTaskUUID, opts ...WaitOption) (*types.TaskStatus, error) {
	o := waitOptions{
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.FromContext(ctx)
	log.Debug("waiting for prediction task", "task", taskUUID, "timeout", o.timeout, "has_timeout", o.hasTimeout, "poll_interval", o.pollInterval)

	start := o.now()
	for attempt := 1; ; attempt++ {
		if attempt > 1 && o.hasTimeout && o.now().Sub(start) > o.timeout {
			log.Debug("wait timed out", "task", taskUUID, "polls", attempt-1)
			return nil, &TaskError{
				PredictionTaskUUID: taskUUID,
				Op:                 fmt.Sprintf("no terminal state within %v", o.timeout),
				Err:                ErrPollTimeout,
			}
		}

		status, err := getStatus(ctx, taskUUID)
		if err != nil {
			return nil, err
		}
		metrics.StatusPollsTotal.WithLabelValues(stateClass(status.State)).Inc()
		log.Debug("polled prediction task", "task", taskUUID, "poll", attempt, "state", status.State)
		if o.onPoll != nil {
			o.onPoll(attempt, status)
		}

		if status.State.IsTerminal() {
			return status, nil
		}

		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return nil, &TaskError{
				PredictionTaskUUID: taskUUID,
				Op:                 "polling cancelled",
				Err:                err,
			}
		}
	}
}

func stateClass(state types.PredictionTaskState) string {
	switch {
	case state.IsSuccessful():
		return "predicted"
	case state.IsFailed():
		return "failed"
	default:
		return "pending"
	}
}
