package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// ErrStopped is returned by Serial.Do once the executor has shut down.
var ErrStopped = errors.New("serial executor stopped")

// Serial runs jobs one at a time on a single goroutine. Fixes and manual
// commands arrive independently; routing both through one Serial keeps the
// ringer controller single-invoker.
type Serial struct {
	jobs    chan *job
	stopped chan struct{}
}

const (
	jobQueued int32 = iota
	jobTaken
	jobAbandoned
)

type job struct {
	ctx    context.Context
	fn     func(context.Context) domain.Outcome
	result chan domain.Outcome
	state  atomic.Int32
}

// NewSerial creates an executor whose queue holds up to buffer pending jobs.
func NewSerial(buffer int) *Serial {
	return &Serial{
		jobs:    make(chan *job, buffer),
		stopped: make(chan struct{}),
	}
}

// Run executes queued jobs until ctx is cancelled.
func (s *Serial) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			if j.ctx.Err() != nil || !j.state.CompareAndSwap(jobQueued, jobTaken) {
				continue
			}
			j.result <- j.fn(context.WithoutCancel(j.ctx))
		}
	}
}

// Do queues fn and waits for its outcome. Cancelling ctx before fn starts
// drops the job. Once fn has started it runs to completion, detached from
// ctx cancellation, and Do returns its outcome.
func (s *Serial) Do(ctx context.Context, fn func(context.Context) domain.Outcome) (domain.Outcome, error) {
	j := &job{ctx: ctx, fn: fn, result: make(chan domain.Outcome, 1)}

	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	case <-s.stopped:
		return domain.Outcome{}, ErrStopped
	}

	select {
	case out := <-j.result:
		return out, nil
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return domain.Outcome{}, ctx.Err()
		}
		// Already running: the device write will land, so report it.
		return <-j.result, nil
	case <-s.stopped:
		// Run may have finished this job just before stopping.
		select {
		case out := <-j.result:
			return out, nil
		default:
			return domain.Outcome{}, ErrStopped
		}
	}
}
