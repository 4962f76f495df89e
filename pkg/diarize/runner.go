package diarize

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/meetingbuddy/mbud/pkg/logging"
)

// Runner executes jobs as fire-and-forget goroutines. There is no queue and
// no concurrency cap: every submitted job gets its own goroutine
// immediately, and overlapping jobs for the same meeting are allowed to
// race. The caller observes outcomes through meeting state, not through the
// runner.
type Runner struct {
	logger logging.Logger

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewRunner creates a job runner.
func NewRunner(logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{logger: logger}
}

// Submit starts fn on its own goroutine and returns immediately.
func (r *Runner) Submit(meetingID string, fn func()) {
	r.active.Add(1)
	r.wg.Add(1)

	r.logger.Debug("job submitted", logging.F("meeting_id", meetingID))

	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		fn()
	}()
}

// Active returns the number of jobs currently running.
func (r *Runner) Active() int64 {
	return r.active.Load()
}

// Drain waits for all in-flight jobs to finish or the context to expire.
// Jobs are not cancelled; an expired context just stops the wait.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
