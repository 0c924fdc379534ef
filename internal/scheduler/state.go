package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/vk/bootflow/internal/report"
)

// jobState is the mutable execution state of one job. It is the only shared
// mutable data in a run; the mutex is the job's serialized mutation point and
// publishes transitions to every worker.
type jobState struct {
	mu       sync.Mutex
	state    report.State
	exitCode int
	err      error

	// depCount is the number of dependencies that have not yet reached a
	// terminal state. The job becomes ready the instant it hits zero.
	depCount atomic.Int32
}

func newJobState(deps int) *jobState {
	js := &jobState{state: report.Pending, exitCode: -1}
	js.depCount.Store(int32(deps))
	return js
}

// current returns the job's state at this instant.
func (j *jobState) current() report.State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// transition moves the job to next and returns the previous state. Terminal
// states are recorded atomically with respect to observers: the exit detail
// is stored under the same lock that publishes the state.
func (j *jobState) transition(next report.State, exitCode int, err error) report.State {
	j.mu.Lock()
	defer j.mu.Unlock()
	prev := j.state
	j.state = next
	if next.Terminal() {
		j.exitCode = exitCode
		j.err = err
	}
	return prev
}

// outcome returns the terminal detail. Only meaningful once the state is
// terminal.
func (j *jobState) outcome() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode, j.err
}
