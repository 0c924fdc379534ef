package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoJobs is returned when the workflow declares no jobs at all.
var ErrNoJobs = errors.New("no jobs in workflow")

// DuplicateJobIDError reports two jobs sharing one id.
type DuplicateJobIDError struct {
	ID string
}

func (e *DuplicateJobIDError) Error() string {
	return fmt.Sprintf("duplicate job id %q", e.ID)
}

// UnknownDependencyError reports a `needs` entry that names no existing job.
type UnknownDependencyError struct {
	JobID   string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("job %q depends on unknown job %q", e.JobID, e.Missing)
}

// CyclicDependencyError reports a dependency cycle. Cycle holds the ordered
// list of job ids forming the cycle; the first id is repeated at the end for
// readability in the rendered message only.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(path, " -> "))
}
