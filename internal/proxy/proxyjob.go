package proxy

import (
	"sort"
	"sync"

	"github.com/WaffleThief123/ippframework/internal/printer"
)

// Job links a locally-spooled job to the upstream job it was fetched
// from (spec.md §3 "proxy_jobs"): the local job this proxy spooled,
// the infrastructure printer's job id, and that job's UUID.
type Job struct {
	Local         *printer.Job
	ParentJobID   int
	ParentJobUUID string
}

// jobTable is a printer's proxy_jobs array, kept sorted by
// parent-job-id descending and guarded by its own mutex distinct from
// the printer's lock (spec.md §5: "a mutex for the printer's
// proxy_jobs array").
type jobTable struct {
	mu   sync.Mutex
	jobs []*Job
}

func newJobTable() *jobTable {
	return &jobTable{}
}

func (t *jobTable) add(j *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.jobs), func(i int) bool { return t.jobs[i].ParentJobID <= j.ParentJobID })
	t.jobs = append(t.jobs, nil)
	copy(t.jobs[i+1:], t.jobs[i:])
	t.jobs[i] = j
}

func (t *jobTable) byParentID(parentID int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.jobs {
		if j.ParentJobID == parentID {
			return j, true
		}
	}
	return nil, false
}

func (t *jobTable) remove(parentID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, j := range t.jobs {
		if j.ParentJobID == parentID {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

func (t *jobTable) all() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}
