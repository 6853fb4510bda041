package ippserver

import (
	"sync"

	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// spoolTable accumulates documents for a job across a Create-Job/Send-
// Document sequence until the client marks the last one (spec.md §6),
// at which point the job is handed to the scheduler as a whole.
type spoolTable struct {
	mu   sync.Mutex
	docs map[int][]scheduler.Source
}

func newSpoolTable() *spoolTable {
	return &spoolTable{docs: make(map[int][]scheduler.Source)}
}

func (t *spoolTable) append(jobID int, src scheduler.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[jobID] = append(t.docs[jobID], src)
}

// take returns and clears the accumulated documents for jobID.
func (t *spoolTable) take(jobID int) []scheduler.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	docs := t.docs[jobID]
	delete(t.docs, jobID)
	return docs
}
