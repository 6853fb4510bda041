package printer

import (
	"sync"
	"time"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// Job is one submission, 1..N documents, tied to one printer (spec.md
// §3). Its lock is always acquired after the owning printer's lock when
// both are needed (spec.md §5 lock ordering).
type Job struct {
	ID      int
	Printer *Printer
	User    string
	Name    string

	Streaming   bool
	DriverData  interface{}
	ProxyHandle interface{}
	Attributes  *ippcore.Attributes

	mu          sync.RWMutex
	state       ippcore.JobState
	isCanceled  bool
	impressions int
	documents   []*Document

	created    time.Time
	processing time.Time
	completed  time.Time
	holdUntil  time.Time
	retainUntil time.Time
}

func newJob(id int, p *Printer, user, name string, attrs *ippcore.Attributes, held bool) *Job {
	state := ippcore.JobStatePending
	if held {
		state = ippcore.JobStateHeld
	}
	return &Job{
		ID:         id,
		Printer:    p,
		User:       user,
		Name:       name,
		Attributes: attrs,
		state:      state,
		created:    time.Now(),
	}
}

// State returns the job's current state.
func (j *Job) State() ippcore.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// setState transitions the job. Callers must already hold j.mu.
func (j *Job) setState(s ippcore.JobState) {
	j.state = s
}

// IsCanceled reports whether Cancel has been requested on this job.
func (j *Job) IsCanceled() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isCanceled
}

// AddDocument appends a new document to the job and returns it
// (spec.md §3, §4.D).
func (j *Job) AddDocument(format string, template *ippcore.Attributes) *Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	doc := newDocument(len(j.documents)+1, format, template)
	j.documents = append(j.documents, doc)
	return doc
}

// Documents returns the job's documents in submission order.
func (j *Job) Documents() []*Document {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]*Document(nil), j.documents...)
}

// Release transitions a held job to pending, making it eligible for
// scheduling (spec.md §4.D state diagram).
func (j *Job) Release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == ippcore.JobStateHeld {
		j.state = ippcore.JobStatePending
	}
}

// Hold transitions a pending job to held until the given time.
func (j *Job) Hold(until time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == ippcore.JobStatePending {
		j.state = ippcore.JobStateHeld
		j.holdUntil = until
	}
}

// Cancel requests cancellation (spec.md §4.D). A job already processing
// is flagged for the scheduler to observe at its next page/write
// boundary; any other non-terminal job transitions immediately and the
// caller must remove it from the printer's active collection.
func (j *Job) Cancel() (immediate bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return false
	}
	j.isCanceled = true
	if j.state == ippcore.JobStateProcessing {
		return false
	}
	j.state = ippcore.JobStateCanceled
	j.completed = time.Now()
	return true
}

// MarkProcessing transitions the job into processing (spec.md §4.E
// start_job).
func (j *Job) MarkProcessing() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = ippcore.JobStateProcessing
	j.processing = time.Now()
}

// Finish transitions the job to its terminal state per spec.md §4.E
// finish_job: canceled if is_canceled was set, completed if it was
// processing, aborted otherwise (driver/format error).
func (j *Job) Finish(driverErr bool) ippcore.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.isCanceled:
		j.state = ippcore.JobStateCanceled
	case driverErr:
		j.state = ippcore.JobStateAborted
	case j.state == ippcore.JobStateProcessing:
		j.state = ippcore.JobStateCompleted
	default:
		j.state = ippcore.JobStateAborted
	}
	j.completed = time.Now()
	return j.state
}

// AddImpressions accumulates completed impressions on the job.
func (j *Job) AddImpressions(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.impressions += n
}

// Impressions returns the job's completed impression count.
func (j *Job) Impressions() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.impressions
}

// Created returns the time the job was submitted.
func (j *Job) Created() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.created
}

// Completed returns the time the job reached a terminal state, or the
// zero time if still active.
func (j *Job) Completed() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.completed
}

// SetRetainUntil records when the job's preserved spool file should be
// removed (spec.md §4.D Retention).
func (j *Job) SetRetainUntil(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.retainUntil = t
}

// RetainUntil returns the job's retention deadline.
func (j *Job) RetainUntil() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.retainUntil
}
