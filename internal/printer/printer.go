// Package printer implements the logical printer and job queue of
// spec.md §3/§4.D: a long-lived output endpoint owning three ordered
// job collections (active, completed, all) under a per-printer
// reader/writer lock.
package printer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// DefaultMaxCompletedJobs bounds the completed-job history kept per
// printer (spec.md §4.D Retention); 0 on Printer means unlimited.
const DefaultMaxCompletedJobs = 100

// Printer is a long-lived logical output (spec.md §3).
type Printer struct {
	ID        int
	Name      string
	URISlug   string
	DeviceURI string
	DeviceID  string

	DriverData interface{}

	MaxActiveJobs    int
	MaxCompletedJobs int

	// Proxy fields, nil/empty unless this printer is driven by the
	// infrastructure proxy engine (spec.md §4.F).
	ProxyURI  string
	ProxyUUID string

	mu sync.RWMutex

	reasons device.Reasons
	state   ippcore.PrinterState

	timeStart  time.Time
	timeConfig time.Time
	timeState  time.Time
	timeStatus time.Time

	supplies []string

	impressionsCompleted int
	nextJobID             int

	active    []*Job
	completed []*Job
	all       map[int]*Job

	dnssdRegistered bool
	isAccepting     bool
	holdNewJobs     bool
	isDeleted       bool
	isStopped       bool

	deviceInUse   bool
	processingJob *Job
}

// New returns a printer in the idle, accepting state.
func New(id int, name, deviceURI string) *Printer {
	now := time.Now()
	return &Printer{
		ID:               id,
		Name:             name,
		DeviceURI:        deviceURI,
		MaxCompletedJobs: DefaultMaxCompletedJobs,
		state:            ippcore.PrinterStateIdle,
		timeStart:        now,
		timeConfig:       now,
		timeState:        now,
		timeStatus:       now,
		isAccepting:      true,
		all:              make(map[int]*Job),
	}
}

// State returns the printer's current state.
func (p *Printer) State() ippcore.PrinterState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetState transitions the printer and stamps the state-change time.
func (p *Printer) SetState(s ippcore.PrinterState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	p.timeState = time.Now()
}

// Reasons returns the printer's current status reasons bitfield.
func (p *Printer) Reasons() device.Reasons {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reasons
}

// SetReasons updates the printer's status reasons bitfield.
func (p *Printer) SetReasons(r device.Reasons) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasons = r
	p.timeStatus = time.Now()
}

// IsAccepting reports whether the printer currently admits new jobs.
func (p *Printer) IsAccepting() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isAccepting && !p.isDeleted
}

// SetAccepting toggles job admission.
func (p *Printer) SetAccepting(accepting bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isAccepting = accepting
}

// SetHoldNewJobs toggles whether newly admitted jobs start held
// (spec.md §4.D Admission).
func (p *Printer) SetHoldNewJobs(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdNewJobs = hold
}

// SetStopped implements Pause-Printer/Resume-Printer (spec.md §6): a
// stopped printer finishes its current job but FinishJob then reports
// the printer stopped rather than idle, and new jobs are still
// admitted but won't be scheduled until resumed.
func (p *Printer) SetStopped(stopped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isStopped = stopped
	if stopped {
		p.state = ippcore.PrinterStateStopped
	} else if len(p.active) == 0 {
		p.state = ippcore.PrinterStateIdle
	}
	p.timeState = time.Now()
}

// IsStopped reports whether the printer is administratively paused.
func (p *Printer) IsStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isStopped
}

// MarkDeleted flags the printer for removal; no further jobs are
// admitted.
func (p *Printer) MarkDeleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isDeleted = true
	p.isAccepting = false
}

// IsDeleted reports whether MarkDeleted has been called.
func (p *Printer) IsDeleted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isDeleted
}

// CreateJob admits a new job (spec.md §4.D Admission): allocates
// job_id, applies hold-new-jobs, and enforces max-active-jobs busy
// semantics (0 = unlimited).
func (p *Printer) CreateJob(user, name string, attrs *ippcore.Attributes) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDeleted || !p.isAccepting {
		return nil, fmt.Errorf("%w: printer %d is not accepting jobs", ippcore.ErrBusy, p.ID)
	}
	if p.MaxActiveJobs > 0 && len(p.active) >= p.MaxActiveJobs {
		return nil, fmt.Errorf("%w: printer %d has %d active jobs (max %d)", ippcore.ErrBusy, p.ID, len(p.active), p.MaxActiveJobs)
	}

	p.nextJobID++
	job := newJob(p.nextJobID, p, user, name, attrs, p.holdNewJobs)

	p.all[job.ID] = job
	p.active = insertDescending(p.active, job)
	return job, nil
}

// Job returns the job with the given ID, if it belongs to this printer.
func (p *Printer) Job(id int) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.all[id]
	return j, ok
}

// ActiveJobs returns the active job collection, newest first.
func (p *Printer) ActiveJobs() []*Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Job(nil), p.active...)
}

// CompletedJobs returns the completed job collection, newest first.
func (p *Printer) CompletedJobs() []*Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Job(nil), p.completed...)
}

// AllJobs returns every job ever admitted to this printer.
func (p *Printer) AllJobs() []*Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Job, 0, len(p.all))
	for _, j := range p.all {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	return out
}

// CancelJob requests cancellation of the given job ID (spec.md §4.D
// Cancellation). If the job wasn't processing, it is removed from
// active and moved to completed immediately.
func (p *Printer) CancelJob(id int) error {
	p.mu.Lock()
	job, ok := p.all[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: job %d not found on printer %d", ippcore.ErrInvalidArgument, id, p.ID)
	}
	p.mu.Unlock()

	if immediate := job.Cancel(); immediate {
		p.mu.Lock()
		p.active = remove(p.active, id)
		p.completed = insertDescending(p.completed, job)
		p.trimCompletedLocked()
		p.mu.Unlock()
	}
	return nil
}

// TryAcquireDevice reports whether the caller may open the printer's
// device: true only when no other worker holds it and no job is
// currently processing (spec.md §3 invariant).
func (p *Printer) TryAcquireDevice(job *Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deviceInUse || p.processingJob != nil {
		return false
	}
	p.deviceInUse = true
	p.processingJob = job
	return true
}

// ReleaseDevice releases the device ownership acquired by
// TryAcquireDevice, in reverse order of acquisition (spec.md §3).
func (p *Printer) ReleaseDevice() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processingJob = nil
	p.deviceInUse = false
}

// ProcessingJob returns the job currently holding the device, if any.
func (p *Printer) ProcessingJob() (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processingJob, p.processingJob != nil
}

// FinishJob transitions job to a terminal state and moves it from
// active to completed, trimming completed past MaxCompletedJobs
// (spec.md §4.E finish_job / §4.D Retention). driverErr marks an abort
// due to a format/driver failure rather than a clean finish.
func (p *Printer) FinishJob(job *Job, driverErr bool, impressions int) ippcore.JobState {
	state := job.Finish(driverErr)
	job.AddImpressions(impressions)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = remove(p.active, job.ID)
	p.completed = insertDescending(p.completed, job)
	p.impressionsCompleted += impressions
	p.trimCompletedLocked()

	if p.isStopped {
		p.state = ippcore.PrinterStateStopped
	} else if len(p.active) == 0 {
		p.state = ippcore.PrinterStateIdle
	}
	p.timeState = time.Now()
	return state
}

// trimCompletedLocked drops the oldest completed jobs past
// MaxCompletedJobs. Callers must hold p.mu.
func (p *Printer) trimCompletedLocked() {
	if p.MaxCompletedJobs <= 0 || len(p.completed) <= p.MaxCompletedJobs {
		return
	}
	drop := p.completed[p.MaxCompletedJobs:]
	p.completed = p.completed[:p.MaxCompletedJobs]
	for _, j := range drop {
		delete(p.all, j.ID)
	}
}

// HasActiveJobs reports whether any job remains active, used by
// finish_job to decide whether to close the device (spec.md §4.E).
func (p *Printer) HasActiveJobs() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.active) > 0
}

func insertDescending(jobs []*Job, job *Job) []*Job {
	i := sort.Search(len(jobs), func(i int) bool { return jobs[i].ID <= job.ID })
	jobs = append(jobs, nil)
	copy(jobs[i+1:], jobs[i:])
	jobs[i] = job
	return jobs
}

func remove(jobs []*Job, id int) []*Job {
	for i, j := range jobs {
		if j.ID == id {
			return append(jobs[:i], jobs[i+1:]...)
		}
	}
	return jobs
}
