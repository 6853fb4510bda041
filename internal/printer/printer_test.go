package printer

import (
	"testing"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

func TestCreateJobAllocatesUniqueIDs(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		job, err := p.CreateJob("alice", "doc", ippcore.NewAttributes())
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if seen[job.ID] {
			t.Fatalf("job id %d reused", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestCreateJobRejectedWhenMaxActiveReached(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	p.MaxActiveJobs = 1
	if _, err := p.CreateJob("alice", "doc1", ippcore.NewAttributes()); err != nil {
		t.Fatalf("first CreateJob: %v", err)
	}
	if _, err := p.CreateJob("alice", "doc2", ippcore.NewAttributes()); err == nil {
		t.Fatal("expected busy error on second job past max-active-jobs")
	}
}

func TestHoldNewJobsStartsHeld(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	p.SetHoldNewJobs(true)
	job, err := p.CreateJob("alice", "doc", ippcore.NewAttributes())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.State() != ippcore.JobStateHeld {
		t.Errorf("State = %v, want held", job.State())
	}
}

func TestQueuePartitionInvariant(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())

	if len(p.ActiveJobs()) != 1 || len(p.CompletedJobs()) != 0 {
		t.Fatal("new job should be active, not completed")
	}

	job.MarkProcessing()
	p.FinishJob(job, false, 1)

	if len(p.ActiveJobs()) != 0 {
		t.Error("finished job should leave active")
	}
	if len(p.CompletedJobs()) != 1 {
		t.Error("finished job should appear in completed")
	}
	all := p.AllJobs()
	if len(all) != 1 || all[0].ID != job.ID {
		t.Error("job should remain in all_jobs")
	}
}

func TestCancelNonProcessingJobIsImmediate(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())

	if err := p.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if job.State() != ippcore.JobStateCanceled {
		t.Errorf("State = %v, want canceled", job.State())
	}
	if len(p.ActiveJobs()) != 0 {
		t.Error("canceled job should leave active immediately")
	}
}

func TestCancelProcessingJobDefersToScheduler(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())
	job.MarkProcessing()

	if err := p.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if job.State() != ippcore.JobStateProcessing {
		t.Errorf("State = %v, want still processing until scheduler observes cancel", job.State())
	}
	if !job.IsCanceled() {
		t.Error("IsCanceled should be set for the scheduler to observe")
	}
	if len(p.ActiveJobs()) != 1 {
		t.Error("processing job stays active until the scheduler finishes it")
	}
}

func TestDeviceAcquireExclusivity(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())

	if !p.TryAcquireDevice(job) {
		t.Fatal("first acquire should succeed")
	}
	if p.TryAcquireDevice(job) {
		t.Fatal("second acquire should fail while device is in use")
	}
	p.ReleaseDevice()
	if !p.TryAcquireDevice(job) {
		t.Fatal("acquire should succeed again after release")
	}
}

func TestCompletedJobsTrimmedPastMax(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	p.MaxCompletedJobs = 2

	var jobs []*Job
	for i := 0; i < 3; i++ {
		job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())
		job.MarkProcessing()
		jobs = append(jobs, job)
	}
	for _, j := range jobs {
		p.FinishJob(j, false, 0)
	}

	if len(p.CompletedJobs()) != 2 {
		t.Fatalf("completed = %d, want 2 after trim", len(p.CompletedJobs()))
	}
	if _, ok := p.Job(jobs[0].ID); ok {
		t.Error("oldest completed job should have been dropped from all_jobs")
	}
}

func TestTerminalJobStateNeverTransitions(t *testing.T) {
	p := New(1, "office", "file:///tmp/out")
	job, _ := p.CreateJob("alice", "doc", ippcore.NewAttributes())
	job.MarkProcessing()
	p.FinishJob(job, false, 0)

	if !job.State().IsTerminal() {
		t.Fatal("job should be in a terminal state")
	}
	if immediate := job.Cancel(); immediate {
		t.Error("Cancel on a terminal job should be a no-op")
	}
	if job.State() != ippcore.JobStateCompleted {
		t.Errorf("State = %v, want completed to remain unchanged", job.State())
	}
}
