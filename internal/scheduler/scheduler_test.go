package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
)

// TestRunJobWritesRawFileAndCompletes covers scenario S1 of spec.md §8:
// a raw file job whose bytes land verbatim in the output file and whose
// job reaches the completed state.
func TestRunJobWritesRawFileAndCompletes(t *testing.T) {
	dir := t.TempDir()

	reg := device.NewRegistry()
	filters := pipeline.NewTable()
	bus := events.NewBus()
	s := New(reg, filters, bus, zerolog.Nop())

	p := printer.New(1, "office", "file://"+dir)
	job, err := p.CreateJob("alice", "hello", ippcore.NewAttributes())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	docs := []Source{{Format: "application/octet-stream", Reader: strings.NewReader("Hello, world!")}}
	s.RunJob(context.Background(), p, job, docs, pipeline.Driver{})

	if job.State() != ippcore.JobStateCompleted {
		t.Fatalf("job state = %v, want completed", job.State())
	}

	data, err := os.ReadFile(filepath.Join(dir, "hello.prn"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "Hello, world!" {
		t.Errorf("file contents = %q, want %q", data, "Hello, world!")
	}
}

func TestRunJobAbortsOnUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	reg := device.NewRegistry()
	filters := pipeline.NewTable()
	bus := events.NewBus()
	s := New(reg, filters, bus, zerolog.Nop())

	p := printer.New(1, "office", "file://"+dir)
	job, _ := p.CreateJob("alice", "hello", ippcore.NewAttributes())

	docs := []Source{{Format: "application/pdf", Reader: strings.NewReader("x")}}
	s.RunJob(context.Background(), p, job, docs, pipeline.Driver{Format: "application/vnd.driver-proprietary"})

	if job.State() != ippcore.JobStateAborted {
		t.Fatalf("job state = %v, want aborted", job.State())
	}
}

func TestRunJobCanceledBeforeStartDoesNotHang(t *testing.T) {
	reg := device.NewRegistry()
	filters := pipeline.NewTable()
	s := New(reg, filters, nil, zerolog.Nop())

	p := printer.New(1, "office", "socket://127.0.0.1:1")
	job, _ := p.CreateJob("alice", "hello", ippcore.NewAttributes())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.RunJob(ctx, p, job, nil, pipeline.Driver{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunJob did not return after context cancellation")
	}
}
