// Package scheduler implements the job start/finish path of spec.md
// §4.E: device admission with retry/back-off, filter dispatch, and
// raster streaming, wiring internal/printer, internal/pipeline, and
// internal/device together.
package scheduler

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
)

// reopenBackoff is the delay between DeviceOpen retries once a printer
// has gone stopped (spec.md §4.E start_job).
const reopenBackoff = 5 * time.Second

// Scheduler runs the job start/finish state machine for every printer
// it is handed (spec.md §4.E).
type Scheduler struct {
	registry *device.Registry
	filters  *pipeline.Table
	bus      *events.Bus
	log      zerolog.Logger
}

// New returns a scheduler wired to the given device registry, filter
// table, and event bus.
func New(reg *device.Registry, filters *pipeline.Table, bus *events.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry: reg,
		filters:  filters,
		bus:      bus,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Source supplies the spooled bytes for one document and the format it
// was submitted in.
type Source struct {
	Format string
	Reader io.Reader
}

// RunJob drives one job end to end: start_job, format dispatch,
// filtering/streaming, finish_job (spec.md §4.E). It blocks until the
// job reaches a terminal state or ctx is canceled.
func (s *Scheduler) RunJob(ctx context.Context, p *printer.Printer, job *printer.Job, docs []Source, drv pipeline.Driver) {
	jobLog := s.log.With().Int("printer_id", p.ID).Int("job_id", job.ID).Logger()

	handle, err := s.openDeviceWithRetry(ctx, p, job, jobLog)
	if err != nil {
		jobLog.Info().Msg("job start canceled before device opened")
		return
	}
	defer func() {
		p.ReleaseDevice()
		if !p.HasActiveJobs() {
			handle.Close()
		}
	}()

	job.MarkProcessing()
	p.SetState(ippcore.PrinterStateProcessing)
	s.emit(p, job, ippcore.EventJobStateChanged, "job-started")

	driverErr := false
	for _, doc := range docs {
		if job.IsCanceled() {
			break
		}
		if err := s.runDocument(job, doc, handle, drv, job.IsCanceled); err != nil {
			jobLog.Error().Err(err).Str("format", doc.Format).Msg("document filter failed")
			driverErr = true
			break
		}
	}

	finalState := p.FinishJob(job, driverErr, 0)
	s.emit(p, job, jobStateEvent(finalState), "job-"+finalState.String())
	jobLog.Info().Str("state", finalState.String()).Msg("job finished")
}

func jobStateEvent(state ippcore.JobState) ippcore.NotifyEvent {
	if state == ippcore.JobStateCompleted {
		return ippcore.EventJobCompleted
	}
	return ippcore.EventJobStateChanged
}

func (s *Scheduler) emit(p *printer.Printer, job *printer.Job, event ippcore.NotifyEvent, message string) {
	if s.bus == nil {
		return
	}
	attrs := ippcore.NewAttributes()
	attrs.Set("notify-text", message)
	printerID := p.ID
	jobID := job.ID
	s.bus.AddEvent(&printerID, &jobID, event, attrs)
}

// openDeviceWithRetry implements spec.md §4.E's device-open back-off:
// retries every 5s, logging once on first failure and marking the
// printer stopped until the device returns. Before that it waits, in
// the same 5s steps, while the printer is paused or its device is held.
func (s *Scheduler) openDeviceWithRetry(ctx context.Context, p *printer.Printer, job *printer.Job, log zerolog.Logger) (*device.Handle, error) {
	for p.IsStopped() || !p.TryAcquireDevice(job) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reopenBackoff):
		}
	}

	loggedFailure := false
	for {
		handle, err := s.registry.Open(p.DeviceURI, job.Name, func(err error) {
			log.Error().Err(err).Msg("device I/O error")
		})
		if err == nil {
			p.SetState(ippcore.PrinterStateProcessing)
			return handle, nil
		}

		if !loggedFailure {
			log.Error().Err(err).Str("device_uri", p.DeviceURI).Msg("device open failed, retrying")
			loggedFailure = true
		}
		p.SetState(ippcore.PrinterStateStopped)

		select {
		case <-ctx.Done():
			p.ReleaseDevice()
			return nil, ctx.Err()
		case <-time.After(reopenBackoff):
		}
	}
}

// runDocument looks up a filter for doc's format against the driver's
// native format and streams it through handle (spec.md §4.E format
// dispatch).
func (s *Scheduler) runDocument(job *printer.Job, doc Source, handle *device.Handle, drv pipeline.Driver, cancel func() bool) error {
	driverFormat := drv.Format
	if driverFormat == "" {
		driverFormat = doc.Format
	}

	filter, err := s.filters.Lookup(doc.Format, driverFormat)
	if err != nil {
		return err
	}

	opts := pipeline.OptionsFromAttributes(job.Attributes)
	return filter(deviceWriter{handle}, doc.Reader, opts, bindDriver(drv, handle), cancel)
}

// bindDriver wires drv's raster callbacks to handle so output actually
// reaches the open device, matching the original `rwriteline(job, opts,
// dev, y, line)` signature's dev parameter (spec.md §4.E). A "raw"
// driver (empty Format) streams through the filter's io.Writer directly
// and needs no binding. Any callback the caller already supplied on drv
// runs first; RWriteLine's device write happens after so a driver that
// wants to inspect or transform a line before it's written still can.
func bindDriver(drv pipeline.Driver, handle *device.Handle) pipeline.Driver {
	if drv.Format == "" {
		return drv
	}

	bound := drv
	userWriteLine := drv.RWriteLine
	bound.RWriteLine = func(opts *pipeline.JobOptions, y int, line []byte) error {
		if userWriteLine != nil {
			if err := userWriteLine(opts, y, line); err != nil {
				return err
			}
		}
		if n := handle.Write(line); n < 0 {
			if err := handle.FirstError(); err != nil {
				return err
			}
			return ippcore.ErrTransientIO
		}
		return nil
	}
	return bound
}

// deviceWriter adapts *device.Handle's int-returning Write to io.Writer.
type deviceWriter struct{ h *device.Handle }

func (w deviceWriter) Write(p []byte) (int, error) {
	n := w.h.Write(p)
	if n < 0 {
		if err := w.h.FirstError(); err != nil {
			return 0, err
		}
		return 0, ippcore.ErrTransientIO
	}
	return n, nil
}
