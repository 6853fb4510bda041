package proxy

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// noWorkSleep is how long the engine waits before its next poll when
// its printer has no active or fetchable jobs (spec.md §4.F step 1:
// "If no work pending, sleep 1 s").
const noWorkSleep = 1 * time.Second

// pollErrorBackoff is how long the engine waits before retrying after
// a poll iteration fails outright.
const pollErrorBackoff = 15 * time.Second

// Runner executes one fetched job's documents against the printer's
// device; satisfied by *scheduler.Scheduler.
type Runner interface {
	RunJob(ctx context.Context, p *printer.Printer, job *printer.Job, docs []scheduler.Source, drv pipeline.Driver)
}

// Engine is one printer's infrastructure proxy connection: it polls an
// upstream infrastructure printer for fetchable jobs, spools them
// locally, and reports their outcome back upstream (spec.md §4.F).
type Engine struct {
	Printer *printer.Printer
	Driver  pipeline.Driver

	client *client
	run    Runner
	bus    *events.Bus
	log    zerolog.Logger

	jobs  *jobTable
	subID int

	// lastSeq and nextInterval carry Get-Notifications state across
	// poll iterations (spec.md §4.F step 6): the highest notification
	// sequence number acknowledged so far, and the server-suggested
	// poll interval to honor on the next wait.
	lastSeq      int
	nextInterval time.Duration
}

// NewEngine returns an engine bound to one printer and its upstream
// infrastructure-printer URI. bearer is the proxy's registration
// token, sent as a Bearer credential on every upstream request.
func NewEngine(p *printer.Printer, proxyURI, proxyUUID, bearer string, drv pipeline.Driver, run Runner, bus *events.Bus, log zerolog.Logger) *Engine {
	return &Engine{
		Printer:      p,
		Driver:       drv,
		client:       newClient(proxyURI, proxyUUID, bearer),
		run:          run,
		bus:          bus,
		log:          log.With().Str("component", "proxy").Int("printer_id", p.ID).Logger(),
		jobs:         newJobTable(),
		nextInterval: 5 * time.Second,
	}
}

// Run drives the proxy loop until ctx is canceled or its printer is
// deleted, at which point it tears down its subscription and returns
// (spec.md §4.F step 7).
func (e *Engine) Run(ctx context.Context) {
	defer e.teardown()

	for {
		if err := ctx.Err(); err != nil || e.Printer.IsDeleted() {
			return
		}

		if err := e.poll(ctx); err != nil {
			e.log.Error().Err(err).Msg("proxy poll failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollErrorBackoff):
			}
			continue
		}

		interval := e.nextInterval
		if !e.Printer.HasActiveJobs() && len(e.jobs.all()) == 0 {
			interval = noWorkSleep
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// poll runs one iteration of spec.md §4.F steps 3-6: report active
// jobs, ensure a subscription exists, fetch newly-fetchable jobs, and
// drain pending notifications.
func (e *Engine) poll(ctx context.Context) error {
	if err := e.reportActiveJobs(); err != nil {
		return fmt.Errorf("Update-Active-Jobs: %w", err)
	}

	if e.subID == 0 {
		id, err := e.client.createPrinterSubscriptions()
		if err != nil {
			return fmt.Errorf("Create-Printer-Subscriptions: %w", err)
		}
		e.subID = id
		e.log.Info().Int("subscription_id", id).Msg("proxy subscribed")
	}

	if err := e.fetchNewJobs(ctx); err != nil {
		return fmt.Errorf("fetch jobs: %w", err)
	}

	newSeq, fetchable, interval, err := e.client.getNotifications(e.subID, e.lastSeq)
	if err != nil {
		return fmt.Errorf("Get-Notifications: %w", err)
	}
	e.lastSeq = newSeq
	e.nextInterval = interval

	if fetchable {
		if err := e.fetchNewJobs(ctx); err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
	}
	return nil
}

// reportActiveJobs sends Update-Active-Jobs with every locally tracked
// job's state, reconciles local state against the infrastructure
// printer's authoritative echo, and reports this proxy's driver
// capabilities (spec.md §4.F step 3).
func (e *Engine) reportActiveJobs() error {
	jobs := e.jobs.all()
	if len(jobs) == 0 {
		return nil
	}
	ids := make([]int, len(jobs))
	states := make([]int, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ParentJobID
		states[i] = int(j.Local.State())
	}

	remoteIDs, remoteStates, err := e.client.updateActiveJobs(ids, states)
	if err != nil {
		return err
	}
	e.reconcileJobs(jobs, remoteIDs, remoteStates)

	if _, err := e.client.updateOutputDeviceAttributes(driverCapabilities(e.Driver)); err != nil {
		e.log.Error().Err(err).Msg("Update-Output-Device-Attributes failed")
	}
	return nil
}

// reconcileJobs applies spec.md §4.F step 3's reconciliation rule
// against the infrastructure printer's authoritative (job-ids,
// output-device-job-states) echo: if the remote state is at least
// canceled while the local state is earlier, the local job is
// canceled; if the remote state is pending while the local job is
// held, it is released.
func (e *Engine) reconcileJobs(local []*Job, remoteIDs []int, remoteStates []int) {
	remote := make(map[int]ippcore.JobState, len(remoteIDs))
	for i, id := range remoteIDs {
		if i < len(remoteStates) {
			remote[id] = ippcore.JobState(remoteStates[i])
		}
	}

	for _, pj := range local {
		remoteState, ok := remote[pj.ParentJobID]
		if !ok {
			continue
		}
		localState := pj.Local.State()

		switch {
		case remoteState >= ippcore.JobStateCanceled && localState < ippcore.JobStateCanceled:
			pj.Local.Cancel()
			e.log.Info().Int("parent_job_id", pj.ParentJobID).Msg("reconciled: canceled locally")
		case remoteState == ippcore.JobStatePending && localState == ippcore.JobStateHeld:
			pj.Local.Release()
			e.log.Info().Int("parent_job_id", pj.ParentJobID).Msg("reconciled: released locally")
		}
	}
}

// driverCapabilities builds the Update-Output-Device-Attributes
// payload describing this proxy's driver (spec.md §4.F step 3:
// "carrying driver capabilities").
func driverCapabilities(drv pipeline.Driver) map[string]interface{} {
	format := drv.Format
	if format == "" {
		format = "application/octet-stream"
	}
	attrs := map[string]interface{}{
		"document-format-supported": format,
	}
	if drv.RWriteLine != nil {
		attrs["pwg-raster-document-type-supported"] = format
	}
	return attrs
}

// fetchNewJobs implements spec.md §4.F step 5: Get-Jobs(fetchable),
// then for each job not already in proxy_jobs, Fetch-Job,
// Acknowledge-Job, Fetch-Document for every document, Acknowledge-
// Document, spool a local job, and hand it to the runner.
func (e *Engine) fetchNewJobs(ctx context.Context) error {
	ids, err := e.client.fetchableJobs()
	if err != nil {
		return err
	}

	for _, parentID := range ids {
		if _, ok := e.jobs.byParentID(parentID); ok {
			continue
		}

		fj, err := e.client.fetchJob(parentID)
		if err != nil {
			e.log.Error().Err(err).Int("parent_job_id", parentID).Msg("Fetch-Job failed")
			continue
		}
		if err := e.client.acknowledgeJob(parentID); err != nil {
			e.log.Error().Err(err).Int("parent_job_id", parentID).Msg("Acknowledge-Job failed")
		}

		localJob, docs, err := e.spool(fj)
		if err != nil {
			e.log.Error().Err(err).Int("parent_job_id", parentID).Msg("spooling fetched job failed")
			continue
		}

		pj := &Job{Local: localJob, ParentJobID: parentID, ParentJobUUID: fj.ParentUUID}
		e.jobs.add(pj)

		go e.runAndReport(ctx, pj, docs)
	}
	return nil
}

// spool fetches every document of fj and stages it as a local job
// (spec.md §4.F step 5).
func (e *Engine) spool(fj *fetchedJob) (*printer.Job, []scheduler.Source, error) {
	localJob, err := e.Printer.CreateJob("proxy", fmt.Sprintf("fetched-%d", fj.JobID), ippcore.NewAttributes())
	if err != nil {
		return nil, nil, err
	}

	var docs []scheduler.Source
	for n := 1; n <= fj.DocumentCnt; n++ {
		data, format, err := e.client.fetchDocument(fj.JobID, n)
		if err != nil {
			return nil, nil, fmt.Errorf("Fetch-Document %d: %w", n, err)
		}
		if err := e.client.acknowledgeDocument(fj.JobID, n); err != nil {
			e.log.Error().Err(err).Int("document_number", n).Msg("Acknowledge-Document failed")
		}
		localJob.AddDocument(format, ippcore.NewAttributes())
		docs = append(docs, scheduler.Source{Format: format, Reader: bytes.NewReader(data)})
	}
	return localJob, docs, nil
}

// runAndReport runs a fetched job's documents, then reports each
// document's final state via Update-Document-Status and the job's final
// state via Update-Job-Status (spec.md §4.F). Only the final state is
// reported; earlier transitions such as the start of processing are not
// sent upstream.
func (e *Engine) runAndReport(ctx context.Context, pj *Job, docs []scheduler.Source) {
	e.run.RunJob(ctx, e.Printer, pj.Local, docs, e.Driver)

	finalState := pj.Local.State()
	for _, doc := range pj.Local.Documents() {
		doc.State = finalState
		if err := e.client.updateDocumentStatus(pj.ParentJobID, doc.Number, finalState); err != nil {
			e.log.Error().Err(err).Int("parent_job_id", pj.ParentJobID).Int("document_number", doc.Number).Msg("Update-Document-Status failed")
		}
	}

	if err := e.client.updateJobStatus(pj.ParentJobID, finalState); err != nil {
		e.log.Error().Err(err).Int("parent_job_id", pj.ParentJobID).Msg("Update-Job-Status failed")
	}
	e.jobs.remove(pj.ParentJobID)
}

func (e *Engine) teardown() {
	if e.subID == 0 {
		return
	}
	if err := e.client.cancelSubscription(e.subID); err != nil {
		e.log.Error().Err(err).Msg("Cancel-Subscription on shutdown failed")
	}
	e.subID = 0
}
