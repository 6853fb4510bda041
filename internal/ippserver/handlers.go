package ippserver

import (
	"bytes"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

func (s *Server) handleGetPrinterAttributes(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}

	a := ippcore.NewAttributes()
	a.Set("printer-uri-supported", jobURI(printerName, 0))
	a.Set("printer-name", p.Name)
	a.Set("printer-state", int(p.State()))
	a.Set("printer-is-accepting-jobs", p.IsAccepting())
	a.Set("queued-job-count", len(p.ActiveJobs()))
	a.Set("uri-security-supported", "none")
	a.Set("uri-authentication-supported", "none")
	a.Set("charset-configured", "utf-8")

	reasons := p.Reasons().Keywords()
	a.Set("printer-state-reasons", firstOr(reasons, "none"))
	for _, r := range remainder(reasons) {
		a.Add("printer-state-reasons", r)
	}

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagPrinterAttrs, Attrs: a},
	})
}

func firstOr(vs []string, fallback string) string {
	if len(vs) == 0 {
		return fallback
	}
	return vs[0]
}

func remainder(vs []string) []string {
	if len(vs) <= 1 {
		return nil
	}
	return vs[1:]
}

func (s *Server) handlePrintJob(msg *ippcore.Message, printerName string) []byte {
	p, drv, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	job, err := p.CreateJob(opAttrs.GetString("requesting-user-name"), opAttrs.GetString("job-name"), opAttrs)
	if err != nil {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorBusy, nil)
	}

	format := opAttrs.GetString("document-format")
	if format == "" {
		format = "application/octet-stream"
	}
	job.AddDocument(format, opAttrs)

	s.sys.Bus.AddEvent(&p.ID, &job.ID, ippcore.EventJobCreated, jobAttrGroup(printerName, job))
	s.runJobAsync(p, job, drv, []scheduler.Source{{Format: format, Reader: bytes.NewReader(msg.Data)}})

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, job)},
	})
}

func (s *Server) handleCreateJob(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	job, err := p.CreateJob(opAttrs.GetString("requesting-user-name"), opAttrs.GetString("job-name"), opAttrs)
	if err != nil {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorBusy, nil)
	}

	s.sys.Bus.AddEvent(&p.ID, &job.ID, ippcore.EventJobCreated, jobAttrGroup(printerName, job))

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, job)},
	})
}

func (s *Server) handleSendDocument(msg *ippcore.Message, printerName string) []byte {
	p, drv, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	jobID := opAttrs.GetInt("job-id")
	job, ok := p.Job(jobID)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}

	format := opAttrs.GetString("document-format")
	if format == "" {
		format = "application/octet-stream"
	}
	job.AddDocument(format, opAttrs)
	s.spool.append(jobID, scheduler.Source{Format: format, Reader: bytes.NewReader(msg.Data)})

	if opAttrs.GetBool("last-document") {
		docs := s.spool.take(jobID)
		s.runJobAsync(p, job, drv, docs)
	}

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, job)},
	})
}

// handleCloseJob finalizes a Create-Job/Send-Document sequence that
// never set last-document explicitly (spec.md §6).
func (s *Server) handleCloseJob(msg *ippcore.Message, printerName string) []byte {
	p, drv, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	jobID := opAttrs.GetInt("job-id")

	job, ok := p.Job(jobID)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}

	if docs := s.spool.take(jobID); len(docs) > 0 {
		s.runJobAsync(p, job, drv, docs)
	}

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, job)},
	})
}

func (s *Server) handleCancelJob(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	jobID := opAttrs.GetInt("job-id")

	if err := p.CancelJob(jobID); err != nil {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	s.sys.Bus.AddEvent(&p.ID, &jobID, ippcore.EventJobStateChanged, nil)
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
}

func (s *Server) handleCancelMyJobs(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	user := opAttrs.GetString("requesting-user-name")

	for _, job := range p.ActiveJobs() {
		if job.User == user {
			_ = p.CancelJob(job.ID)
		}
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
}

func (s *Server) handleGetJobAttributes(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	job, ok := p.Job(opAttrs.GetInt("job-id"))
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, job)},
	})
}

func (s *Server) handleGetJobs(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	var jobs []*printer.Job
	switch opAttrs.GetString("which-jobs") {
	case "completed":
		jobs = p.CompletedJobs()
	default:
		jobs = p.ActiveJobs()
	}

	groups := make([]ippcore.Group, len(jobs))
	for i, j := range jobs {
		groups[i] = ippcore.Group{Tag: ippcore.TagJobAttrs, Attrs: jobAttrGroup(printerName, j)}
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, groups)
}

func (s *Server) handleSetStopped(msg *ippcore.Message, printerName string, stopped bool) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	p.SetStopped(stopped)
	event := ippcore.EventPrinterStopped
	if !stopped {
		event = ippcore.EventPrinterStateChanged
	}
	s.sys.Bus.AddEvent(&p.ID, nil, event, nil)
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
}

func (s *Server) handleSetPrinterAttributes(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	printerAttrs, ok := msg.ByTag(ippcore.TagPrinterAttrs)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorBadRequest, nil)
	}
	if v, ok := printerAttrs.Get("printer-is-accepting-jobs"); ok {
		if accepting, ok := v.(bool); ok {
			p.SetAccepting(accepting)
		}
	}
	s.sys.Bus.AddEvent(&p.ID, nil, ippcore.EventPrinterConfigChanged, nil)
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
}
