package ippserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// Server is the local IPP listener: one HTTP endpoint dispatching every
// printer's requests by path, /printers/<name> (spec.md §6). Grounded
// on the teacher's Server/handleIPP shape in internal/ipp/server.go,
// generalized from one hardcoded CUPS-backed printer to the registered
// printer system.
type Server struct {
	listenAddr string
	sys        *System
	spool      *spoolTable
	log        zerolog.Logger
}

// NewServer returns a server listening on addr and dispatching into sys.
func NewServer(listenAddr string, sys *System) *Server {
	return &Server{
		listenAddr: listenAddr,
		sys:        sys,
		spool:      newSpoolTable(),
		log:        sys.Log.With().Str("component", "ipp-server").Logger(),
	}
}

// ListenAndServe starts the server (spec.md §6).
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/printers/", s.handlePrinter)

	s.log.Info().Str("addr", s.listenAddr).Msg("starting IPP server")
	return http.ListenAndServe(s.listenAddr, mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ippframework"))
		return
	}
	s.handleIPP(w, r, "")
}

func (s *Server) handlePrinter(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/printers/")
	name := strings.Split(path, "/")[0]
	s.handleIPP(w, r, name)
}

func (s *Server) handleIPP(w http.ResponseWriter, r *http.Request, printerName string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, err := ippcore.Decode(r.Body)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to decode IPP request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	op := ippcore.Op(msg.Code)
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	if opAttrs == nil {
		opAttrs = ippcore.NewAttributes()
	}

	s.log.Debug().Stringer("op", op).Str("printer", printerName).Msg("received request")

	var resp []byte
	switch op {
	case ippcore.OpGetPrinterAttributes:
		resp = s.handleGetPrinterAttributes(msg, printerName)
	case ippcore.OpPrintJob:
		resp = s.handlePrintJob(msg, printerName)
	case ippcore.OpValidateJob:
		resp = s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
	case ippcore.OpCreateJob:
		resp = s.handleCreateJob(msg, printerName)
	case ippcore.OpSendDocument:
		resp = s.handleSendDocument(msg, printerName)
	case ippcore.OpCancelJob:
		resp = s.handleCancelJob(msg, printerName)
	case ippcore.OpCancelMyJobs:
		resp = s.handleCancelMyJobs(msg, printerName)
	case ippcore.OpCloseJob:
		resp = s.handleCloseJob(msg, printerName)
	case ippcore.OpGetJobAttributes:
		resp = s.handleGetJobAttributes(msg, printerName)
	case ippcore.OpGetJobs:
		resp = s.handleGetJobs(msg, printerName)
	case ippcore.OpPausePrinter:
		resp = s.handleSetStopped(msg, printerName, true)
	case ippcore.OpResumePrinter:
		resp = s.handleSetStopped(msg, printerName, false)
	case ippcore.OpSetPrinterAttributes:
		resp = s.handleSetPrinterAttributes(msg, printerName)
	case ippcore.OpCreatePrinterSubscriptions:
		resp = s.handleCreatePrinterSubscriptions(msg, printerName)
	case ippcore.OpGetNotifications:
		resp = s.handleGetNotifications(msg)
	case ippcore.OpCancelSubscription:
		resp = s.handleCancelSubscription(msg)
	case ippcore.OpRenewSubscription:
		resp = s.handleRenewSubscription(msg)
	case ippcore.OpGetSubscriptionAttributes:
		resp = s.handleGetSubscriptionAttributes(msg)
	case ippcore.OpListSubscriptions:
		resp = s.handleListSubscriptions(msg, printerName)
	default:
		s.log.Warn().Stringer("op", op).Msg("unsupported operation")
		resp = s.buildResponse(msg.RequestID, ippcore.StatusClientErrorBadRequest, nil)
	}

	_ = opAttrs // reserved for future per-operation request validation
	w.Header().Set("Content-Type", "application/ipp")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (s *Server) resolvePrinter(name string) (*printer.Printer, pipeline.Driver, bool) {
	return s.sys.byPrinterName(name)
}

func (s *Server) buildResponse(requestID uint32, status ippcore.Status, groups []ippcore.Group) []byte {
	buf := &bytes.Buffer{}
	writeHeader(buf, uint16(status), requestID)

	op := ippcore.NewAttributes()
	op.Set("attributes-charset", "utf-8")
	op.Set("attributes-natural-language", "en-us")
	ippcore.WriteGroup(buf, ippcore.TagOperationAttrs, op)

	for _, g := range groups {
		ippcore.WriteGroup(buf, g.Tag, g.Attrs)
	}
	buf.WriteByte(ippcore.TagEnd)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, status uint16, requestID uint32) {
	_ = buf.WriteByte(0x02)
	_ = buf.WriteByte(0x00)
	_ = buf.WriteByte(byte(status >> 8))
	_ = buf.WriteByte(byte(status))
	_ = buf.WriteByte(byte(requestID >> 24))
	_ = buf.WriteByte(byte(requestID >> 16))
	_ = buf.WriteByte(byte(requestID >> 8))
	_ = buf.WriteByte(byte(requestID))
}

func jobURI(printerName string, jobID int) string {
	return fmt.Sprintf("ipp://localhost/printers/%s/jobs/%d", printerName, jobID)
}

func jobAttrGroup(printerName string, j *printer.Job) *ippcore.Attributes {
	a := ippcore.NewAttributes()
	a.Set("job-id", j.ID)
	a.Set("job-uri", jobURI(printerName, j.ID))
	a.Set("job-state", int(j.State()))
	a.Set("job-name", j.Name)
	a.Set("job-originating-user-name", j.User)
	a.Set("job-impressions-completed", j.Impressions())
	return a
}

// runJobAsync hands docs to the scheduler in the background so the IPP
// response can return immediately, matching the asynchronous contract
// of Print-Job/Send-Document (spec.md §4.E, §6).
func (s *Server) runJobAsync(p *printer.Printer, job *printer.Job, drv pipeline.Driver, docs []scheduler.Source) {
	go s.sys.Scheduler.RunJob(context.Background(), p, job, docs, drv)
}
