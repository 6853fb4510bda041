package ippserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// newTestSystem wires a System with one printer named "office" backed by
// a file-scheme device under a temp directory, matching scenario S1 of
// spec.md §8.
func newTestSystem(t *testing.T) (*System, *printer.Printer) {
	t.Helper()
	dir := t.TempDir()

	reg := device.NewRegistry()
	filters := pipeline.NewTable()
	bus := events.NewBus()
	sched := scheduler.New(reg, filters, bus, zerolog.Nop())

	sys := NewSystem(sched, bus, zerolog.Nop())
	p := printer.New(1, "office", "file://"+dir)
	sys.AddPrinter(p, pipeline.Driver{})
	return sys, p
}

func buildRequest(op ippcore.Op, requestID uint32, opAttrs *ippcore.Attributes, data []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(0x02)
	buf.WriteByte(0x00)
	buf.WriteByte(byte(op >> 8))
	buf.WriteByte(byte(op))
	buf.WriteByte(byte(requestID >> 24))
	buf.WriteByte(byte(requestID >> 16))
	buf.WriteByte(byte(requestID >> 8))
	buf.WriteByte(byte(requestID))

	if opAttrs == nil {
		opAttrs = ippcore.NewAttributes()
	}
	opAttrs.Set("attributes-charset", "utf-8")
	opAttrs.Set("attributes-natural-language", "en-us")
	ippcore.WriteGroup(buf, ippcore.TagOperationAttrs, opAttrs)
	buf.WriteByte(ippcore.TagEnd)
	buf.Write(data)
	return buf.Bytes()
}

func postIPP(t *testing.T, srv *httptest.Server, path string, body []byte) *ippcore.Message {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/ipp", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	msg, err := ippcore.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	return msg
}

func TestPrintJobRoundTrip(t *testing.T) {
	sys, _ := newTestSystem(t)
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "office")
	}))
	defer srv.Close()

	opAttrs := ippcore.NewAttributes()
	opAttrs.Set("requesting-user-name", "alice")
	opAttrs.Set("job-name", "hello")
	body := buildRequest(ippcore.OpPrintJob, 1, opAttrs, []byte("Hello, world!"))

	msg := postIPP(t, srv, "/", body)
	if ippcore.Status(msg.Code) != ippcore.StatusOK {
		t.Fatalf("status = %#x, want OK", msg.Code)
	}

	jobAttrs, ok := msg.ByTag(ippcore.TagJobAttrs)
	if !ok {
		t.Fatal("response missing job attributes group")
	}
	if jobAttrs.GetInt("job-id") != 1 {
		t.Errorf("job-id = %d, want 1", jobAttrs.GetInt("job-id"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, _, _ := sys.byPrinterName("office")
		if j, ok := p.Job(1); ok && j.State() == ippcore.JobStateCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach completed state")
}

func TestCreateJobSendDocumentSplit(t *testing.T) {
	sys, _ := newTestSystem(t)
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "office")
	}))
	defer srv.Close()

	createAttrs := ippcore.NewAttributes()
	createAttrs.Set("requesting-user-name", "bob")
	createAttrs.Set("job-name", "split-job")
	createBody := buildRequest(ippcore.OpCreateJob, 1, createAttrs, nil)

	msg := postIPP(t, srv, "/", createBody)
	jobAttrs, ok := msg.ByTag(ippcore.TagJobAttrs)
	if !ok {
		t.Fatal("Create-Job response missing job attributes")
	}
	jobID := jobAttrs.GetInt("job-id")

	sendAttrs := ippcore.NewAttributes()
	sendAttrs.Set("job-id", jobID)
	sendAttrs.Set("last-document", true)
	sendBody := buildRequest(ippcore.OpSendDocument, 2, sendAttrs, []byte("split payload"))

	msg = postIPP(t, srv, "/", sendBody)
	if ippcore.Status(msg.Code) != ippcore.StatusOK {
		t.Fatalf("Send-Document status = %#x, want OK", msg.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, _, _ := sys.byPrinterName("office")
		if j, ok := p.Job(jobID); ok && j.State().IsTerminal() {
			if j.State() != ippcore.JobStateCompleted {
				t.Fatalf("job state = %v, want completed", j.State())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
}

func TestGetPrinterAttributesReportsReasons(t *testing.T) {
	sys, p := newTestSystem(t)
	p.SetReasons(1) // ReasonMediaEmpty, the lowest bit
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "office")
	}))
	defer srv.Close()

	body := buildRequest(ippcore.OpGetPrinterAttributes, 1, nil, nil)
	msg := postIPP(t, srv, "/", body)

	printerAttrs, ok := msg.ByTag(ippcore.TagPrinterAttrs)
	if !ok {
		t.Fatal("response missing printer attributes group")
	}
	if got := printerAttrs.GetString("printer-name"); got != "office" {
		t.Errorf("printer-name = %q, want office", got)
	}
	reasons := printerAttrs.All("printer-state-reasons")
	if len(reasons) != 1 || reasons[0] != "media-empty" {
		t.Errorf("printer-state-reasons = %v, want [media-empty]", reasons)
	}
}

func TestGetPrinterAttributesUnknownPrinter(t *testing.T) {
	sys, _ := newTestSystem(t)
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "nonexistent")
	}))
	defer srv.Close()

	body := buildRequest(ippcore.OpGetPrinterAttributes, 1, nil, nil)
	msg := postIPP(t, srv, "/", body)
	if ippcore.Status(msg.Code) != ippcore.StatusClientErrorNotFound {
		t.Fatalf("status = %#x, want not-found", msg.Code)
	}
}

func TestPauseAndResumePrinter(t *testing.T) {
	sys, p := newTestSystem(t)
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "office")
	}))
	defer srv.Close()

	postIPP(t, srv, "/", buildRequest(ippcore.OpPausePrinter, 1, nil, nil))
	if !p.IsStopped() {
		t.Fatal("printer not stopped after Pause-Printer")
	}

	postIPP(t, srv, "/", buildRequest(ippcore.OpResumePrinter, 2, nil, nil))
	if p.IsStopped() {
		t.Fatal("printer still stopped after Resume-Printer")
	}
}

func TestSubscriptionCreateNotifyCancel(t *testing.T) {
	sys, _ := newTestSystem(t)
	s := NewServer("unused", sys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleIPP(w, r, "office")
	}))
	defer srv.Close()

	createAttrs := ippcore.NewAttributes()
	createAttrs.Add("notify-events", "job-completed")
	createAttrs.Set("notify-lease-duration", 300)
	createBody := buildRequest(ippcore.OpCreatePrinterSubscriptions, 1, createAttrs, nil)

	msg := postIPP(t, srv, "/", createBody)
	subAttrs, ok := msg.ByTag(ippcore.TagSubscriptionAttrs)
	if !ok {
		t.Fatal("Create-Printer-Subscriptions response missing subscription attributes")
	}
	subID := subAttrs.GetInt("notify-subscription-id")
	if subID == 0 {
		t.Fatal("subscription id not set")
	}

	p, _, _ := sys.byPrinterName("office")
	jobID := 42
	sys.Bus.AddEvent(&p.ID, &jobID, ippcore.EventJobCompleted, ippcore.NewAttributes())

	notifAttrs := ippcore.NewAttributes()
	notifAttrs.Set("notify-subscription-ids", subID)
	notifAttrs.Set("notify-sequence-numbers", 0)
	notifBody := buildRequest(ippcore.OpGetNotifications, 2, notifAttrs, nil)

	msg = postIPP(t, srv, "/", notifBody)
	eventAttrs, ok := msg.ByTag(ippcore.TagEventNotifAttrs)
	if !ok {
		t.Fatal("Get-Notifications response missing event notification attributes")
	}
	if eventAttrs.GetInt("notify-sequence-number") != 1 {
		t.Errorf("notify-sequence-number = %d, want 1", eventAttrs.GetInt("notify-sequence-number"))
	}

	cancelAttrs := ippcore.NewAttributes()
	cancelAttrs.Set("notify-subscription-id", subID)
	cancelBody := buildRequest(ippcore.OpCancelSubscription, 3, cancelAttrs, nil)
	msg = postIPP(t, srv, "/", cancelBody)
	if ippcore.Status(msg.Code) != ippcore.StatusOK {
		t.Fatalf("Cancel-Subscription status = %#x, want OK", msg.Code)
	}

	sub, ok := sys.Bus.Get(subID)
	if !ok || !sub.IsCanceled() {
		t.Fatal("subscription not marked canceled")
	}
}
