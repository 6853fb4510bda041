package proxy

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phin1x/go-ipp"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// fakeUpstream is a minimal infrastructure printer: it reads the
// operation code out of the incoming request's fixed 8-byte header the
// same way the teacher's handleIPP does, and hands back a hand-built
// IPP response for the test to script.
type fakeUpstream struct {
	responses map[uint16][]byte
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{responses: make(map[uint16][]byte)}
}

func (f *fakeUpstream) on(op uint16, resp []byte) {
	f.responses[op] = resp
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := readAll(r)
		if len(body) < 8 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		op := binary.BigEndian.Uint16(body[2:4])

		resp, ok := f.responses[op]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/ipp")
		_, _ = w.Write(resp)
	}
}

func readAll(r *http.Request) ([]byte, error) {
	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

// ippResponse builds a wire-format IPP response matching the encoding
// the teacher's hand-rolled server uses: a 2-byte version, 2-byte
// status, 4-byte request id, an operation-attributes group, one group
// per extra attribute set, an end tag, and trailing raw document bytes.
func ippResponse(status uint16, groups []struct {
	tag   byte
	attrs *ippcore.Attributes
}, data []byte) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, uint16(0x0200))
	_ = binary.Write(buf, binary.BigEndian, status)
	_ = binary.Write(buf, binary.BigEndian, uint32(1))

	opAttrs := ippcore.NewAttributes()
	opAttrs.Set("attributes-charset", "utf-8")
	opAttrs.Set("attributes-natural-language", "en-us")
	ippcore.WriteGroup(buf, ippcore.TagOperationAttrs, opAttrs)

	for _, g := range groups {
		ippcore.WriteGroup(buf, g.tag, g.attrs)
	}
	buf.WriteByte(ippcore.TagEnd)
	buf.Write(data)
	return buf.Bytes()
}

func TestCreatePrinterSubscriptionsParsesID(t *testing.T) {
	up := newFakeUpstream()
	opAttrs := ippcore.NewAttributes()
	opAttrs.Set("notify-subscription-id", 42)

	resp := &bytes.Buffer{}
	_ = binary.Write(resp, binary.BigEndian, uint16(0x0200))
	_ = binary.Write(resp, binary.BigEndian, uint16(0x0000))
	_ = binary.Write(resp, binary.BigEndian, uint32(1))
	ippcore.WriteGroup(resp, ippcore.TagOperationAttrs, opAttrs)
	resp.WriteByte(ippcore.TagEnd)
	up.on(uint16(ipp.OperationCreatePrinterSubscription), resp.Bytes())

	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newClient(srv.URL, "proxy-uuid", "")
	id, err := c.createPrinterSubscriptions()
	if err != nil {
		t.Fatalf("createPrinterSubscriptions: %v", err)
	}
	if id != 42 {
		t.Errorf("subscription id = %d, want 42", id)
	}
}

func TestFetchableJobsParsesJobIDs(t *testing.T) {
	up := newFakeUpstream()

	job1 := ippcore.NewAttributes()
	job1.Set("job-id", 101)
	job2 := ippcore.NewAttributes()
	job2.Set("job-id", 102)

	resp := ippResponse(0x0000, []struct {
		tag   byte
		attrs *ippcore.Attributes
	}{
		{ippcore.TagJobAttrs, job1},
		{ippcore.TagJobAttrs, job2},
	}, nil)
	up.on(uint16(ipp.OperationGetJobs), resp)

	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newClient(srv.URL, "proxy-uuid", "")
	ids, err := c.fetchableJobs()
	if err != nil {
		t.Fatalf("fetchableJobs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 102 {
		t.Errorf("ids = %v, want [101 102]", ids)
	}
}

func TestGetNotificationsClampsInterval(t *testing.T) {
	cases := []struct {
		serverSecs int
		want       int
	}{
		{2, 5},
		{120, 60},
		{30, 30},
	}

	for _, tc := range cases {
		up := newFakeUpstream()
		op := ippcore.NewAttributes()
		op.Set("attributes-charset", "utf-8")
		op.Set("attributes-natural-language", "en-us")
		op.Set("notify-get-interval", tc.serverSecs)

		buf := &bytes.Buffer{}
		_ = binary.Write(buf, binary.BigEndian, uint16(0x0200))
		_ = binary.Write(buf, binary.BigEndian, uint16(0x0000))
		_ = binary.Write(buf, binary.BigEndian, uint32(1))
		ippcore.WriteGroup(buf, ippcore.TagOperationAttrs, op)
		buf.WriteByte(ippcore.TagEnd)
		up.on(uint16(ipp.OperationGetNotifications), buf.Bytes())

		srv := httptest.NewServer(up.handler())
		c := newClient(srv.URL, "proxy-uuid", "")
		_, _, interval, err := c.getNotifications(1, 0)
		srv.Close()
		if err != nil {
			t.Fatalf("getNotifications: %v", err)
		}
		if interval.Seconds() != float64(tc.want) {
			t.Errorf("server=%ds: interval = %v, want %ds", tc.serverSecs, interval, tc.want)
		}
	}
}

func TestFetchDocumentReturnsTrailingBytes(t *testing.T) {
	up := newFakeUpstream()
	job := ippcore.NewAttributes()
	job.Set("document-format", "application/pdf")

	resp := ippResponse(0x0000, []struct {
		tag   byte
		attrs *ippcore.Attributes
	}{
		{ippcore.TagJobAttrs, job},
	}, []byte("%PDF-1.4 fake document body"))
	up.on(uint16(opFetchDocument), resp)

	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newClient(srv.URL, "proxy-uuid", "")
	data, format, err := c.fetchDocument(7, 1)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if format != "application/pdf" {
		t.Errorf("format = %q, want application/pdf", format)
	}
	if string(data) != "%PDF-1.4 fake document body" {
		t.Errorf("data = %q", data)
	}
}
