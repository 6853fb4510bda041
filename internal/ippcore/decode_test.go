package ippcore

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildMessage(t *testing.T, code uint16, groups []Group, data []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, uint16(0x0200))
	_ = binary.Write(buf, binary.BigEndian, code)
	_ = binary.Write(buf, binary.BigEndian, uint32(1))
	for _, g := range groups {
		WriteGroup(buf, g.Tag, g.Attrs)
	}
	buf.WriteByte(TagEnd)
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeRoundTripsOperationAndJobGroups(t *testing.T) {
	op := NewAttributes()
	op.Set("printer-uri", "ipp://localhost/printers/office")
	op.Set("requesting-user-name", "alice")
	op.Set("copies", 3)
	op.Set("job-ok", true)

	job := NewAttributes()
	job.Set("job-name", "report.pdf")
	job.Add("finishings", "staple")
	job.Add("finishings", "punch")

	raw := buildMessage(t, uint16(OpPrintJob), []Group{
		{Tag: TagOperationAttrs, Attrs: op},
		{Tag: TagJobAttrs, Attrs: job},
	}, []byte("document bytes"))

	msg, err := Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if msg.Code != uint16(OpPrintJob) {
		t.Errorf("code = %#x, want Print-Job", msg.Code)
	}
	if string(msg.Data) != "document bytes" {
		t.Errorf("data = %q", msg.Data)
	}

	opGroup, ok := msg.ByTag(TagOperationAttrs)
	if !ok {
		t.Fatal("missing operation-attributes group")
	}
	if opGroup.GetString("printer-uri") != "ipp://localhost/printers/office" {
		t.Errorf("printer-uri = %q", opGroup.GetString("printer-uri"))
	}
	if opGroup.GetInt("copies") != 3 {
		t.Errorf("copies = %d, want 3", opGroup.GetInt("copies"))
	}
	if !opGroup.GetBool("job-ok") {
		t.Error("job-ok = false, want true")
	}

	jobGroup, ok := msg.ByTag(TagJobAttrs)
	if !ok {
		t.Fatal("missing job-attributes group")
	}
	finishings := jobGroup.All("finishings")
	if len(finishings) != 2 || finishings[0] != "staple" || finishings[1] != "punch" {
		t.Errorf("finishings = %v, want [staple punch]", finishings)
	}
}

func TestDecodeRejectsTruncatedMessage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte{0x02})); err == nil {
		t.Fatal("expected an error for a too-short message")
	}
}
