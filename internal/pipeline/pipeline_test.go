package pipeline

import (
	"bytes"
	"io"
	"testing"
)

func TestDitherCorrectnessGrayscaleAll127(t *testing.T) {
	header := &PageHeader{Width: 16, Height: 1, BitsPerColor: 8, ColorOrder: colorOrderChunked, ColorSpace: "sgray", BytesPerLine: 16}
	in := bytes.Repeat([]byte{127}, 16)

	out := DitherLine(in, header, MidThreshold, 0)

	for x := 0; x < 16; x++ {
		threshold := MidThreshold[0][x]
		wantBlack := 127 <= threshold
		gotBlack := out[x/8]&(1<<uint(7-(x%8))) != 0
		if gotBlack != wantBlack {
			t.Errorf("x=%d: got black=%v, want %v (threshold=%d)", x, gotBlack, wantBlack, threshold)
		}
	}
}

func TestDitherCorrectnessKSpaceSymmetric(t *testing.T) {
	header := &PageHeader{Width: 16, Height: 1, BitsPerColor: 8, ColorOrder: colorOrderChunked, ColorSpace: colorSpaceK, BytesPerLine: 16}
	in := bytes.Repeat([]byte{127}, 16)

	out := DitherLine(in, header, MidThreshold, 0)

	for x := 0; x < 16; x++ {
		threshold := MidThreshold[0][x]
		wantBlack := 127 > threshold
		gotBlack := out[x/8]&(1<<uint(7-(x%8))) != 0
		if gotBlack != wantBlack {
			t.Errorf("x=%d: got black=%v, want %v (threshold=%d)", x, gotBlack, wantBlack, threshold)
		}
	}
}

func TestPadLineNonKPadsWhite(t *testing.T) {
	line := []byte{0x01, 0x02}
	out := padLine(line, 5, "sgray")
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	for i := 2; i < 5; i++ {
		if out[i] != 0xFF {
			t.Errorf("out[%d] = %#x, want 0xFF", i, out[i])
		}
	}
}

func TestPadLineKPadsBlack(t *testing.T) {
	line := []byte{0x01}
	out := padLine(line, 4, colorSpaceK)
	for i := 1; i < 4; i++ {
		if out[i] != 0x00 {
			t.Errorf("out[%d] = %#x, want 0x00", i, out[i])
		}
	}
}

func TestValidatePageHeaderRejectsBadBitsPerColor(t *testing.T) {
	h := &PageHeader{Width: 8, Height: 8, BitsPerColor: 4, ColorOrder: colorOrderChunked, BytesPerLine: 4}
	if err := ValidatePageHeader(h); err == nil {
		t.Fatal("expected error for unsupported bits-per-color")
	}
}

func TestValidatePageHeaderRejectsBadBytesPerLine(t *testing.T) {
	h := &PageHeader{Width: 8, Height: 8, BitsPerColor: 8, ColorOrder: colorOrderChunked, BytesPerLine: 999}
	if err := ValidatePageHeader(h); err == nil {
		t.Fatal("expected error for inconsistent bytes-per-line")
	}
}

func TestValidatePageHeaderAccepts1Bit(t *testing.T) {
	h := &PageHeader{Width: 16, Height: 1, BitsPerColor: 1, ColorOrder: colorOrderChunked, BytesPerLine: 2}
	if err := ValidatePageHeader(h); err != nil {
		t.Fatalf("ValidatePageHeader: %v", err)
	}
}

func TestFilterTableFallsBackToPWGRaster(t *testing.T) {
	table := NewTable()
	table.Register("image/jpeg", PWGRasterFormat, func(w io.Writer, r io.Reader, opts *JobOptions, drv Driver, cancel func() bool) error {
		return nil
	})

	f, err := table.Lookup("image/jpeg", "application/vnd.driver-proprietary")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if f == nil {
		t.Fatal("expected a filter via the pwg-raster fallback")
	}
}

func TestFilterTablePassthroughWhenFormatsMatch(t *testing.T) {
	table := NewTable()
	f, err := table.Lookup("application/octet-stream", "application/octet-stream")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	var buf bytes.Buffer
	if err := f(&buf, bytes.NewReader([]byte("hi")), nil, Driver{}, nil); err != nil {
		t.Fatalf("passthrough filter: %v", err)
	}
	if buf.String() != "hi" {
		t.Errorf("buf = %q, want %q", buf.String(), "hi")
	}
}

func TestFilterTableUnsupportedFormat(t *testing.T) {
	table := NewTable()
	if _, err := table.Lookup("application/pdf", "application/vnd.driver-proprietary"); err == nil {
		t.Fatal("expected ErrUnsupportedFormat")
	}
}
