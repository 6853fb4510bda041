// Package pipeline implements the format-conversion and streaming
// raster pipeline of spec.md §4.E: filter dispatch by MIME type,
// PWG-raster page streaming, and line dithering/padding.
package pipeline

import (
	"fmt"
	"io"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// PWGRasterFormat is the MIME type the scheduler retries against when no
// direct filter matches the job's source format (spec.md §4.E).
const PWGRasterFormat = "image/pwg-raster"

// FilterFunc consumes a spooled document and either streams bytes
// directly to the device or, for raster-consuming drivers, streams
// pages through drv's callbacks. cancel is polled at page/write
// boundaries for cancellation latency (spec.md §4.D, §5).
type FilterFunc func(w io.Writer, r io.Reader, opts *JobOptions, drv Driver, cancel func() bool) error

// key identifies a filter by source and destination MIME type.
type key struct{ src, dst string }

// Table is the system-wide filter registry (spec.md §4.E format
// dispatch), keyed by (src_format, driver_format).
type Table struct {
	filters map[key]FilterFunc
}

// NewTable returns an empty filter table.
func NewTable() *Table {
	return &Table{filters: make(map[key]FilterFunc)}
}

// Register installs a filter for the given (src, dst) MIME pair.
func (t *Table) Register(src, dst string, f FilterFunc) {
	t.filters[key{src, dst}] = f
}

// Lookup implements spec.md §4.E's format dispatch: an exact
// (src, dst) match first, then src -> image/pwg-raster, then a raw
// pass-through when src == dst, else ErrUnsupportedFormat.
func (t *Table) Lookup(src, dst string) (FilterFunc, error) {
	if f, ok := t.filters[key{src, dst}]; ok {
		return f, nil
	}
	if f, ok := t.filters[key{src, PWGRasterFormat}]; ok {
		return f, nil
	}
	if src == dst {
		return passthroughFilter, nil
	}
	return nil, fmt.Errorf("%w: no filter from %s to %s", ippcore.ErrUnsupportedFormat, src, dst)
}

// passthroughFilter copies bytes verbatim when src_format == driver_format
// (spec.md §4.E).
func passthroughFilter(w io.Writer, r io.Reader, _ *JobOptions, _ Driver, _ func() bool) error {
	_, err := io.Copy(w, r)
	return err
}
