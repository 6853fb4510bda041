// Package device implements the multi-scheme device abstraction of
// spec.md §4.A: a uniform open/read/write/status/id handle over file,
// socket, dns-sd, snmp, and usb transports, each owned exclusively by
// whoever opened it.
package device

import (
	"fmt"
	"sync"
)

// writeBufferSize is the write-coalescing buffer size (spec.md §4.A).
const writeBufferSize = 8192

// ErrorFunc receives the first fatal error encountered by a handle. It
// collapses the source's callback+user-data pair into a single closure
// (spec.md §9 design note).
type ErrorFunc func(err error)

// transport is the per-scheme capability set a Handle delegates to. One
// concrete type exists per transport (spec.md §9 design note): file,
// socket, snmp, usb; the dns-sd scheme resolves its endpoint and then
// uses the socket transport.
type transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Status() (Reasons, error)
	ID() (string, error)
	Close() error
}

// Reasons is a device status bitfield.
type Reasons uint32

const (
	ReasonNone       Reasons = 0
	ReasonMediaEmpty Reasons = 1 << (iota - 1)
	ReasonMediaJam
	ReasonCoverOpen
	ReasonOffline
	ReasonMarkerLow
)

var reasonKeywords = []struct {
	bit     Reasons
	keyword string
}{
	{ReasonMediaEmpty, "media-empty"},
	{ReasonMediaJam, "media-jam"},
	{ReasonCoverOpen, "cover-open"},
	{ReasonOffline, "offline"},
	{ReasonMarkerLow, "marker-supply-low"},
}

// Keywords converts a Reasons bitfield into its printer-state-reasons
// keyword list, in bit order.
func (r Reasons) Keywords() []string {
	var out []string
	for _, k := range reasonKeywords {
		if r&k.bit != 0 {
			out = append(out, k.keyword)
		}
	}
	return out
}

// Handle is an open conduit to a physical endpoint, exclusively owned by
// whoever opened it (spec.md §3 Device handle).
type Handle struct {
	uri       string
	transport transport
	onError   ErrorFunc

	mu       sync.Mutex
	wbuf     []byte
	bytes    int64
	requests int64
	firstErr error
}

func newHandle(uri string, t transport, onError ErrorFunc) *Handle {
	return &Handle{
		uri:       uri,
		transport: t,
		onError:   onError,
		wbuf:      make([]byte, 0, writeBufferSize),
	}
}

// URI returns the device URI this handle was opened from.
func (h *Handle) URI() string { return h.uri }

// BytesWritten returns the total number of bytes flushed to the
// transport; bytes still held in the write buffer are not counted.
func (h *Handle) BytesWritten() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bytes
}

// Requests returns the number of Write calls made on this handle.
func (h *Handle) Requests() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests
}

// Write coalesces small writes through an 8 KiB buffer and returns the
// total number of bytes accepted, or signals a fatal error via the
// installed ErrorFunc and returns -1 after a non-retriable failure
// (spec.md §4.A).
func (h *Handle) Write(p []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests++

	total := 0
	for len(p) > 0 {
		room := writeBufferSize - len(h.wbuf)
		if room > len(p) {
			room = len(p)
		}
		h.wbuf = append(h.wbuf, p[:room]...)
		p = p[room:]
		total += room

		if len(h.wbuf) == writeBufferSize {
			if !h.flushLocked() {
				return -1
			}
		}
	}
	return total
}

// Flush forces any buffered bytes out to the transport.
func (h *Handle) Flush() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLocked()
}

func (h *Handle) flushLocked() bool {
	for len(h.wbuf) > 0 {
		n, err := h.transport.Write(h.wbuf)
		if err != nil {
			if isRetriable(err) {
				// "wrote 0, continue": treat as a no-op retry.
				continue
			}
			h.recordError(err)
			return false
		}
		h.bytes += int64(n)
		h.wbuf = h.wbuf[n:]
	}
	return true
}

// Read fills buf from the underlying transport, retrying transparently on
// interrupted-by-signal/would-block conditions.
func (h *Handle) Read(buf []byte) int {
	for {
		n, err := h.transport.Read(buf)
		if err != nil {
			if isRetriable(err) {
				continue
			}
			h.recordError(err)
			return -1
		}
		return n
	}
}

// Status returns the transport's current reasons bitfield.
func (h *Handle) Status() (Reasons, error) {
	return h.transport.Status()
}

// ID returns the transport's IEEE-1284 device ID, or "" if unavailable.
func (h *Handle) ID() (string, error) {
	return h.transport.ID()
}

// Close flushes any buffered output and closes the underlying transport.
func (h *Handle) Close() error {
	h.Flush()
	return h.transport.Close()
}

func (h *Handle) recordError(err error) {
	if h.firstErr == nil {
		h.firstErr = err
		if h.onError != nil {
			h.onError(err)
		}
	}
}

// FirstError returns the first fatal error recorded on this handle, if any.
func (h *Handle) FirstError() error { return h.firstErr }

func isRetriable(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok && t.Temporary() {
		return true
	}
	return false
}

// wrapOpenError standardizes an open-time failure message.
func wrapOpenError(scheme, uri string, err error) error {
	return fmt.Errorf("device: open %s (%s): %w", scheme, uri, err)
}
