package device

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// DeviceInfo describes one candidate device surfaced by a scheme's List
// capability (spec.md §4.B).
type DeviceInfo struct {
	URI       string
	DeviceID  string
	MakeModel string
}

// ListFunc enumerates candidate devices for a scheme. It returns early if
// cb returns true (spec.md §4.B cancellation contract).
type ListFunc func(ctx context.Context, cb func(DeviceInfo) (stop bool)) error

// OpenFunc opens a device URI and returns a ready Handle.
type OpenFunc func(uri *url.URL, jobName string, onError ErrorFunc) (*Handle, error)

// Capability bundles the operations a scheme may support. List is
// optional; Open is mandatory.
type Capability struct {
	Open OpenFunc
	List ListFunc
}

// Registry is the process-wide scheme -> capability mapping (spec.md §3
// Device scheme registry). It is populated once at startup and is safe
// for concurrent reads; Register is rare and explicit.
type Registry struct {
	mu     sync.RWMutex
	schemes map[string]Capability
}

// NewRegistry returns a registry pre-populated with the built-in file,
// socket, dns-sd, snmp, and usb schemes.
func NewRegistry() *Registry {
	r := &Registry{schemes: make(map[string]Capability)}
	r.Register("file", Capability{Open: openFile})
	r.Register("socket", Capability{Open: openSocket})
	r.Register("dnssd", Capability{Open: openDNSSD, List: listDNSSD})
	r.Register("snmp", Capability{Open: openSNMP, List: listSNMP})
	r.Register("usb", Capability{Open: openUSB, List: listUSB})
	return r
}

// Register installs or replaces a scheme's capability set.
func (r *Registry) Register(scheme string, cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[scheme] = cap
}

// Lookup returns the capability for scheme, if registered.
func (r *Registry) Lookup(scheme string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.schemes[scheme]
	return c, ok
}

// Open resolves the URI's scheme and opens a handle through it.
func (r *Registry) Open(deviceURI, jobName string, onError ErrorFunc) (*Handle, error) {
	u, err := url.Parse(deviceURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidURI, deviceURI, err)
	}
	cap, ok := r.Lookup(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: unknown scheme %q", errInvalidURI, u.Scheme)
	}
	return cap.Open(u, jobName, onError)
}

// List enumerates candidates for scheme.
func (r *Registry) List(ctx context.Context, scheme string, cb func(DeviceInfo) (stop bool)) error {
	cap, ok := r.Lookup(scheme)
	if !ok || cap.List == nil {
		return fmt.Errorf("%w: scheme %q has no discovery support", errInvalidURI, scheme)
	}
	return cap.List(ctx, cb)
}
