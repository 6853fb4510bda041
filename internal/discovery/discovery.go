// Package discovery builds the transient SNMP and DNS-SD browse records a
// sweep accumulates on top of the device scheme registry (spec.md §4.B).
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// SNMPRecord is a temporary entry built during an SNMP discovery sweep:
// address/addrname/URI/device-id/port (spec.md §3).
type SNMPRecord struct {
	Address  string
	AddrName string
	URI      string
	DeviceID string
	Port     int
}

// DNSSDRecord is a temporary entry built during a DNS-SD discovery sweep:
// service-name/domain/full-name/device-id/uuid (spec.md §3).
type DNSSDRecord struct {
	ServiceName string
	Domain      string
	FullName    string
	DeviceID    string
	UUID        string
}

// Lister enumerates candidate devices for one discovery mechanism,
// returning early once cb reports stop (spec.md §4.B).
type Lister interface {
	List(ctx context.Context, cb func(info device.DeviceInfo) (stop bool)) error
}

// registryLister adapts a *device.Registry scheme to the Lister interface.
type registryLister struct {
	reg    *device.Registry
	scheme string
}

func (l registryLister) List(ctx context.Context, cb func(device.DeviceInfo) (stop bool)) error {
	return l.reg.List(ctx, l.scheme, cb)
}

// NewSNMPLister returns the Lister for the snmp:// scheme.
func NewSNMPLister(reg *device.Registry) Lister {
	return registryLister{reg: reg, scheme: "snmp"}
}

// NewDNSSDLister returns the Lister for the dnssd:// scheme.
func NewDNSSDLister(reg *device.Registry) Lister {
	return registryLister{reg: reg, scheme: "dnssd"}
}

// BrowseSNMP runs an SNMP sweep and returns the accumulated browse
// records, honoring ctx cancellation (spec.md §4.B).
func BrowseSNMP(ctx context.Context, l Lister) ([]SNMPRecord, error) {
	var records []SNMPRecord
	err := l.List(ctx, func(info device.DeviceInfo) bool {
		records = append(records, snmpRecordFromInfo(info))
		return false
	})
	return records, err
}

// BrowseDNSSD runs a DNS-SD sweep and returns the accumulated browse
// records, honoring ctx cancellation (spec.md §4.B).
func BrowseDNSSD(ctx context.Context, l Lister) ([]DNSSDRecord, error) {
	var records []DNSSDRecord
	err := l.List(ctx, func(info device.DeviceInfo) bool {
		records = append(records, dnssdRecordFromInfo(info))
		return false
	})
	return records, err
}

func snmpRecordFromInfo(info device.DeviceInfo) SNMPRecord {
	rec := SNMPRecord{URI: info.URI, DeviceID: info.DeviceID}
	u, err := url.Parse(info.URI)
	if err != nil {
		return rec
	}
	rec.Address = u.Hostname()
	rec.AddrName = u.Hostname()
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &rec.Port)
	}
	return rec
}

func dnssdRecordFromInfo(info device.DeviceInfo) DNSSDRecord {
	rec := DNSSDRecord{FullName: info.URI, DeviceID: info.DeviceID}
	// The host is cut out by hand: service names may contain spaces,
	// which url.Parse rejects in a host.
	name := strings.TrimPrefix(info.URI, "dnssd://")
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "."); i >= 0 {
		rec.ServiceName = name[:i]
		rec.Domain = strings.TrimSuffix(name[i+1:], ".")
	} else {
		rec.ServiceName = name
	}
	// Browse records carry a synthetic UUID so the same physical
	// endpoint can be correlated across repeated sweeps even when the
	// DNS-SD TXT record carries none of its own (spec.md §3).
	rec.UUID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(rec.FullName)).String()
	return rec
}

// Sweep runs both browsers concurrently against a shared deadline and
// merges their records, used by the `-list-devices` CLI flag (spec.md
// §4.B/§7).
func Sweep(ctx context.Context, reg *device.Registry, budget time.Duration) ([]SNMPRecord, []DNSSDRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type snmpResult struct {
		recs []SNMPRecord
		err  error
	}
	type dnssdResult struct {
		recs []DNSSDRecord
		err  error
	}
	snmpCh := make(chan snmpResult, 1)
	dnssdCh := make(chan dnssdResult, 1)

	go func() {
		recs, err := BrowseSNMP(sctx, NewSNMPLister(reg))
		snmpCh <- snmpResult{recs, err}
	}()
	go func() {
		recs, err := BrowseDNSSD(sctx, NewDNSSDLister(reg))
		dnssdCh <- dnssdResult{recs, err}
	}()

	sr := <-snmpCh
	dr := <-dnssdCh

	if sr.err != nil && sr.err != context.DeadlineExceeded && sr.err != context.Canceled {
		return sr.recs, dr.recs, fmt.Errorf("%w: snmp sweep: %v", ippcore.ErrTransientIO, sr.err)
	}
	if dr.err != nil && dr.err != context.DeadlineExceeded && dr.err != context.Canceled {
		return sr.recs, dr.recs, fmt.Errorf("%w: dnssd sweep: %v", ippcore.ErrTransientIO, dr.err)
	}
	return sr.recs, dr.recs, nil
}
