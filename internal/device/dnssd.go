package device

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

const (
	dnssdResolveBudget = 30 * time.Second
	dnssdServiceType   = "_ipp._tcp"
)

// unescapeServiceName reverses the DNS-SD escaping applied to a service
// instance name embedded in a dnssd:// URI (spec.md §6).
func unescapeServiceName(escaped string) string {
	r := strings.NewReplacer(`\.`, ".", `\\`, `\`)
	return r.Replace(escaped)
}

// resolveDNSSD looks up a DNS-SD service instance via the mDNS
// collaborator, waiting up to dnssdResolveBudget (spec.md §4.A).
func resolveDNSSD(ctx context.Context, instance, service, domain string) (*mdns.ServiceEntry, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	params := mdns.DefaultParams(service)
	params.Domain = domain
	params.Timeout = dnssdResolveBudget
	params.Entries = entries

	done := make(chan error, 1)
	go func() { done <- mdns.Query(params) }()

	deadline := time.Now().Add(dnssdResolveBudget)
	for time.Now().Before(deadline) {
		select {
		case e := <-entries:
			if e != nil && strings.EqualFold(e.Name, instance+"."+service+"."+domain+".") {
				return e, nil
			}
		case err := <-done:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: dns-sd resolve timed out for %s", ippcore.ErrTransientIO, instance)
}

// txtToDeviceID synthesizes an IEEE-1284 device ID from a DNS-SD TXT
// record, mining usb_MFG/MDL/CMD, pdl, ty, product (spec.md §4.A).
func txtToDeviceID(txt map[string]string) string {
	d := &ippcore.DeviceID{}
	if v, ok := txt["usb_MFG"]; ok {
		d.Manufacturer = v
	} else if v, ok := txt["ty"]; ok {
		d.Manufacturer = v
	}
	if v, ok := txt["usb_MDL"]; ok {
		d.Model = v
	} else if v, ok := txt["product"]; ok {
		d.Model = strings.Trim(v, "()")
	}
	if v, ok := txt["usb_CMD"]; ok {
		d.CommandSet = strings.Split(v, ",")
	} else if v, ok := txt["pdl"]; ok {
		d.CommandSet = ippcore.CommandSetFromPDL(v)
	}
	return d.String()
}

func parseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		if i := strings.Index(r, "="); i >= 0 {
			out[r[:i]] = r[i+1:]
		}
	}
	return out
}

func openDNSSD(u *url.URL, jobName string, onError ErrorFunc) (*Handle, error) {
	instance := unescapeServiceName(u.Hostname())
	parts := strings.SplitN(instance, "._tcp.", 2)
	domain := "local"
	service := dnssdServiceType
	if len(parts) == 2 {
		instance = parts[0]
		domain = strings.TrimSuffix(parts[1], ".")
	}
	_ = service

	entry, err := resolveDNSSD(context.Background(), instance, dnssdServiceType, domain)
	if err != nil {
		return nil, wrapOpenError("dnssd", u.String(), err)
	}

	host := entry.Addr.String()
	if host == "" {
		host = entry.Host
	}

	conn, err := dialSocket(host, entry.Port)
	if err != nil {
		return nil, wrapOpenError("dnssd", u.String(), err)
	}
	return newHandle(u.String(), &socketTransport{conn: conn}, onError), nil
}

func listDNSSD(ctx context.Context, cb func(DeviceInfo) (stop bool)) error {
	entries := make(chan *mdns.ServiceEntry, 32)
	params := mdns.DefaultParams(dnssdServiceType)
	params.Entries = entries
	params.Timeout = 10 * time.Second

	go func() { _ = mdns.Query(params) }()

	deadline := time.Now().Add(params.Timeout)
	for time.Now().Before(deadline) {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if e == nil {
				continue
			}
			txt := parseTXT(e.InfoFields)
			info := DeviceInfo{
				URI:       fmt.Sprintf("dnssd://%s._ipp._tcp.local/", escapeServiceName(e.Name)),
				DeviceID:  txtToDeviceID(txt),
				MakeModel: txt["ty"],
			}
			if cb(info) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

func escapeServiceName(name string) string {
	r := strings.NewReplacer(".", `\.`, `\`, `\\`)
	return r.Replace(strings.TrimSuffix(name, "."+dnssdServiceType+".local."))
}
