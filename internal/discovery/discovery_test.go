package discovery

import (
	"context"
	"testing"

	"github.com/WaffleThief123/ippframework/internal/device"
)

type fakeLister struct {
	infos []device.DeviceInfo
}

func (f fakeLister) List(ctx context.Context, cb func(device.DeviceInfo) (stop bool)) error {
	for _, info := range f.infos {
		if cb(info) {
			break
		}
	}
	return nil
}

func TestBrowseSNMPFieldsFromURI(t *testing.T) {
	l := fakeLister{infos: []device.DeviceInfo{
		{URI: "snmp://192.168.1.50:9100", DeviceID: "MFG:HP;MDL:LaserJet;"},
	}}

	records, err := BrowseSNMP(context.Background(), l)
	if err != nil {
		t.Fatalf("BrowseSNMP: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Address != "192.168.1.50" {
		t.Errorf("Address = %q, want 192.168.1.50", rec.Address)
	}
	if rec.Port != 9100 {
		t.Errorf("Port = %d, want 9100", rec.Port)
	}
	if rec.DeviceID == "" {
		t.Error("DeviceID should not be empty")
	}
}

func TestBrowseDNSSDSplitsServiceAndDomain(t *testing.T) {
	l := fakeLister{infos: []device.DeviceInfo{
		{URI: "dnssd://Example Printer._ipp._tcp.local/", DeviceID: "MFG:Epson;"},
	}}

	records, err := BrowseDNSSD(context.Background(), l)
	if err != nil {
		t.Fatalf("BrowseDNSSD: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ServiceName != "Example Printer" {
		t.Errorf("ServiceName = %q, want %q", rec.ServiceName, "Example Printer")
	}
	if rec.UUID == "" {
		t.Error("UUID should be populated for correlation across sweeps")
	}
}

func TestListerStopsWhenCallbackReturnsTrue(t *testing.T) {
	l := fakeLister{infos: []device.DeviceInfo{
		{URI: "snmp://10.0.0.1"},
		{URI: "snmp://10.0.0.2"},
		{URI: "snmp://10.0.0.3"},
	}}

	var seen int
	err := l.List(context.Background(), func(info device.DeviceInfo) bool {
		seen++
		return seen == 1
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if seen != 1 {
		t.Errorf("seen = %d, want 1 (cancel-by-returning-true)", seen)
	}
}
