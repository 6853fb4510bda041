package ippcore

import "testing"

func TestNotifyEventsRoundTrip(t *testing.T) {
	keywords := []string{"job-completed", "job-state-changed", "printer-stopped"}
	mask := ParseNotifyEvents(keywords)

	if !mask.Has(EventJobCompleted) || !mask.Has(EventJobStateChanged) || !mask.Has(EventPrinterStopped) {
		t.Fatalf("mask %b missing expected bits", mask)
	}
	if mask.Has(EventSystemStopped) {
		t.Fatalf("mask %b has unexpected bit", mask)
	}

	got := mask.Keywords()
	if len(got) != len(keywords) {
		t.Fatalf("got %v, want %v in some order", got, keywords)
	}
}

func TestParseNotifyEventsUnknownIgnored(t *testing.T) {
	mask := ParseNotifyEvents([]string{"not-a-real-event", "job-created"})
	if mask != EventJobCreated {
		t.Fatalf("got %b, want only EventJobCreated", mask)
	}
}
