package ippcore

import "strings"

// NotifyEvent is one bit position in the 31-entry notify-events taxonomy
// (spec.md §6). Order defines the bit position, per spec.
type NotifyEvent uint32

const (
	EventDocumentCompleted NotifyEvent = 1 << iota
	EventDocumentConfigChanged
	EventDocumentCreated
	EventDocumentFetchable
	EventDocumentStateChanged
	EventDocumentStopped

	EventJobCompleted
	EventJobConfigChanged
	EventJobCreated
	EventJobFetchable
	EventJobProgress
	EventJobStateChanged
	EventJobStopped

	EventPrinterConfigChanged
	EventPrinterFinishingsChanged
	EventPrinterMediaChanged
	EventPrinterQueueOrderChanged
	EventPrinterRestarted
	EventPrinterShutdown
	EventPrinterStateChanged
	EventPrinterStopped

	EventResourceCanceled
	EventResourceConfigChanged
	EventResourceCreated
	EventResourceInstalled
	EventResourceChanged

	EventPrinterCreated
	EventPrinterDeleted

	EventSystemConfigChanged
	EventSystemStateChanged
	EventSystemStopped
)

// EventAll is the mask matching every event (used for system-wide "all
// events" subscriptions).
const EventAll NotifyEvent = (1 << 31) - 1

var eventKeywords = []struct {
	bit     NotifyEvent
	keyword string
}{
	{EventDocumentCompleted, "document-completed"},
	{EventDocumentConfigChanged, "document-config-changed"},
	{EventDocumentCreated, "document-created"},
	{EventDocumentFetchable, "document-fetchable"},
	{EventDocumentStateChanged, "document-state-changed"},
	{EventDocumentStopped, "document-stopped"},
	{EventJobCompleted, "job-completed"},
	{EventJobConfigChanged, "job-config-changed"},
	{EventJobCreated, "job-created"},
	{EventJobFetchable, "job-fetchable"},
	{EventJobProgress, "job-progress"},
	{EventJobStateChanged, "job-state-changed"},
	{EventJobStopped, "job-stopped"},
	{EventPrinterConfigChanged, "printer-config-changed"},
	{EventPrinterFinishingsChanged, "printer-finishings-changed"},
	{EventPrinterMediaChanged, "printer-media-changed"},
	{EventPrinterQueueOrderChanged, "printer-queue-order-changed"},
	{EventPrinterRestarted, "printer-restarted"},
	{EventPrinterShutdown, "printer-shutdown"},
	{EventPrinterStateChanged, "printer-state-changed"},
	{EventPrinterStopped, "printer-stopped"},
	{EventResourceCanceled, "resource-canceled"},
	{EventResourceConfigChanged, "resource-config-changed"},
	{EventResourceCreated, "resource-created"},
	{EventResourceInstalled, "resource-installed"},
	{EventResourceChanged, "resource-changed"},
	{EventPrinterCreated, "printer-created"},
	{EventPrinterDeleted, "printer-deleted"},
	{EventSystemConfigChanged, "system-config-changed"},
	{EventSystemStateChanged, "system-state-changed"},
	{EventSystemStopped, "system-stopped"},
}

// ParseNotifyEvents converts a list of IPP notify-events keywords into a
// bitmask. Unknown keywords are ignored.
func ParseNotifyEvents(keywords []string) NotifyEvent {
	var mask NotifyEvent
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		for _, e := range eventKeywords {
			if e.keyword == kw {
				mask |= e.bit
				break
			}
		}
	}
	return mask
}

// Keywords converts a bitmask back into its IPP notify-events keyword
// list, in canonical bit order.
func (m NotifyEvent) Keywords() []string {
	var out []string
	for _, e := range eventKeywords {
		if m&e.bit != 0 {
			out = append(out, e.keyword)
		}
	}
	return out
}

// Has reports whether m includes event.
func (m NotifyEvent) Has(event NotifyEvent) bool {
	return m&event != 0
}
