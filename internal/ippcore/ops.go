// Package ippcore holds the wire-level constants and small encoding helpers
// shared by the local IPP server and the infrastructure proxy client:
// operation/status codes, attribute tags, the attribute container, the
// IEEE-1284 device-ID parser, and the notify-events bitset.
package ippcore

// Op is an IPP operation code, as defined by RFC 8010/8011 and the IPP
// System/Infrastructure-Printer extensions this framework relies on.
type Op uint16

// Operation codes accepted by the local printer (spec.md §6).
const (
	OpPrintJob            Op = 0x0002
	OpValidateJob         Op = 0x0004
	OpCreateJob           Op = 0x0005
	OpSendDocument        Op = 0x0006
	OpCancelJob           Op = 0x0008
	OpGetJobAttributes    Op = 0x0009
	OpGetJobs             Op = 0x000a
	OpGetPrinterAttributes Op = 0x000b
	OpPausePrinter        Op = 0x0010
	OpResumePrinter       Op = 0x0011
	OpSetPrinterAttributes Op = 0x0013
	OpCancelMyJobs        Op = 0x0039
	OpCloseJob            Op = 0x003b
)

// Subscription operations, accepted by both the local printer and issued
// by the proxy engine against the infrastructure printer.
const (
	OpCreatePrinterSubscriptions Op = 0x0016
	OpGetSubscriptionAttributes  Op = 0x0018
	OpRenewSubscription          Op = 0x001a
	OpCancelSubscription         Op = 0x001b
	OpGetNotifications           Op = 0x001c
	OpListSubscriptions          Op = 0x0019
)

// Operations issued by the proxy engine against the infrastructure printer
// (spec.md §4.F, §6).
const (
	OpFetchDocument              Op = 0x0042
	OpFetchJob                   Op = 0x0043
	OpUpdateActiveJobs           Op = 0x0045
	OpUpdateDocumentStatus       Op = 0x0047
	OpUpdateJobStatus            Op = 0x0048
	OpUpdateOutputDeviceAttrs    Op = 0x0049
	OpAcknowledgeJob             Op = 0x0041
	OpAcknowledgeDocument        Op = 0x003f
)

func (op Op) String() string {
	switch op {
	case OpPrintJob:
		return "Print-Job"
	case OpValidateJob:
		return "Validate-Job"
	case OpCreateJob:
		return "Create-Job"
	case OpSendDocument:
		return "Send-Document"
	case OpCancelJob:
		return "Cancel-Job"
	case OpGetJobAttributes:
		return "Get-Job-Attributes"
	case OpGetJobs:
		return "Get-Jobs"
	case OpGetPrinterAttributes:
		return "Get-Printer-Attributes"
	case OpPausePrinter:
		return "Pause-Printer"
	case OpResumePrinter:
		return "Resume-Printer"
	case OpSetPrinterAttributes:
		return "Set-Printer-Attributes"
	case OpCancelMyJobs:
		return "Cancel-My-Jobs"
	case OpCloseJob:
		return "Close-Job"
	case OpCreatePrinterSubscriptions:
		return "Create-Printer-Subscriptions"
	case OpGetSubscriptionAttributes:
		return "Get-Subscription-Attributes"
	case OpRenewSubscription:
		return "Renew-Subscription"
	case OpCancelSubscription:
		return "Cancel-Subscription"
	case OpGetNotifications:
		return "Get-Notifications"
	case OpListSubscriptions:
		return "List-Subscriptions"
	case OpFetchDocument:
		return "Fetch-Document"
	case OpFetchJob:
		return "Fetch-Job"
	case OpUpdateActiveJobs:
		return "Update-Active-Jobs"
	case OpUpdateDocumentStatus:
		return "Update-Document-Status"
	case OpUpdateJobStatus:
		return "Update-Job-Status"
	case OpUpdateOutputDeviceAttrs:
		return "Update-Output-Device-Attributes"
	case OpAcknowledgeJob:
		return "Acknowledge-Job"
	case OpAcknowledgeDocument:
		return "Acknowledge-Document"
	default:
		return "Unknown-Operation"
	}
}

// Status is an IPP status code.
type Status uint16

const (
	StatusOK                       Status = 0x0000
	StatusOKIgnoredOrSubstituted   Status = 0x0001
	StatusClientErrorBadRequest    Status = 0x0400
	StatusClientErrorNotFound      Status = 0x0406
	StatusClientErrorNotPossible   Status = 0x0409
	StatusClientErrorBusy          Status = 0x041e
	StatusServerErrorInternalError Status = 0x0500
)

// Attribute tags used by the encoder/decoder.
const (
	TagEnd              = 0x03
	TagOperationAttrs    = 0x01
	TagJobAttrs          = 0x02
	TagPrinterAttrs      = 0x04
	TagUnsupportedAttrs  = 0x05
	TagSubscriptionAttrs = 0x06
	TagEventNotifAttrs   = 0x07

	TagInteger         = 0x21
	TagBoolean         = 0x22
	TagEnum            = 0x23
	TagTextWithoutLang = 0x41
	TagNameWithoutLang = 0x42
	TagKeyword         = 0x44
	TagURI             = 0x45
	TagURIScheme       = 0x46
	TagCharset         = 0x47
	TagNaturalLang     = 0x48
	TagMimeMediaType   = 0x49
)

// JobState mirrors the IPP job-state enum (spec.md §3).
type JobState int32

const (
	JobStatePending    JobState = 3
	JobStateHeld       JobState = 4
	JobStateProcessing JobState = 5
	JobStateStopped    JobState = 6
	JobStateCanceled   JobState = 7
	JobStateAborted    JobState = 8
	JobStateCompleted  JobState = 9
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateHeld:
		return "held"
	case JobStateProcessing:
		return "processing"
	case JobStateStopped:
		return "stopped"
	case JobStateCanceled:
		return "canceled"
	case JobStateAborted:
		return "aborted"
	case JobStateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is a sink state (spec.md §3 invariant).
func (s JobState) IsTerminal() bool {
	return s == JobStateCanceled || s == JobStateAborted || s == JobStateCompleted
}

// PrinterState mirrors the IPP printer-state enum.
type PrinterState int32

const (
	PrinterStateIdle       PrinterState = 3
	PrinterStateProcessing PrinterState = 4
	PrinterStateStopped    PrinterState = 5
)

func (s PrinterState) String() string {
	switch s {
	case PrinterStateIdle:
		return "idle"
	case PrinterStateProcessing:
		return "processing"
	case PrinterStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
