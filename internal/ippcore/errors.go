package ippcore

import "errors"

// Error kinds from spec.md §7. Callers distinguish them with errors.Is;
// wrapped context is added with fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidArgument covers a bad URI or bad attribute. Returned to
	// the caller, never logged above debug.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBusy covers a device already in use or max-active-jobs reached.
	// The job is not created.
	ErrBusy = errors.New("busy")

	// ErrTransientIO covers EINTR/EAGAIN/connect-fail/resolve-fail,
	// retried with bounded back-off by the caller.
	ErrTransientIO = errors.New("transient I/O error")

	// ErrDriverError marks a job aborted per-page with a driver-reported
	// format or content problem.
	ErrDriverError = errors.New("driver error")

	// ErrFatalSystem means the caller must log-and-shutdown.
	ErrFatalSystem = errors.New("fatal system error")

	// ErrRemoteIPP covers a non-OK status from an upstream IPP call in
	// the proxy path.
	ErrRemoteIPP = errors.New("remote IPP error")

	// ErrUnsupportedFormat is returned by filter dispatch when no filter
	// chain can be found for the job's document format.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
