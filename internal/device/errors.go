package device

import (
	"fmt"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

var errInvalidURI = ippcore.ErrInvalidArgument

// Error wraps an open/read/write failure with the device URI and the
// spec.md §7 error kind it belongs to, so callers can errors.Is against
// the ippcore sentinels.
type Error struct {
	URI string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s: %v", e.URI, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
