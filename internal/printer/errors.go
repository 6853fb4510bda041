package printer

import "github.com/WaffleThief123/ippframework/internal/ippcore"

// errBusy is returned when admission is rejected under max-active-jobs
// or printer-not-accepting semantics (spec.md §4.D, §7).
var errBusy = ippcore.ErrBusy
