package printer

import (
	"time"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// Document is one item within a job: template attributes, spool
// filename, format, and its own state/timestamps (spec.md §3).
type Document struct {
	Number      int
	Filename    string
	Format      string
	State       ippcore.JobState
	Template    *ippcore.Attributes
	Impressions int
	Created     time.Time
	Completed   time.Time
}

func newDocument(number int, format string, template *ippcore.Attributes) *Document {
	return &Document{
		Number:   number,
		Format:   format,
		Template: template,
		State:    ippcore.JobStatePending,
		Created:  time.Now(),
	}
}
