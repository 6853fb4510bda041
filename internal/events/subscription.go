// Package events implements the pull-model notification system of
// spec.md §4.C: subscriptions with leases and sequence numbers, and the
// bus that fans event attributes out to matching subscriptions.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// MaxLease is the longest lease a subscription may hold (spec.md §3/§4.C).
const MaxLease = 86400 * time.Second

// MaxEvents bounds a subscription's event queue; the oldest entry is
// dropped on overflow (spec.md §3/§4.C).
const MaxEvents = 100

// Event is an IPP attribute container stamped with a sequence number
// scoped to its subscription (spec.md §3).
type Event struct {
	Sequence   int
	Attributes *ippcore.Attributes
}

// Subscription is a persistent filter over the event stream, addressed
// by integer ID and UUID (spec.md §3).
type Subscription struct {
	ID        int
	UUID      string
	Events    ippcore.NotifyEvent
	PrinterID *int
	JobID     *int
	Owner     string
	Language  string
	Interval  time.Duration
	Lease     time.Duration

	mu            sync.RWMutex
	expire        time.Time
	firstSequence int
	lastSequence  int
	queue         []Event
	isCanceled    bool
}

func newSubscription(id int, printerID, jobID *int, mask ippcore.NotifyEvent, owner, language string, interval, lease time.Duration) *Subscription {
	lease = clampLease(lease, jobID != nil)
	return &Subscription{
		ID:        id,
		UUID:      uuid.New().String(),
		Events:    mask,
		PrinterID: printerID,
		JobID:     jobID,
		Owner:     owner,
		Language:  language,
		Interval:  interval,
		Lease:     lease,
		expire:    time.Now().Add(lease),
	}
}

// clampLease applies spec.md §4.C's lease rule: lease=0 with no job
// bound clamps to MaxLease; any nonzero lease clamps to [1s, MaxLease].
func clampLease(lease time.Duration, jobBound bool) time.Duration {
	if lease <= 0 {
		if jobBound {
			return 0
		}
		return MaxLease
	}
	if lease > MaxLease {
		return MaxLease
	}
	if lease < time.Second {
		return time.Second
	}
	return lease
}

// Matches reports whether this subscription's scope and event mask
// cover the given emission (spec.md §4.C).
func (s *Subscription) Matches(printerID, jobID *int, event ippcore.NotifyEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isCanceled {
		return false
	}
	if s.Events&event == 0 {
		return false
	}
	if s.JobID != nil {
		return jobID != nil && *s.JobID == *jobID
	}
	if s.PrinterID != nil {
		return printerID != nil && *s.PrinterID == *printerID
	}
	return true
}

// appendEvent adds a new event, advancing last_sequence and, on
// overflow past MaxEvents, dropping the oldest entry and advancing
// first_sequence immediately (spec.md §4.C, §9 Open Question resolution
// in DESIGN.md).
func (s *Subscription) appendEvent(attrs *ippcore.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSequence++
	s.queue = append(s.queue, Event{Sequence: s.lastSequence, Attributes: attrs})
	if len(s.queue) > MaxEvents {
		s.queue = s.queue[1:]
	}
	s.firstSequence = s.queue[0].Sequence
}

// Notifications returns events with sequence > since, along with the
// subscription's suggested poll interval (spec.md §4.C Get-Notifications).
func (s *Subscription) Notifications(since int) ([]Event, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.queue {
		if e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, s.Interval
}

// LastSequence returns the subscription's most recently assigned
// sequence number.
func (s *Subscription) LastSequence() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSequence
}

// FirstSequence returns the oldest sequence number still retained.
func (s *Subscription) FirstSequence() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstSequence
}

// Expire reports the subscription's current expiration time.
func (s *Subscription) Expire() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expire
}

// Renew extends the subscription's lease from now (spec.md §4.C).
func (s *Subscription) Renew(lease time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lease = clampLease(lease, s.JobID != nil)
	s.expire = time.Now().Add(s.Lease)
}

// Cancel marks the subscription canceled; it is pruned on the next
// cleanup pass (spec.md §3/§4.C).
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isCanceled = true
}

// IsCanceled reports whether Cancel has been called.
func (s *Subscription) IsCanceled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isCanceled
}

// IsExpired reports whether the subscription's lease has elapsed.
func (s *Subscription) IsExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expire.IsZero() && now.After(s.expire)
}
