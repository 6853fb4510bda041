package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// Bus is the system-wide subscription table (spec.md §3 "system-wide RW
// lock for ... the filter table" analog, scoped here to subscriptions).
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
}

// NewBus returns an empty subscription bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Create registers a new subscription and returns it (spec.md §4.C).
func (b *Bus) Create(printerID, jobID *int, mask ippcore.NotifyEvent, owner, language string, interval, lease time.Duration) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := newSubscription(b.nextID, printerID, jobID, mask, owner, language, interval, lease)
	b.subs[sub.ID] = sub
	return sub
}

// Get returns the subscription with the given ID, if present.
func (b *Bus) Get(id int) (*Subscription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.subs[id]
	return s, ok
}

// List returns every subscription bound to printerID (or every
// subscription if printerID is nil), matching List-Subscriptions scope.
func (b *Bus) List(printerID *int) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if printerID == nil || (s.PrinterID != nil && *s.PrinterID == *printerID) {
			out = append(out, s)
		}
	}
	return out
}

// Cancel cancels the subscription with the given ID.
func (b *Bus) Cancel(id int) error {
	b.mu.RLock()
	s, ok := b.subs[id]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: subscription %d not found", ippcore.ErrInvalidArgument, id)
	}
	s.Cancel()
	return nil
}

// AddEvent stamps a new event onto every subscription whose scope and
// mask match, iterating the current subscription set under a read lock
// (spec.md §4.C).
func (b *Bus) AddEvent(printerID, jobID *int, event ippcore.NotifyEvent, attrs *ippcore.Attributes) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.Matches(printerID, jobID, event) {
			s.appendEvent(attrs)
		}
	}
}

// Cleanup removes canceled subscriptions and those whose lease has
// expired (spec.md §3/§4.C cleaner pass).
func (b *Bus) Cleanup(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, s := range b.subs {
		if s.IsCanceled() || s.IsExpired(now) {
			delete(b.subs, id)
			removed++
		}
	}
	return removed
}
