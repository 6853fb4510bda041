// Package ippserver implements the local IPP listener of spec.md §6:
// one HTTP endpoint per printer accepting Print-Job, Create-Job/Send-
// Document, Cancel-Job, the Get-* queries, Pause/Resume-Printer, and
// the subscription operation set, dispatching into internal/printer,
// internal/scheduler, and internal/events.
package ippserver

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// registered is one printer bound into the system alongside the driver
// that streams its jobs.
type registered struct {
	printer *printer.Printer
	driver  pipeline.Driver
}

// System is the in-process registry of every printer a Server exposes,
// plus the shared scheduler and event bus they're run through.
type System struct {
	Scheduler *scheduler.Scheduler
	Bus       *events.Bus
	Log       zerolog.Logger

	mu     sync.RWMutex
	byID   map[int]*registered
	byName map[string]*registered
}

// NewSystem returns an empty printer system wired to sched and bus.
func NewSystem(sched *scheduler.Scheduler, bus *events.Bus, log zerolog.Logger) *System {
	return &System{
		Scheduler: sched,
		Bus:       bus,
		Log:       log.With().Str("component", "ippserver").Logger(),
		byID:      make(map[int]*registered),
		byName:    make(map[string]*registered),
	}
}

// AddPrinter registers p, reachable at /printers/<p.Name>, streaming
// its jobs through drv.
func (s *System) AddPrinter(p *printer.Printer, drv pipeline.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &registered{printer: p, driver: drv}
	s.byID[p.ID] = r
	s.byName[p.Name] = r
}

// RemovePrinter drops p from the system; existing jobs are unaffected.
func (s *System) RemovePrinter(p *printer.Printer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, p.ID)
	delete(s.byName, p.Name)
}

func (s *System) byPrinterName(name string) (*printer.Printer, pipeline.Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byName[name]
	if !ok {
		return nil, pipeline.Driver{}, false
	}
	return r.printer, r.driver, true
}

func (s *System) byPrinterID(id int) (*printer.Printer, pipeline.Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, pipeline.Driver{}, false
	}
	return r.printer, r.driver, true
}

// Printers returns every registered printer.
func (s *System) Printers() []*printer.Printer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*printer.Printer, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r.printer)
	}
	return out
}
