package ippserver

import (
	"time"

	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

func subscriptionAttrGroup(s *events.Subscription) *ippcore.Attributes {
	a := ippcore.NewAttributes()
	a.Set("notify-subscription-id", s.ID)
	a.Set("notify-subscription-uuid", s.UUID)
	a.Set("notify-lease-duration", int(s.Lease.Seconds()))
	a.Set("notify-time-interval", int(s.Interval.Seconds()))
	for _, kw := range s.Events.Keywords() {
		a.Add("notify-events", kw)
	}
	if s.PrinterID != nil {
		a.Set("notify-printer-id", *s.PrinterID)
	}
	if s.JobID != nil {
		a.Set("notify-job-id", *s.JobID)
	}
	return a
}

func (s *Server) handleCreatePrinterSubscriptions(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)

	var events []string
	for _, v := range opAttrs.All("notify-events") {
		if kw, ok := v.(string); ok {
			events = append(events, kw)
		}
	}
	mask := ippcore.ParseNotifyEvents(events)
	if mask == 0 {
		mask = ippcore.EventAll
	}

	interval := time.Duration(opAttrs.GetInt("notify-time-interval")) * time.Second
	lease := time.Duration(opAttrs.GetInt("notify-lease-duration")) * time.Second

	var jobID *int
	if id := opAttrs.GetInt("notify-job-id"); id != 0 {
		jobID = &id
	}

	sub := s.sys.Bus.Create(&p.ID, jobID, mask, opAttrs.GetString("requesting-user-name"), "en-us", interval, lease)

	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagSubscriptionAttrs, Attrs: subscriptionAttrGroup(sub)},
	})
}

func (s *Server) handleGetNotifications(msg *ippcore.Message) []byte {
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	id := opAttrs.GetInt("notify-subscription-ids")
	since := opAttrs.GetInt("notify-sequence-numbers")

	sub, ok := s.sys.Bus.Get(id)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}

	events, _ := sub.Notifications(since)
	groups := make([]ippcore.Group, len(events))
	for i, e := range events {
		ev := e.Attributes
		if ev == nil {
			ev = ippcore.NewAttributes()
		}
		ev.Set("notify-subscription-id", sub.ID)
		ev.Set("notify-sequence-number", e.Sequence)
		groups[i] = ippcore.Group{Tag: ippcore.TagEventNotifAttrs, Attrs: ev}
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, groups)
}

func (s *Server) handleCancelSubscription(msg *ippcore.Message) []byte {
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	if err := s.sys.Bus.Cancel(opAttrs.GetInt("notify-subscription-id")); err != nil {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, nil)
}

func (s *Server) handleRenewSubscription(msg *ippcore.Message) []byte {
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	sub, ok := s.sys.Bus.Get(opAttrs.GetInt("notify-subscription-id"))
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	lease := time.Duration(opAttrs.GetInt("notify-lease-duration")) * time.Second
	sub.Renew(lease)
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagSubscriptionAttrs, Attrs: subscriptionAttrGroup(sub)},
	})
}

func (s *Server) handleGetSubscriptionAttributes(msg *ippcore.Message) []byte {
	opAttrs, _ := msg.ByTag(ippcore.TagOperationAttrs)
	sub, ok := s.sys.Bus.Get(opAttrs.GetInt("notify-subscription-id"))
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, []ippcore.Group{
		{Tag: ippcore.TagSubscriptionAttrs, Attrs: subscriptionAttrGroup(sub)},
	})
}

func (s *Server) handleListSubscriptions(msg *ippcore.Message, printerName string) []byte {
	p, _, ok := s.resolvePrinter(printerName)
	if !ok {
		return s.buildResponse(msg.RequestID, ippcore.StatusClientErrorNotFound, nil)
	}
	subs := s.sys.Bus.List(&p.ID)
	groups := make([]ippcore.Group, len(subs))
	for i, sub := range subs {
		groups[i] = ippcore.Group{Tag: ippcore.TagSubscriptionAttrs, Attrs: subscriptionAttrGroup(sub)}
	}
	return s.buildResponse(msg.RequestID, ippcore.StatusOK, groups)
}
