package models

import "strings"

// Default shipment statuses. The vocabulary actually accepted is configured per deployment.
const (
	StatusProcessing     = "PROCESSING"
	StatusShipped        = "SHIPPED"
	StatusInTransit      = "IN_TRANSIT"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusException      = "EXCEPTION"
	StatusReturned       = "RETURNED"
)

func DefaultStatuses() []string {
	return []string{
		StatusProcessing,
		StatusShipped,
		StatusInTransit,
		StatusOutForDelivery,
		StatusDelivered,
		StatusException,
		StatusReturned,
	}
}

// StatusSet is the accepted status vocabulary. An empty set accepts any non-blank status.
// There is no transition table: any member may follow any other.
type StatusSet struct {
	allowed map[string]struct{}
	ordered []string
}

func NewStatusSet(statuses ...string) StatusSet {
	s := StatusSet{allowed: make(map[string]struct{}, len(statuses))}
	for _, st := range statuses {
		st = NormalizeStatus(st)
		if st == "" {
			continue
		}
		if _, ok := s.allowed[st]; ok {
			continue
		}
		s.allowed[st] = struct{}{}
		s.ordered = append(s.ordered, st)
	}
	return s
}

func DefaultStatusSet() StatusSet {
	return NewStatusSet(DefaultStatuses()...)
}

func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Valid expects an already normalized status.
func (s StatusSet) Valid(status string) bool {
	if status == "" {
		return false
	}
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[status]
	return ok
}

func (s StatusSet) List() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}
