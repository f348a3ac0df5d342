package models

import (
	"fmt"
	"strings"
	"time"
)

// Filter is a status tab. Besides the six statuses there are two composites.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterUpcoming Filter = "upcoming"
)

func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", string(FilterAll):
		return FilterAll, nil
	case string(FilterUpcoming):
		return FilterUpcoming, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("unknown filter %q", s)
	}
	return Filter(st), nil
}

// IsUpcoming is the single definition of the composite Upcoming rule:
// pending or accepted and scheduled strictly after now.
func IsUpcoming(b *Booking, now time.Time) bool {
	if b.Status != StatusPending && b.Status != StatusAccepted {
		return false
	}
	return b.ScheduledAt.After(now)
}

// Matches reports whether b belongs in the tab f.
func (f Filter) Matches(b *Booking, now time.Time) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterUpcoming:
		return IsUpcoming(b, now)
	default:
		return b.Status == Status(f)
	}
}

// Counts holds the per-tab badge numbers keyed by filter.
type Counts map[Filter]int

// DeriveCounts computes tab counts from the items at hand. Used when the
// server does not supply counts.
func DeriveCounts(items []*Booking, now time.Time) Counts {
	c := Counts{
		FilterAll:                0,
		FilterUpcoming:           0,
		Filter(StatusInProgress): 0,
		Filter(StatusCompleted):  0,
		Filter(StatusCancelled):  0,
		Filter(StatusRejected):   0,
	}
	for _, b := range items {
		c[FilterAll]++
		switch b.Status {
		case StatusInProgress, StatusCompleted, StatusCancelled, StatusRejected:
			c[Filter(b.Status)]++
		}
		if IsUpcoming(b, now) {
			c[FilterUpcoming]++
		}
	}
	return c
}

// FilterBookings keeps the items that match f; used for client-side views.
func FilterBookings(items []*Booking, f Filter, now time.Time) []*Booking {
	out := make([]*Booking, 0, len(items))
	for _, b := range items {
		if f.Matches(b, now) {
			out = append(out, b)
		}
	}
	return out
}

// MatchesSearch reports whether q occurs, case-insensitively, in the
// booking's title, party names, address or notes. An empty query matches.
func MatchesSearch(b *Booking, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, field := range []string{
		b.ServiceTitle,
		b.Customer.Name,
		b.CustomerName,
		b.Provider.Name,
		b.Address,
		b.Notes,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
