// Package scheduling decides whether a candidate slot fits a provider's timeline.
// Nothing here touches storage; callers supply the provider's bookings.
package scheduling

import (
	"time"

	"consultations/backend/internal/domain"
)

const (
	DefaultDuration = 60 * time.Minute
	DefaultLeadTime = time.Hour
)

// Policy fixes the slot length and the minimum gap between now and a slot start.
type Policy struct {
	Duration time.Duration
	LeadTime time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Duration: DefaultDuration, LeadTime: DefaultLeadTime}
}

// Slot is the interval a booking starting at start occupies.
func (p Policy) Slot(start time.Time) domain.Span {
	start = start.UTC()
	return domain.Span{Start: start, End: start.Add(p.Duration)}
}

// ProbeWindow widens the slot by one duration before its start. An existing
// booking that intersects the probe window blocks the candidate, so a provider
// always has a full slot of buffer after a booking before the next one begins.
func (p Policy) ProbeWindow(start time.Time) domain.Span {
	slot := p.Slot(start)
	return domain.Span{Start: slot.Start.Add(-p.Duration), End: slot.End}
}

// MeetsLeadTime reports whether start is at least LeadTime after now.
func (p Policy) MeetsLeadTime(now, start time.Time) bool {
	return !start.Before(now.Add(p.LeadTime))
}

// Decision is the outcome of checking a candidate start against existing bookings.
type Decision struct {
	Slot      domain.Span
	Probe     domain.Span
	Conflicts []domain.Booking
}

func (d Decision) Available() bool {
	return len(d.Conflicts) == 0
}

// Resolve checks start against existing. Only scheduled bookings take part;
// cancelled and completed ones never block a slot.
func (p Policy) Resolve(start time.Time, existing []domain.Booking) Decision {
	d := Decision{
		Slot:  p.Slot(start),
		Probe: p.ProbeWindow(start),
	}
	for _, b := range existing {
		if b.Status != domain.BookingStatusScheduled {
			continue
		}
		if d.Probe.Overlaps(b.Window()) {
			d.Conflicts = append(d.Conflicts, b)
		}
	}
	return d
}
