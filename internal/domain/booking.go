package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Scheduled is the only state with outgoing edges.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	if s != BookingStatusScheduled {
		return false
	}
	return next == BookingStatusCancelled || next == BookingStatusCompleted
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusScheduled, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID               uuid.UUID     `bun:"id,pk,type:uuid"`
	ProviderID       uuid.UUID     `bun:"provider_id,notnull,type:uuid"`
	RequesterID      uuid.UUID     `bun:"requester_id,notnull,type:uuid"`
	StartTime        time.Time     `bun:"start_time,notnull"`
	EndTime          time.Time     `bun:"end_time,notnull"`
	Status           BookingStatus `bun:"status,notnull"`
	MeetingReference string        `bun:"meeting_reference,notnull"`
	InitialNotes     string        `bun:"initial_notes"`
	Purpose          string        `bun:"purpose"`
	CreatedAt        time.Time     `bun:"created_at,notnull"`
	UpdatedAt        time.Time     `bun:"updated_at,notnull"`
}

// Window returns the booked interval as a half-open span.
func (b Booking) Window() Span {
	return Span{Start: b.StartTime, End: b.EndTime}
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [a.Start, a.End) and [o.Start, o.End) intersect.
func (a Span) Overlaps(o Span) bool {
	return a.Start.Before(o.End) && o.Start.Before(a.End)
}

func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}
