package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"consultations/backend/internal/domain"
)

type BookingRepository interface {
	// InProviderTransaction runs fn while holding the provider's timeline
	// exclusively. Conflict checks and inserts done through tx are atomic with
	// respect to every other call for the same provider.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx ProviderTx) error) error

	FindByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	// ListByProvider and ListByRequester return newest bookings first.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Booking, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.Booking, error)

	// Transition moves a booking from one status to another only if it is still
	// in from. A non-nil endTime replaces the stored end. Returns ErrStaleStatus
	// when the stored status no longer matches.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus, endTime *time.Time) (domain.Booking, error)
}

type ProviderTx interface {
	// FindConflicting returns scheduled bookings of the provider whose
	// [start, end) intersects [windowStart, windowEnd).
	FindConflicting(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	Save(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

type ConsultationRepository interface {
	// CreateRecord inserts rec and, if the booking is still scheduled, completes
	// it with end time completedAt, in one unit. Returns ErrDuplicate when the
	// booking already has a record.
	CreateRecord(ctx context.Context, rec domain.ConsultationRecord, completedAt time.Time) (domain.ConsultationRecord, error)
	FindByBooking(ctx context.Context, bookingID uuid.UUID) (domain.ConsultationRecord, error)
	// ListRecordsByRequester returns the newest consultation first.
	ListRecordsByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.ConsultationRecord, error)
}

type PartyDirectory interface {
	ProviderByID(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	ProviderByUser(ctx context.Context, userID string) (domain.Provider, error)
	RequesterByID(ctx context.Context, id uuid.UUID) (domain.Requester, error)
	RequesterByUser(ctx context.Context, userID string) (domain.Requester, error)

	// CreateProvider and CreateRequester return ErrDuplicate when the user
	// already holds a profile of that kind.
	CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error)
	CreateRequester(ctx context.Context, r domain.Requester) (domain.Requester, error)
}
