// Package consultations records the provider's notes for a booking and serves
// them back to the parties.
package consultations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"consultations/backend/internal/apperr"
	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

type Service struct {
	records  store.ConsultationRepository
	bookings store.BookingRepository
	parties  store.PartyDirectory
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(records store.ConsultationRepository, bookings store.BookingRepository, parties store.PartyDirectory, opts ...Option) *Service {
	s := &Service{
		records:  records,
		bookings: bookings,
		parties:  parties,
		now:      func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.consultations"))
	return s
}

type Notes struct {
	SubjectiveNotes   string
	ObjectiveFindings string
	Assessment        string
	Plan              string
}

// CreateRecord stores the provider's notes. A still scheduled booking is
// completed in the same step with the current time as its end.
func (s *Service) CreateRecord(ctx context.Context, callerID string, bookingID uuid.UUID, notes Notes) (domain.ConsultationRecord, error) {
	b, provider, err := s.bookingForProvider(ctx, callerID, bookingID)
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	if callerID != provider.UserID {
		return domain.ConsultationRecord{}, apperr.Forbidden("only the assigned provider can record this consultation")
	}
	if b.Status == domain.BookingStatusCancelled {
		return domain.ConsultationRecord{}, apperr.Rejected("a cancelled booking cannot have a consultation record")
	}

	now := s.now().UTC()
	rec, err := s.records.CreateRecord(ctx, domain.ConsultationRecord{
		BookingID:         b.ID,
		ProviderID:        b.ProviderID,
		RequesterID:       b.RequesterID,
		ConsultationDate:  now,
		SubjectiveNotes:   notes.SubjectiveNotes,
		ObjectiveFindings: notes.ObjectiveFindings,
		Assessment:        notes.Assessment,
		Plan:              notes.Plan,
	}, now)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicate):
		return domain.ConsultationRecord{}, apperr.Wrap(apperr.KindRejected, "a consultation record already exists for this booking", err)
	case errors.Is(err, store.ErrStaleStatus):
		return domain.ConsultationRecord{}, apperr.Wrap(apperr.KindRejected, "a cancelled booking cannot have a consultation record", err)
	case errors.Is(err, store.ErrNotFound):
		return domain.ConsultationRecord{}, apperr.NotFound("booking not found")
	default:
		return domain.ConsultationRecord{}, apperr.Internal("create consultation record", err)
	}

	s.log.Info(
		"consultation recorded",
		slog.String("record_id", rec.ID.String()),
		slog.String("booking_id", rec.BookingID.String()),
	)
	return rec, nil
}

// RecordForBooking returns the record for a booking to either party.
func (s *Service) RecordForBooking(ctx context.Context, callerID string, bookingID uuid.UUID) (domain.ConsultationRecord, error) {
	b, provider, err := s.bookingForProvider(ctx, callerID, bookingID)
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	if callerID != provider.UserID {
		requester, err := s.parties.RequesterByID(ctx, b.RequesterID)
		if err != nil {
			return domain.ConsultationRecord{}, apperr.Internal("load booking requester", err)
		}
		if callerID != requester.UserID {
			return domain.ConsultationRecord{}, apperr.Forbidden("you do not have access to this consultation")
		}
	}

	rec, err := s.records.FindByBooking(ctx, b.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsultationRecord{}, apperr.NotFound("no consultation record for this booking")
		}
		return domain.ConsultationRecord{}, apperr.Internal("load consultation record", err)
	}
	return rec, nil
}

// History lists the caller's consultations as a requester, newest first.
func (s *Service) History(ctx context.Context, callerID string) ([]domain.ConsultationRecord, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}
	requester, err := s.parties.RequesterByUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("requester profile not found")
		}
		return nil, apperr.Internal("load requester profile", err)
	}
	rows, err := s.records.ListRecordsByRequester(ctx, requester.ID)
	if err != nil {
		return nil, apperr.Internal("list consultation records", err)
	}
	return rows, nil
}

func (s *Service) bookingForProvider(ctx context.Context, callerID string, bookingID uuid.UUID) (domain.Booking, domain.Provider, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.Booking{}, domain.Provider{}, apperr.Unauthenticated("caller identity is required")
	}
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, domain.Provider{}, apperr.NotFound("booking not found")
		}
		return domain.Booking{}, domain.Provider{}, apperr.Internal("load booking", err)
	}
	provider, err := s.parties.ProviderByID(ctx, b.ProviderID)
	if err != nil {
		return domain.Booking{}, domain.Provider{}, apperr.Internal("load booking provider", err)
	}
	return b, provider, nil
}
