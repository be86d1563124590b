package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"consultations/backend/internal/apperr"
	"consultations/backend/internal/domain"
	"consultations/backend/internal/notify"
	"consultations/backend/internal/scheduling"
	"consultations/backend/internal/store"
)

// Notifier accepts notification intents without waiting for delivery.
type Notifier interface {
	Dispatch(in notify.Intent)
}

type Config struct {
	Policy         scheduling.Policy
	MeetingBaseURL string
	MeetingPrefix  string
	// Location is used to render times in notifications. Defaults to UTC.
	Location *time.Location
}

// Service is the only writer of booking status.
type Service struct {
	repo     store.BookingRepository
	parties  store.PartyDirectory
	notifier Notifier
	cfg      Config
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

func NewService(repo store.BookingRepository, parties store.PartyDirectory, notifier Notifier, cfg Config, opts ...Option) *Service {
	if cfg.Policy == (scheduling.Policy{}) {
		cfg.Policy = scheduling.DefaultPolicy()
	}
	if cfg.Policy.Duration <= 0 {
		cfg.Policy.Duration = scheduling.DefaultDuration
	}
	if cfg.MeetingBaseURL == "" {
		cfg.MeetingBaseURL = "https://meet.jit.si"
	}
	if cfg.MeetingPrefix == "" {
		cfg.MeetingPrefix = "consult"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Service{
		repo:     repo,
		parties:  parties,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.bookings"))
	return s
}

type CreateInput struct {
	CallerID     string
	ProviderID   uuid.UUID
	StartTime    time.Time
	InitialNotes string
	Purpose      string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if strings.TrimSpace(in.CallerID) == "" {
		return domain.Booking{}, apperr.Unauthenticated("caller identity is required")
	}
	if in.StartTime.IsZero() {
		return domain.Booking{}, apperr.Rejected("start_time is required")
	}

	requester, err := s.parties.RequesterByUser(ctx, in.CallerID)
	if err != nil {
		return domain.Booking{}, lookupError("requester profile required for booking", err)
	}
	provider, err := s.parties.ProviderByID(ctx, in.ProviderID)
	if err != nil {
		return domain.Booking{}, lookupError("provider not found", err)
	}
	if provider.UserID == requester.UserID {
		return domain.Booking{}, apperr.Rejected("a provider cannot book themselves")
	}

	policy := s.cfg.Policy
	start := in.StartTime.UTC()
	if !policy.MeetsLeadTime(s.now(), start) {
		return domain.Booking{}, apperr.Rejected(fmt.Sprintf("bookings must be made at least %s in advance", humanDuration(policy.LeadTime)))
	}

	slot := policy.Slot(start)
	probe := policy.ProbeWindow(start)
	candidate := domain.Booking{
		ProviderID:       provider.ID,
		RequesterID:      requester.ID,
		StartTime:        slot.Start,
		EndTime:          slot.End,
		Status:           domain.BookingStatusScheduled,
		MeetingReference: s.newMeetingReference(),
		InitialNotes:     in.InitialNotes,
		Purpose:          in.Purpose,
	}

	var saved domain.Booking
	err = s.repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderTx) error {
		existing, err := tx.FindConflicting(ctx, provider.ID, probe.Start, probe.End)
		if err != nil {
			return err
		}
		if d := policy.Resolve(start, existing); !d.Available() {
			s.log.Info(
				"booking conflict",
				slog.String("provider_id", provider.ID.String()),
				slog.Time("start_time", start),
				slog.Int("conflicts", len(d.Conflicts)),
			)
			return errProviderUnavailable
		}
		b, err := tx.Save(ctx, candidate)
		if err != nil {
			return err
		}
		saved = b
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Booking{}, errProviderUnavailable
		}
		if apperr.KindOf(err) != apperr.KindInternal {
			return domain.Booking{}, err
		}
		return domain.Booking{}, apperr.Internal("save booking", err)
	}

	s.log.Info(
		"booking created",
		slog.String("booking_id", saved.ID.String()),
		slog.String("provider_id", saved.ProviderID.String()),
		slog.String("requester_id", saved.RequesterID.String()),
		slog.Time("start_time", saved.StartTime),
	)

	s.notifyCreated(saved, provider, requester)
	return saved, nil
}

var errProviderUnavailable = apperr.Rejected("provider is not available at the requested time; check their schedule")

// Cancel marks a scheduled booking cancelled. Cancelling an already cancelled
// booking succeeds without another write or notification.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error) {
	b, provider, requester, err := s.loadWithParties(ctx, bookingID, callerID)
	if err != nil {
		return domain.Booking{}, err
	}
	if callerID != provider.UserID && callerID != requester.UserID {
		return domain.Booking{}, apperr.Forbidden("you do not have permission to cancel this booking")
	}

	switch b.Status {
	case domain.BookingStatusCancelled:
		return b, nil
	case domain.BookingStatusCompleted:
		return domain.Booking{}, apperr.Rejected("a completed booking cannot be cancelled")
	}

	updated, err := s.repo.Transition(ctx, b.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			current, ferr := s.repo.FindByID(ctx, b.ID)
			if ferr == nil && current.Status == domain.BookingStatusCancelled {
				return current, nil
			}
			return domain.Booking{}, apperr.Rejected("booking is no longer scheduled")
		}
		return domain.Booking{}, storeError("cancel booking", err)
	}

	s.log.Info(
		"booking cancelled",
		slog.String("booking_id", updated.ID.String()),
		slog.String("cancelled_by", callerID),
	)

	s.notifyCancelled(updated, provider, requester, callerID)
	return updated, nil
}

// Complete marks a scheduled booking completed and records now as its end.
// No notification is sent.
func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.Booking{}, apperr.Unauthenticated("caller identity is required")
	}
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, storeError("booking not found", err)
	}
	provider, err := s.parties.ProviderByID(ctx, b.ProviderID)
	if err != nil {
		return domain.Booking{}, apperr.Internal("load booking provider", err)
	}
	if callerID != provider.UserID {
		return domain.Booking{}, apperr.Forbidden("only the assigned provider can complete this booking")
	}
	if !b.Status.CanTransition(domain.BookingStatusCompleted) {
		return domain.Booking{}, apperr.Rejected(fmt.Sprintf("a %s booking cannot be completed", b.Status))
	}

	now := s.now().UTC()
	updated, err := s.repo.Transition(ctx, b.ID, domain.BookingStatusScheduled, domain.BookingStatusCompleted, &now)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return domain.Booking{}, apperr.Rejected("booking is no longer scheduled")
		}
		return domain.Booking{}, storeError("complete booking", err)
	}

	s.log.Info("booking completed", slog.String("booking_id", updated.ID.String()), slog.Time("end_time", updated.EndTime))
	return updated, nil
}

// ListForCaller returns the caller's bookings, newest first. A caller with a
// provider profile sees the provider's timeline; otherwise the requester's.
func (s *Service) ListForCaller(ctx context.Context, callerID string) ([]domain.Booking, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}

	provider, err := s.parties.ProviderByUser(ctx, callerID)
	switch {
	case err == nil:
		rows, err := s.repo.ListByProvider(ctx, provider.ID)
		if err != nil {
			return nil, apperr.Internal("list provider bookings", err)
		}
		return rows, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal("load provider profile", err)
	}

	requester, err := s.parties.RequesterByUser(ctx, callerID)
	if err != nil {
		return nil, lookupError("no provider or requester profile for caller", err)
	}
	rows, err := s.repo.ListByRequester(ctx, requester.ID)
	if err != nil {
		return nil, apperr.Internal("list requester bookings", err)
	}
	return rows, nil
}

func (s *Service) loadWithParties(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, domain.Provider, domain.Requester, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.Booking{}, domain.Provider{}, domain.Requester{}, apperr.Unauthenticated("caller identity is required")
	}
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, domain.Provider{}, domain.Requester{}, storeError("booking not found", err)
	}
	provider, err := s.parties.ProviderByID(ctx, b.ProviderID)
	if err != nil {
		return domain.Booking{}, domain.Provider{}, domain.Requester{}, apperr.Internal("load booking provider", err)
	}
	requester, err := s.parties.RequesterByID(ctx, b.RequesterID)
	if err != nil {
		return domain.Booking{}, domain.Provider{}, domain.Requester{}, apperr.Internal("load booking requester", err)
	}
	return b, provider, requester, nil
}

func (s *Service) newMeetingReference() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.TrimRight(s.cfg.MeetingBaseURL, "/") + "/" + s.cfg.MeetingPrefix + "-" + token
}

// lookupError maps a missing profile to NotFound with msg.
func lookupError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(msg, err)
}

func storeError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(msg, err)
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
