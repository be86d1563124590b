package grpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"consultations/backend/internal/apperr"
	"consultations/backend/internal/domain"
	"consultations/backend/internal/service/bookings"
	"consultations/backend/internal/service/consultations"
	"consultations/backend/internal/service/parties"
)

// CallerMetadataKey carries the authenticated user id set by the gateway.
const CallerMetadataKey = "x-caller-id"

type bookingsService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error)
	ListForCaller(ctx context.Context, callerID string) ([]domain.Booking, error)
}

type consultationsService interface {
	CreateRecord(ctx context.Context, callerID string, bookingID uuid.UUID, notes consultations.Notes) (domain.ConsultationRecord, error)
	RecordForBooking(ctx context.Context, callerID string, bookingID uuid.UUID) (domain.ConsultationRecord, error)
	History(ctx context.Context, callerID string) ([]domain.ConsultationRecord, error)
}

type partiesService interface {
	Register(ctx context.Context, callerID string, role domain.Role, in parties.ProfileInput) (parties.Profile, error)
}

type Server struct {
	bookings      bookingsService
	consultations consultationsService
	parties       partiesService
	log           *slog.Logger
}

var _ ConsultationServiceServer = (*Server)(nil)

func NewServer(b bookingsService, c consultationsService, p partiesService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		bookings:      b,
		consultations: c,
		parties:       p,
		log:           log.With(slog.String("component", "grpc.consultations")),
	}
}

func callerID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(CallerMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// statusError converts a service error into a gRPC status, logging internal
// failures with their cause.
func statusError(log *slog.Logger, err error) error {
	msg := apperr.Message(err)
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, msg)
	case apperr.KindRejected:
		return status.Error(codes.FailedPrecondition, msg)
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case apperr.KindUnauthenticated:
		return status.Error(codes.Unauthenticated, msg)
	}
	log.Error("request failed", slog.Any("err", err))
	return status.Error(codes.Internal, msg)
}

func parseBookingID(log *slog.Logger, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return uuid.Nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	return id, nil
}

func (s *Server) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	providerID, err := uuid.Parse(strings.TrimSpace(req.ProviderID))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_provider_id"))
		return nil, status.Error(codes.InvalidArgument, "provider_id must be a UUID")
	}

	b, err := s.bookings.Create(ctx, bookings.CreateInput{
		CallerID:     callerID(ctx),
		ProviderID:   providerID,
		StartTime:    *req.StartTime,
		InitialNotes: req.InitialNotes,
		Purpose:      req.Purpose,
	})
	if err != nil {
		return nil, statusError(log, err)
	}
	return &BookingResponse{Booking: toWireBooking(b)}, nil
}

func (s *Server) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBookings"))

	rows, err := s.bookings.ListForCaller(ctx, callerID(ctx))
	if err != nil {
		return nil, statusError(log, err)
	}
	out := make([]*Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, toWireBooking(b))
	}
	log.Debug("bookings listed", slog.Int("count", len(out)))
	return &ListBookingsResponse{Bookings: out}, nil
}

func (s *Server) CancelBooking(ctx context.Context, req *BookingIDRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	id, err := parseBookingID(log, req.BookingID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.Cancel(ctx, id, callerID(ctx))
	if err != nil {
		return nil, statusError(log, err)
	}
	return &BookingResponse{Booking: toWireBooking(b)}, nil
}

func (s *Server) CompleteBooking(ctx context.Context, req *BookingIDRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CompleteBooking"))

	id, err := parseBookingID(log, req.BookingID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.Complete(ctx, id, callerID(ctx))
	if err != nil {
		return nil, statusError(log, err)
	}
	return &BookingResponse{Booking: toWireBooking(b)}, nil
}

func (s *Server) CreateConsultationRecord(ctx context.Context, req *CreateRecordRequest) (*RecordResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateConsultationRecord"))

	id, err := parseBookingID(log, req.BookingID)
	if err != nil {
		return nil, err
	}
	rec, err := s.consultations.CreateRecord(ctx, callerID(ctx), id, consultations.Notes{
		SubjectiveNotes:   req.SubjectiveNotes,
		ObjectiveFindings: req.ObjectiveFindings,
		Assessment:        req.Assessment,
		Plan:              req.Plan,
	})
	if err != nil {
		return nil, statusError(log, err)
	}
	return &RecordResponse{Record: toWireRecord(rec)}, nil
}

func (s *Server) GetConsultationRecord(ctx context.Context, req *BookingIDRequest) (*RecordResponse, error) {
	log := s.log.With(slog.String("rpc", "GetConsultationRecord"))

	id, err := parseBookingID(log, req.BookingID)
	if err != nil {
		return nil, err
	}
	rec, err := s.consultations.RecordForBooking(ctx, callerID(ctx), id)
	if err != nil {
		return nil, statusError(log, err)
	}
	return &RecordResponse{Record: toWireRecord(rec)}, nil
}

func (s *Server) ListConsultationHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	log := s.log.With(slog.String("rpc", "ListConsultationHistory"))

	rows, err := s.consultations.History(ctx, callerID(ctx))
	if err != nil {
		return nil, statusError(log, err)
	}
	out := make([]*ConsultationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toWireRecord(r))
	}
	return &HistoryResponse{Records: out}, nil
}

func (s *Server) RegisterParty(ctx context.Context, req *RegisterPartyRequest) (*RegisterPartyResponse, error) {
	log := s.log.With(slog.String("rpc", "RegisterParty"))

	role, ok := domain.ParseRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if !ok {
		log.Warn("invalid request", slog.String("reason", "unknown_role"))
		return nil, status.Error(codes.InvalidArgument, "role must be provider or requester")
	}
	p, err := s.parties.Register(ctx, callerID(ctx), role, parties.ProfileInput{
		Name:           req.Name,
		Email:          req.Email,
		Specialization: req.Specialization,
	})
	if err != nil {
		return nil, statusError(log, err)
	}
	return &RegisterPartyResponse{Profile: toWireProfile(p)}, nil
}
