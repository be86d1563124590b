package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/service/bookings"
	"consultations/backend/internal/service/consultations"
	"consultations/backend/internal/service/parties"
)

type BookingService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID, callerID string) (domain.Booking, error)
	ListForCaller(ctx context.Context, callerID string) ([]domain.Booking, error)
}

type ConsultationService interface {
	CreateRecord(ctx context.Context, callerID string, bookingID uuid.UUID, notes consultations.Notes) (domain.ConsultationRecord, error)
	RecordForBooking(ctx context.Context, callerID string, bookingID uuid.UUID) (domain.ConsultationRecord, error)
	History(ctx context.Context, callerID string) ([]domain.ConsultationRecord, error)
}

type PartyService interface {
	Register(ctx context.Context, callerID string, role domain.Role, in parties.ProfileInput) (parties.Profile, error)
	Lookup(ctx context.Context, callerID string, role domain.Role) (parties.Profile, error)
}

type handlers struct {
	bookings      BookingService
	consultations ConsultationService
	parties       PartyService
	log           *slog.Logger
}

type bookingDTO struct {
	ID               string    `json:"id"`
	ProviderID       string    `json:"providerId"`
	RequesterID      string    `json:"requesterId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Status           string    `json:"status"`
	MeetingReference string    `json:"meetingReference"`
	InitialNotes     string    `json:"initialNotes,omitempty"`
	Purpose          string    `json:"purpose,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toBookingDTO(b domain.Booking) bookingDTO {
	return bookingDTO{
		ID:               b.ID.String(),
		ProviderID:       b.ProviderID.String(),
		RequesterID:      b.RequesterID.String(),
		StartTime:        b.StartTime.UTC(),
		EndTime:          b.EndTime.UTC(),
		Status:           string(b.Status),
		MeetingReference: b.MeetingReference,
		InitialNotes:     b.InitialNotes,
		Purpose:          b.Purpose,
		CreatedAt:        b.CreatedAt.UTC(),
	}
}

type recordDTO struct {
	ID                string    `json:"id"`
	BookingID         string    `json:"bookingId"`
	ProviderID        string    `json:"providerId"`
	RequesterID       string    `json:"requesterId"`
	ConsultationDate  time.Time `json:"consultationDate"`
	SubjectiveNotes   string    `json:"subjectiveNotes"`
	ObjectiveFindings string    `json:"objectiveFindings"`
	Assessment        string    `json:"assessment"`
	Plan              string    `json:"plan"`
}

func toRecordDTO(r domain.ConsultationRecord) recordDTO {
	return recordDTO{
		ID:                r.ID.String(),
		BookingID:         r.BookingID.String(),
		ProviderID:        r.ProviderID.String(),
		RequesterID:       r.RequesterID.String(),
		ConsultationDate:  r.ConsultationDate.UTC(),
		SubjectiveNotes:   r.SubjectiveNotes,
		ObjectiveFindings: r.ObjectiveFindings,
		Assessment:        r.Assessment,
		Plan:              r.Plan,
	}
}

type profileDTO struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization,omitempty"`
}

func toProfileDTO(p parties.Profile) profileDTO {
	return profileDTO{
		ID:             p.ID.String(),
		Role:           string(p.Role),
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Specialization: p.Specialization,
	}
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, message, nil)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type createBookingRequest struct {
	ProviderID   string     `json:"providerId" binding:"required"`
	StartTime    *time.Time `json:"startTime" binding:"required"`
	InitialNotes string     `json:"initialNotes"`
	Purpose      string     `json:"purpose"`
}

func (h *handlers) createBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	providerID, err := uuid.Parse(strings.TrimSpace(req.ProviderID))
	if err != nil {
		badRequest(c, "providerId must be a UUID")
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), bookings.CreateInput{
		CallerID:     caller(c),
		ProviderID:   providerID,
		StartTime:    *req.StartTime,
		InitialNotes: req.InitialNotes,
		Purpose:      req.Purpose,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "booking created", toBookingDTO(b))
}

func (h *handlers) listBookings(c *gin.Context) {
	rows, err := h.bookings.ListForCaller(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	out := make([]bookingDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingDTO(b))
	}
	respond(c, http.StatusOK, "bookings retrieved", out)
}

func (h *handlers) cancelBooking(c *gin.Context) {
	id, ok := pathUUID(c, "bookingId")
	if !ok {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), id, caller(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "booking cancelled", toBookingDTO(b))
}

func (h *handlers) completeBooking(c *gin.Context) {
	id, ok := pathUUID(c, "bookingId")
	if !ok {
		return
	}
	b, err := h.bookings.Complete(c.Request.Context(), id, caller(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "booking completed", toBookingDTO(b))
}

type createRecordRequest struct {
	BookingID         string `json:"bookingId" binding:"required"`
	SubjectiveNotes   string `json:"subjectiveNotes"`
	ObjectiveFindings string `json:"objectiveFindings"`
	Assessment        string `json:"assessment"`
	Plan              string `json:"plan"`
}

func (h *handlers) createRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		badRequest(c, "bookingId must be a UUID")
		return
	}

	rec, err := h.consultations.CreateRecord(c.Request.Context(), caller(c), bookingID, consultations.Notes{
		SubjectiveNotes:   req.SubjectiveNotes,
		ObjectiveFindings: req.ObjectiveFindings,
		Assessment:        req.Assessment,
		Plan:              req.Plan,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "consultation recorded", toRecordDTO(rec))
}

func (h *handlers) recordForBooking(c *gin.Context) {
	id, ok := pathUUID(c, "bookingId")
	if !ok {
		return
	}
	rec, err := h.consultations.RecordForBooking(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "consultation retrieved", toRecordDTO(rec))
}

func (h *handlers) history(c *gin.Context) {
	rows, err := h.consultations.History(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	out := make([]recordDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRecordDTO(r))
	}
	respond(c, http.StatusOK, "consultation history retrieved", out)
}

type registerRequest struct {
	Role           string `json:"role" binding:"required"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	role, ok := domain.ParseRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if !ok {
		badRequest(c, "role must be provider or requester")
		return
	}

	p, err := h.parties.Register(c.Request.Context(), caller(c), role, parties.ProfileInput{
		Name:           req.Name,
		Email:          req.Email,
		Specialization: req.Specialization,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "profile registered", toProfileDTO(p))
}

func (h *handlers) me(c *gin.Context) {
	role, ok := domain.ParseRole(strings.ToLower(c.Query("role")))
	if !ok {
		badRequest(c, "role query parameter must be provider or requester")
		return
	}
	p, err := h.parties.Lookup(c.Request.Context(), caller(c), role)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "profile retrieved", toProfileDTO(p))
}
