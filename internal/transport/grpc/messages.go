package grpc

import (
	"time"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/service/parties"
)

type Booking struct {
	ID               string    `json:"id"`
	ProviderID       string    `json:"provider_id"`
	RequesterID      string    `json:"requester_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Status           string    `json:"status"`
	MeetingReference string    `json:"meeting_reference"`
	InitialNotes     string    `json:"initial_notes,omitempty"`
	Purpose          string    `json:"purpose,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type CreateBookingRequest struct {
	ProviderID   string     `json:"provider_id"`
	StartTime    *time.Time `json:"start_time"`
	InitialNotes string     `json:"initial_notes"`
	Purpose      string     `json:"purpose"`
}

type BookingResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsRequest struct{}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type BookingIDRequest struct {
	BookingID string `json:"booking_id"`
}

type ConsultationRecord struct {
	ID                string    `json:"id"`
	BookingID         string    `json:"booking_id"`
	ProviderID        string    `json:"provider_id"`
	RequesterID       string    `json:"requester_id"`
	ConsultationDate  time.Time `json:"consultation_date"`
	SubjectiveNotes   string    `json:"subjective_notes,omitempty"`
	ObjectiveFindings string    `json:"objective_findings,omitempty"`
	Assessment        string    `json:"assessment,omitempty"`
	Plan              string    `json:"plan,omitempty"`
}

type CreateRecordRequest struct {
	BookingID         string `json:"booking_id"`
	SubjectiveNotes   string `json:"subjective_notes"`
	ObjectiveFindings string `json:"objective_findings"`
	Assessment        string `json:"assessment"`
	Plan              string `json:"plan"`
}

type RecordResponse struct {
	Record *ConsultationRecord `json:"record"`
}

type HistoryRequest struct{}

type HistoryResponse struct {
	Records []*ConsultationRecord `json:"records"`
}

type RegisterPartyRequest struct {
	Role           string `json:"role"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
}

type Profile struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization,omitempty"`
}

type RegisterPartyResponse struct {
	Profile *Profile `json:"profile"`
}

func toWireBooking(b domain.Booking) *Booking {
	return &Booking{
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

func toWireRecord(r domain.ConsultationRecord) *ConsultationRecord {
	return &ConsultationRecord{
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

func toWireProfile(p parties.Profile) *Profile {
	return &Profile{
		ID:             p.ID.String(),
		Role:           string(p.Role),
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Specialization: p.Specialization,
	}
}
