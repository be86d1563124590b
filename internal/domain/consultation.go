package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsultationRecord holds the provider's notes for a booking. At most one exists per booking.
type ConsultationRecord struct {
	bun.BaseModel `bun:"table:consultation_records"`

	ID                uuid.UUID `bun:"id,pk,type:uuid"`
	BookingID         uuid.UUID `bun:"booking_id,notnull,type:uuid"`
	ProviderID        uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	RequesterID       uuid.UUID `bun:"requester_id,notnull,type:uuid"`
	ConsultationDate  time.Time `bun:"consultation_date,notnull"`
	SubjectiveNotes   string    `bun:"subjective_notes"`
	ObjectiveFindings string    `bun:"objective_findings"`
	Assessment        string    `bun:"assessment"`
	Plan              string    `bun:"plan"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

func (c *ConsultationRecord) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &c.ID, &c.CreatedAt, &c.UpdatedAt)
}
