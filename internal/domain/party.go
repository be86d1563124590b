package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the closed set of party kinds a caller can register as.
type Role string

const (
	RoleProvider  Role = "provider"
	RoleRequester Role = "requester"
)

// ParseRole maps a wire value to a Role. Only the declared roles are accepted.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleProvider:
		return RoleProvider, true
	case RoleRequester:
		return RoleRequester, true
	}
	return "", false
}

// Provider is the party being booked.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	UserID         string    `bun:"user_id,notnull"`
	Name           string    `bun:"name,notnull"`
	Email          string    `bun:"email,notnull"`
	Specialization string    `bun:"specialization"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Requester is the party initiating a booking.
type Requester struct {
	bun.BaseModel `bun:"table:requesters"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    string    `bun:"user_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r *Requester) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}
