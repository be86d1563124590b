package parties

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"consultations/backend/internal/apperr"
	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

type Service struct {
	dir store.PartyDirectory
	log *slog.Logger
}

func NewService(dir store.PartyDirectory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{dir: dir, log: log.With(slog.String("component", "service.parties"))}
}

type ProfileInput struct {
	Name           string
	Email          string
	Specialization string
}

// Profile is the role-independent view of a registered party.
type Profile struct {
	Role           domain.Role
	ID             uuid.UUID
	UserID         string
	Name           string
	Email          string
	Specialization string
}

func (s *Service) Register(ctx context.Context, callerID string, role domain.Role, in ProfileInput) (Profile, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return Profile{}, apperr.Unauthenticated("caller identity is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Profile{}, apperr.Rejected("name is required")
	}
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Profile{}, apperr.Rejected("a valid email is required")
	}

	var (
		out Profile
		err error
	)
	switch role {
	case domain.RoleProvider:
		var p domain.Provider
		p, err = s.dir.CreateProvider(ctx, domain.Provider{
			UserID:         callerID,
			Name:           name,
			Email:          email,
			Specialization: strings.TrimSpace(in.Specialization),
		})
		out = ProviderProfile(p)
	case domain.RoleRequester:
		var r domain.Requester
		r, err = s.dir.CreateRequester(ctx, domain.Requester{UserID: callerID, Name: name, Email: email})
		out = RequesterProfile(r)
	default:
		return Profile{}, apperr.Rejected(fmt.Sprintf("unknown role %q", role))
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Profile{}, apperr.Wrap(apperr.KindRejected, fmt.Sprintf("caller already has a %s profile", role), err)
		}
		return Profile{}, apperr.Internal("create profile", err)
	}

	s.log.Info("profile registered", slog.String("role", string(role)), slog.String("profile_id", out.ID.String()))
	return out, nil
}

// Lookup resolves the caller's profile for role.
func (s *Service) Lookup(ctx context.Context, callerID string, role domain.Role) (Profile, error) {
	var (
		out Profile
		err error
	)
	switch role {
	case domain.RoleProvider:
		var p domain.Provider
		p, err = s.dir.ProviderByUser(ctx, callerID)
		out = ProviderProfile(p)
	case domain.RoleRequester:
		var r domain.Requester
		r, err = s.dir.RequesterByUser(ctx, callerID)
		out = RequesterProfile(r)
	default:
		return Profile{}, apperr.Rejected(fmt.Sprintf("unknown role %q", role))
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, apperr.NotFound(fmt.Sprintf("%s profile not found", role))
		}
		return Profile{}, apperr.Internal("load profile", err)
	}
	return out, nil
}

func ProviderProfile(p domain.Provider) Profile {
	return Profile{
		Role:           domain.RoleProvider,
		ID:             p.ID,
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Specialization: p.Specialization,
	}
}

func RequesterProfile(r domain.Requester) Profile {
	return Profile{
		Role:   domain.RoleRequester,
		ID:     r.ID,
		UserID: r.UserID,
		Name:   r.Name,
		Email:  r.Email,
	}
}
