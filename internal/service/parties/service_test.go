package parties

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"consultations/backend/internal/apperr"
	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
	"consultations/backend/internal/store/memory"
)

func TestRegister_BothRolesForOneCaller(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	p, err := svc.Register(ctx, "u1", domain.RoleProvider, ProfileInput{Name: "Dr Ada", Email: "ada@example.com", Specialization: "GP"})
	if err != nil {
		t.Fatalf("Register provider error: %v", err)
	}
	if p.Role != domain.RoleProvider || p.UserID != "u1" || p.ID == uuid.Nil || p.Specialization != "GP" {
		t.Fatalf("provider profile = %+v", p)
	}

	r, err := svc.Register(ctx, "u1", domain.RoleRequester, ProfileInput{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("Register requester error: %v", err)
	}
	if r.Role != domain.RoleRequester || r.ID == p.ID {
		t.Fatalf("requester profile = %+v", r)
	}

	got, err := svc.Lookup(ctx, "u1", domain.RoleRequester)
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if got.ID != r.ID {
		t.Fatalf("Lookup id = %s, want %s", got.ID, r.ID)
	}
}

func TestRegister_Rejections(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()
	valid := ProfileInput{Name: "Ben", Email: "ben@example.com"}

	if _, err := svc.Register(ctx, "u2", domain.RoleRequester, valid); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	tests := []struct {
		name   string
		caller string
		role   domain.Role
		in     ProfileInput
		want   apperr.Kind
	}{
		{name: "no caller", caller: "", role: domain.RoleRequester, in: valid, want: apperr.KindUnauthenticated},
		{name: "unknown role", caller: "u3", role: domain.Role("admin"), in: valid, want: apperr.KindRejected},
		{name: "missing name", caller: "u3", role: domain.RoleProvider, in: ProfileInput{Email: "x@example.com"}, want: apperr.KindRejected},
		{name: "bad email", caller: "u3", role: domain.RoleProvider, in: ProfileInput{Name: "X", Email: "nope"}, want: apperr.KindRejected},
		{name: "duplicate", caller: "u2", role: domain.RoleRequester, in: valid, want: apperr.KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.caller, tt.role, tt.in)
			if got := apperr.KindOf(err); got != tt.want {
				t.Fatalf("kind = %q (%v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestRegister_DuplicateKeepsStoreCause(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()
	in := ProfileInput{Name: "Dr Ada", Email: "ada@example.com"}

	if _, err := svc.Register(ctx, "u1", domain.RoleProvider, in); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	_, err := svc.Register(ctx, "u1", domain.RoleProvider, in)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("error = %v, want wrapping %v", err, store.ErrDuplicate)
	}
}

func TestLookup_Missing(t *testing.T) {
	svc := NewService(memory.New(), nil)
	_, err := svc.Lookup(context.Background(), "nobody", domain.RoleProvider)
	if got := apperr.KindOf(err); got != apperr.KindNotFound {
		t.Fatalf("kind = %q, want %q", got, apperr.KindNotFound)
	}
}
