package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"consultations/backend/internal/store"
)

func TestBookingInsertError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "same scheduled start", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintScheduledStart}, want: store.ErrConflict},
		{name: "meeting reference reused", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintMeetingReference}, want: store.ErrDuplicate},
		{name: "primary key", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "bookings_pkey"}), want: store.ErrDuplicate},
		{name: "other driver error", err: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bookingInsertError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("bookingInsertError = %v, want %v", got, tt.want)
			}
		})
	}

	check := &pgconn.PgError{Code: "23514", ConstraintName: "bookings_time_check"}
	if got := bookingInsertError(check); got != error(check) {
		t.Fatalf("check violation mapped to %v", got)
	}
}

func TestNotFoundAndDuplicate(t *testing.T) {
	if err := notFound(sql.ErrNoRows); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("notFound(ErrNoRows) = %v", err)
	}
	if err := notFound(nil); err != nil {
		t.Fatalf("notFound(nil) = %v", err)
	}
	if err := duplicate(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "providers_user_id_key"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate = %v", err)
	}
}
