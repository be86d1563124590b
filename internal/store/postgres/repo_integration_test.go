package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

// openTestDB returns a database whose single connection has search_path set
// to a fresh schema with all migrations applied.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	databaseURL := strings.TrimSpace(os.Getenv("CONSULT_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CONSULT_TEST_DATABASE_URL not set")
	}

	db, err := Open(context.Background(), databaseURL, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	schema := "consult_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func seedParties(t *testing.T, parties *PartyRepo) (domain.Provider, domain.Requester) {
	t.Helper()
	ctx := context.Background()
	p, err := parties.CreateProvider(ctx, domain.Provider{UserID: "prov-user", Name: "Dr Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("CreateProvider error: %v", err)
	}
	r, err := parties.CreateRequester(ctx, domain.Requester{UserID: "req-user", Name: "Ben", Email: "ben@example.com"})
	if err != nil {
		t.Fatalf("CreateRequester error: %v", err)
	}
	return p, r
}

func TestPostgresIntegration_BookingLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	parties := NewPartyRepo(db)
	bookings := NewBookingRepo(db)
	records := NewConsultationRepo(db)
	provider, requester := seedParties(t, parties)

	if _, err := parties.CreateProvider(ctx, domain.Provider{UserID: provider.UserID, Name: "x", Email: "x@example.com"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate provider err = %v, want %v", err, store.ErrDuplicate)
	}

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	newBooking := func(s time.Time) domain.Booking {
		return domain.Booking{
			ProviderID:       provider.ID,
			RequesterID:      requester.ID,
			StartTime:        s,
			EndTime:          s.Add(time.Hour),
			Status:           domain.BookingStatusScheduled,
			MeetingReference: "https://meet.example/consult-" + uuid.NewString(),
		}
	}

	var first domain.Booking
	err := bookings.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderTx) error {
		b, err := tx.Save(ctx, newBooking(start))
		first = b
		return err
	})
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatalf("expected id to be assigned")
	}

	err = bookings.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderTx) error {
		got, err := tx.FindConflicting(ctx, provider.ID, start.Add(30*time.Minute), start.Add(90*time.Minute))
		if err != nil {
			return err
		}
		if len(got) != 1 || got[0].ID != first.ID {
			return fmt.Errorf("conflicts = %v, want [%s]", got, first.ID)
		}
		got, err = tx.FindConflicting(ctx, provider.ID, start.Add(time.Hour), start.Add(2*time.Hour))
		if err != nil {
			return err
		}
		if len(got) != 0 {
			return fmt.Errorf("touching window conflicts = %d, want 0", len(got))
		}
		_, err = tx.Save(ctx, newBooking(start))
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("same start err = %v, want %v", err, store.ErrConflict)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}

	var second domain.Booking
	err = bookings.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderTx) error {
		b, err := tx.Save(ctx, newBooking(start.Add(3*time.Hour)))
		second = b
		return err
	})
	if err != nil {
		t.Fatalf("save error: %v", err)
	}

	rows, err := bookings.ListByRequester(ctx, requester.ID)
	if err != nil {
		t.Fatalf("ListByRequester error: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != second.ID {
		t.Fatalf("rows = %v, want newest first", rows)
	}

	if _, err := bookings.Transition(ctx, second.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if _, err := bookings.Transition(ctx, second.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); !errors.Is(err, store.ErrStaleStatus) {
		t.Fatalf("repeat Transition err = %v, want %v", err, store.ErrStaleStatus)
	}
	if _, err := bookings.Transition(ctx, uuid.New(), domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing Transition err = %v, want %v", err, store.ErrNotFound)
	}

	var early domain.Booking
	err = bookings.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderTx) error {
		b, err := tx.Save(ctx, newBooking(start.Add(6*time.Hour)))
		early = b
		return err
	})
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	completedEarly := start.Add(-3 * time.Hour)
	done, err := bookings.Transition(ctx, early.ID, domain.BookingStatusScheduled, domain.BookingStatusCompleted, &completedEarly)
	if err != nil {
		t.Fatalf("complete before start error: %v", err)
	}
	if done.Status != domain.BookingStatusCompleted || !done.EndTime.Equal(completedEarly) {
		t.Fatalf("completed booking = %s ending %v, want %s ending %v", done.Status, done.EndTime, domain.BookingStatusCompleted, completedEarly)
	}

	completedAt := start.Add(-2 * time.Hour)
	rec, err := records.CreateRecord(ctx, domain.ConsultationRecord{
		BookingID:        first.ID,
		ProviderID:       provider.ID,
		RequesterID:      requester.ID,
		ConsultationDate: completedAt,
		Assessment:       "fine",
	}, completedAt)
	if err != nil {
		t.Fatalf("CreateRecord error: %v", err)
	}

	got, err := bookings.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got.Status != domain.BookingStatusCompleted || !got.EndTime.Equal(completedAt) {
		t.Fatalf("booking after record = %s ending %v", got.Status, got.EndTime)
	}

	_, err = records.CreateRecord(ctx, domain.ConsultationRecord{
		BookingID:        first.ID,
		ProviderID:       provider.ID,
		RequesterID:      requester.ID,
		ConsultationDate: completedAt,
	}, completedAt)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate record err = %v, want %v", err, store.ErrDuplicate)
	}

	_, err = records.CreateRecord(ctx, domain.ConsultationRecord{
		BookingID:        second.ID,
		ProviderID:       provider.ID,
		RequesterID:      requester.ID,
		ConsultationDate: completedAt,
	}, completedAt)
	if !errors.Is(err, store.ErrStaleStatus) {
		t.Fatalf("cancelled record err = %v, want %v", err, store.ErrStaleStatus)
	}

	history, err := records.ListRecordsByRequester(ctx, requester.ID)
	if err != nil {
		t.Fatalf("ListRecordsByRequester error: %v", err)
	}
	if len(history) != 1 || history[0].ID != rec.ID {
		t.Fatalf("history = %v", history)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	const upMarker, downMarker = "-- +goose Up", "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")
	if downIdx := strings.Index(afterUp, downMarker); downIdx >= 0 {
		afterUp = afterUp[:downIdx]
	}
	return strings.TrimSpace(afterUp), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
