package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

func newBooking(providerID uuid.UUID, start time.Time) domain.Booking {
	return domain.Booking{
		ProviderID:       providerID,
		RequesterID:      uuid.New(),
		StartTime:        start,
		EndTime:          start.Add(time.Hour),
		Status:           domain.BookingStatusScheduled,
		MeetingReference: "room-" + uuid.NewString(),
	}
}

func save(t *testing.T, s *Store, b domain.Booking) domain.Booking {
	t.Helper()
	var out domain.Booking
	err := s.InProviderTransaction(context.Background(), b.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		saved, err := tx.Save(ctx, b)
		out = saved
		return err
	})
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	return out
}

func TestInProviderTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := s.InProviderTransaction(context.Background(), providerID, func(ctx context.Context, tx store.ProviderTx) error {
		if _, err := tx.Save(ctx, newBooking(providerID, start)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	rows, _ := s.ListByProvider(context.Background(), providerID)
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0", len(rows))
	}
}

func TestFindConflicting_SeesPendingAndFiltersStatus(t *testing.T) {
	s := New()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cancelled := save(t, s, newBooking(providerID, start))
	if _, err := s.Transition(context.Background(), cancelled.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	save(t, s, newBooking(uuid.New(), start))

	err := s.InProviderTransaction(context.Background(), providerID, func(ctx context.Context, tx store.ProviderTx) error {
		got, err := tx.FindConflicting(ctx, providerID, start.Add(-time.Hour), start.Add(time.Hour))
		if err != nil {
			return err
		}
		if len(got) != 0 {
			return fmt.Errorf("conflicts before save = %d, want 0", len(got))
		}
		if _, err := tx.Save(ctx, newBooking(providerID, start)); err != nil {
			return err
		}
		got, err = tx.FindConflicting(ctx, providerID, start.Add(-time.Hour), start.Add(time.Hour))
		if err != nil {
			return err
		}
		if len(got) != 1 {
			return fmt.Errorf("conflicts after save = %d, want 1", len(got))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListByProvider_NewestFirst(t *testing.T) {
	s := New()
	providerID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		b := save(t, s, newBooking(providerID, base.Add(time.Duration(i)*3*time.Hour)))
		ids = append(ids, b.ID)
	}

	rows, err := s.ListByProvider(context.Background(), providerID)
	if err != nil {
		t.Fatalf("ListByProvider error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	for i, row := range rows {
		if want := ids[len(ids)-1-i]; row.ID != want {
			t.Fatalf("rows[%d] = %s, want %s", i, row.ID, want)
		}
	}
}

func TestTransition_CompareAndSwap(t *testing.T) {
	s := New()
	b := save(t, s, newBooking(uuid.New(), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transition(context.Background(), b.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrStaleStatus) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("successful transitions = %d, want 1", success)
	}
	if _, err := s.Transition(context.Background(), uuid.New(), domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestCreateRecord_CompletesBookingOnce(t *testing.T) {
	s := New()
	b := save(t, s, newBooking(uuid.New(), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	completedAt := time.Date(2026, 3, 2, 10, 40, 0, 0, time.UTC)

	rec, err := s.CreateRecord(context.Background(), domain.ConsultationRecord{
		BookingID:   b.ID,
		ProviderID:  b.ProviderID,
		RequesterID: b.RequesterID,
		Assessment:  "ok",
	}, completedAt)
	if err != nil {
		t.Fatalf("CreateRecord error: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Fatalf("expected record id")
	}

	got, _ := s.FindByID(context.Background(), b.ID)
	if got.Status != domain.BookingStatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, domain.BookingStatusCompleted)
	}
	if !got.EndTime.Equal(completedAt) {
		t.Fatalf("end_time = %v, want %v", got.EndTime, completedAt)
	}

	_, err = s.CreateRecord(context.Background(), domain.ConsultationRecord{BookingID: b.ID}, completedAt)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("error = %v, want %v", err, store.ErrDuplicate)
	}
}

func TestCreateRecord_RejectsCancelledBooking(t *testing.T) {
	s := New()
	b := save(t, s, newBooking(uuid.New(), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	if _, err := s.Transition(context.Background(), b.ID, domain.BookingStatusScheduled, domain.BookingStatusCancelled, nil); err != nil {
		t.Fatalf("Transition error: %v", err)
	}

	_, err := s.CreateRecord(context.Background(), domain.ConsultationRecord{BookingID: b.ID}, time.Now())
	if !errors.Is(err, store.ErrStaleStatus) {
		t.Fatalf("error = %v, want %v", err, store.ErrStaleStatus)
	}
}

func TestDirectory_DuplicateProfile(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, err := s.CreateProvider(ctx, domain.Provider{UserID: "u1", Name: "Dr Who", Email: "who@example.com"})
	if err != nil {
		t.Fatalf("CreateProvider error: %v", err)
	}
	if _, err := s.CreateProvider(ctx, domain.Provider{UserID: "u1"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("error = %v, want %v", err, store.ErrDuplicate)
	}

	got, err := s.ProviderByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ProviderByUser error: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("id = %s, want %s", got.ID, p.ID)
	}
	if _, err := s.RequesterByUser(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, store.ErrNotFound)
	}
}
