// Package memory is an in-process implementation of the store interfaces.
// It serialises writers per provider the same way the Postgres store does with
// advisory locks, which makes it suitable for tests and single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

type Store struct {
	now func() time.Time

	mu         sync.RWMutex
	seq        uint64
	bookings   map[uuid.UUID]bookingRow
	meetings   map[string]uuid.UUID
	records    map[uuid.UUID]recordRow
	providers  map[uuid.UUID]domain.Provider
	requesters map[uuid.UUID]domain.Requester

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

type bookingRow struct {
	booking domain.Booking
	seq     uint64
}

type recordRow struct {
	record domain.ConsultationRecord
	seq    uint64
}

var (
	_ store.BookingRepository      = (*Store)(nil)
	_ store.ConsultationRepository = (*Store)(nil)
	_ store.PartyDirectory         = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		bookings:   make(map[uuid.UUID]bookingRow),
		meetings:   make(map[string]uuid.UUID),
		records:    make(map[uuid.UUID]recordRow),
		providers:  make(map[uuid.UUID]domain.Provider),
		requesters: make(map[uuid.UUID]domain.Requester),
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) providerLock(providerID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[providerID] = l
	}
	return l
}

func (s *Store) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderTx) error) error {
	l := s.providerLock(providerID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &providerTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx.pending)
}

func (s *Store) commit(pending []domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range pending {
		if _, ok := s.bookings[b.ID]; ok {
			return store.ErrDuplicate
		}
		if _, ok := s.meetings[b.MeetingReference]; ok {
			return store.ErrDuplicate
		}
	}
	for _, b := range pending {
		s.seq++
		s.bookings[b.ID] = bookingRow{booking: b, seq: s.seq}
		s.meetings[b.MeetingReference] = b.ID
	}
	return nil
}

type providerTx struct {
	s       *Store
	pending []domain.Booking
}

func (tx *providerTx) FindConflicting(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	window := domain.Span{Start: windowStart, End: windowEnd}
	match := func(b domain.Booking) bool {
		return b.ProviderID == providerID &&
			b.Status == domain.BookingStatusScheduled &&
			window.Overlaps(b.Window())
	}

	tx.s.mu.RLock()
	var out []domain.Booking
	for _, row := range tx.s.bookings {
		if match(row.booking) {
			out = append(out, row.booking)
		}
	}
	tx.s.mu.RUnlock()

	for _, b := range tx.pending {
		if match(b) {
			out = append(out, b)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (tx *providerTx) Save(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	}
	now := tx.s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	tx.pending = append(tx.pending, b)
	return b, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return row.booking, nil
}

func (s *Store) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Booking, error) {
	return s.listBookings(func(b domain.Booking) bool { return b.ProviderID == providerID }), nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.Booking, error) {
	return s.listBookings(func(b domain.Booking) bool { return b.RequesterID == requesterID }), nil
}

func (s *Store) listBookings(keep func(domain.Booking) bool) []domain.Booking {
	s.mu.RLock()
	rows := make([]bookingRow, 0)
	for _, row := range s.bookings {
		if keep(row.booking) {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]domain.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.booking)
	}
	return out
}

func (s *Store) Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus, endTime *time.Time) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if row.booking.Status != from {
		return domain.Booking{}, store.ErrStaleStatus
	}
	row.booking.Status = to
	if endTime != nil {
		row.booking.EndTime = endTime.UTC()
	}
	row.booking.UpdatedAt = s.now()
	s.bookings[id] = row
	return row.booking, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec domain.ConsultationRecord, completedAt time.Time) (domain.ConsultationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.bookings[rec.BookingID]
	if !ok {
		return domain.ConsultationRecord{}, store.ErrNotFound
	}
	if _, exists := s.records[rec.BookingID]; exists {
		return domain.ConsultationRecord{}, store.ErrDuplicate
	}

	switch row.booking.Status {
	case domain.BookingStatusCancelled:
		return domain.ConsultationRecord{}, store.ErrStaleStatus
	case domain.BookingStatusScheduled:
		row.booking.Status = domain.BookingStatusCompleted
		row.booking.EndTime = completedAt.UTC()
		row.booking.UpdatedAt = s.now()
		s.bookings[rec.BookingID] = row
	}

	if rec.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.ConsultationRecord{}, err
		}
		rec.ID = id
	}
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.seq++
	s.records[rec.BookingID] = recordRow{record: rec, seq: s.seq}
	return rec, nil
}

func (s *Store) FindByBooking(ctx context.Context, bookingID uuid.UUID) (domain.ConsultationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.records[bookingID]
	if !ok {
		return domain.ConsultationRecord{}, store.ErrNotFound
	}
	return row.record, nil
}

func (s *Store) ListRecordsByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.ConsultationRecord, error) {
	s.mu.RLock()
	rows := make([]recordRow, 0)
	for _, row := range s.records {
		if row.record.RequesterID == requesterID {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].record.ConsultationDate, rows[j].record.ConsultationDate
		if a.Equal(b) {
			return rows[i].seq > rows[j].seq
		}
		return a.After(b)
	})

	out := make([]domain.ConsultationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record)
	}
	return out, nil
}
