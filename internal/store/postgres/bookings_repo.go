package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

const (
	pgUniqueViolation = "23505"

	constraintScheduledStart   = "bookings_provider_scheduled_start"
	constraintMeetingReference = "bookings_meeting_reference_key"
)

type BookingRepo struct {
	db *bun.DB
}

var _ store.BookingRepository = (*BookingRepo)(nil)

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type providerTx struct {
	tx bun.Tx
}

func (r *BookingRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderTimeline(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, providerTx{tx: tx})
	})
}

func lockProviderTimeline(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (t providerTx) FindConflicting(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := t.tx.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("status = ?", domain.BookingStatusScheduled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t providerTx) Save(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	_, err := t.tx.NewInsert().Model(&m).Returning("*").Exec(ctx)
	if err != nil {
		return domain.Booking{}, bookingInsertError(err)
	}
	return m, nil
}

// bookingInsertError maps unique violations on bookings to store errors.
// A second scheduled booking at the same provider start is a conflict; a
// reused id or meeting reference is a duplicate.
func bookingInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintScheduledStart:
		return store.ErrConflict
	case constraintMeetingReference, "bookings_pkey":
		return store.ErrDuplicate
	}
	return err
}

func (r *BookingRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepo) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Booking, error) {
	return r.list(ctx, "provider_id = ?", providerID)
}

func (r *BookingRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.Booking, error) {
	return r.list(ctx, "requester_id = ?", requesterID)
}

// list orders by id; ids are UUIDv7 so this is insertion order.
func (r *BookingRepo) list(ctx context.Context, where string, arg any) ([]domain.Booking, error) {
	rows := make([]domain.Booking, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Where(where, arg).
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus, endTime *time.Time) (domain.Booking, error) {
	var b domain.Booking
	q := r.db.NewUpdate().
		Model(&b).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Returning("*")
	if endTime != nil {
		q = q.Set("end_time = ?", endTime.UTC())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 1 {
		return b, nil
	}

	exists, err := r.db.NewSelect().Model((*domain.Booking)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	if !exists {
		return domain.Booking{}, store.ErrNotFound
	}
	return domain.Booking{}, store.ErrStaleStatus
}
