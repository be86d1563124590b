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

type ConsultationRepo struct {
	db *bun.DB
}

var _ store.ConsultationRepository = (*ConsultationRepo)(nil)

func NewConsultationRepo(db *bun.DB) *ConsultationRepo {
	return &ConsultationRepo{db: db}
}

func (r *ConsultationRepo) CreateRecord(ctx context.Context, rec domain.ConsultationRecord, completedAt time.Time) (domain.ConsultationRecord, error) {
	var out domain.ConsultationRecord
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var b domain.Booking
		err := tx.NewSelect().
			Model(&b).
			Where("id = ?", rec.BookingID).
			For("UPDATE").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		switch b.Status {
		case domain.BookingStatusCancelled:
			return store.ErrStaleStatus
		case domain.BookingStatusScheduled:
			_, err := tx.NewUpdate().
				Model((*domain.Booking)(nil)).
				Set("status = ?", domain.BookingStatusCompleted).
				Set("end_time = ?", completedAt.UTC()).
				Set("updated_at = ?", time.Now().UTC()).
				Where("id = ?", b.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		m := rec
		if _, err := tx.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return store.ErrDuplicate
			}
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	return out, nil
}

func (r *ConsultationRepo) FindByBooking(ctx context.Context, bookingID uuid.UUID) (domain.ConsultationRecord, error) {
	var rec domain.ConsultationRecord
	err := r.db.NewSelect().Model(&rec).Where("booking_id = ?", bookingID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ConsultationRecord{}, store.ErrNotFound
		}
		return domain.ConsultationRecord{}, err
	}
	return rec, nil
}

func (r *ConsultationRepo) ListRecordsByRequester(ctx context.Context, requesterID uuid.UUID) ([]domain.ConsultationRecord, error) {
	rows := make([]domain.ConsultationRecord, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Where("requester_id = ?", requesterID).
		OrderExpr("consultation_date DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
