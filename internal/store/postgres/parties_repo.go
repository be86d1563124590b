package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

type PartyRepo struct {
	db *bun.DB
}

var _ store.PartyDirectory = (*PartyRepo)(nil)

func NewPartyRepo(db *bun.DB) *PartyRepo {
	return &PartyRepo{db: db}
}

func (r *PartyRepo) ProviderByID(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx)
	return p, notFound(err)
}

func (r *PartyRepo) ProviderByUser(ctx context.Context, userID string) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().Model(&p).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	return p, notFound(err)
}

func (r *PartyRepo) RequesterByID(ctx context.Context, id uuid.UUID) (domain.Requester, error) {
	var q domain.Requester
	err := r.db.NewSelect().Model(&q).Where("id = ?", id).Limit(1).Scan(ctx)
	return q, notFound(err)
}

func (r *PartyRepo) RequesterByUser(ctx context.Context, userID string) (domain.Requester, error) {
	var q domain.Requester
	err := r.db.NewSelect().Model(&q).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	return q, notFound(err)
}

func (r *PartyRepo) CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	m := p
	if _, err := r.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Provider{}, duplicate(err)
	}
	return m, nil
}

func (r *PartyRepo) CreateRequester(ctx context.Context, q domain.Requester) (domain.Requester, error) {
	m := q
	if _, err := r.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Requester{}, duplicate(err)
	}
	return m, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return store.ErrDuplicate
	}
	return err
}
