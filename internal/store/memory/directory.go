package memory

import (
	"context"

	"github.com/google/uuid"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/store"
)

func (s *Store) ProviderByID(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ProviderByUser(ctx context.Context, userID string) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.UserID == userID {
			return p, nil
		}
	}
	return domain.Provider{}, store.ErrNotFound
}

func (s *Store) RequesterByID(ctx context.Context, id uuid.UUID) (domain.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requesters[id]
	if !ok {
		return domain.Requester{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) RequesterByUser(ctx context.Context, userID string) (domain.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requesters {
		if r.UserID == userID {
			return r, nil
		}
	}
	return domain.Requester{}, store.ErrNotFound
}

func (s *Store) CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.providers {
		if existing.UserID == p.UserID {
			return domain.Provider{}, store.ErrDuplicate
		}
	}
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Provider{}, err
		}
		p.ID = id
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.providers[p.ID] = p
	return p, nil
}

func (s *Store) CreateRequester(ctx context.Context, r domain.Requester) (domain.Requester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requesters {
		if existing.UserID == r.UserID {
			return domain.Requester{}, store.ErrDuplicate
		}
	}
	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Requester{}, err
		}
		r.ID = id
	}
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.requesters[r.ID] = r
	return r, nil
}
