package rejectionmock

import (
	domain "collateral-evidence/internal/domain/rejection"
	"context"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn       func(ctx context.Context, r *domain.Rejection) error
	ListByUserIDFn func(ctx context.Context, userID string) ([]domain.Rejection, error)
}

func (m *Repo) Create(ctx context.Context, r *domain.Rejection) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}

func (m *Repo) ListByUserID(ctx context.Context, userID string) ([]domain.Rejection, error) {
	if m.ListByUserIDFn != nil {
		return m.ListByUserIDFn(ctx, userID)
	}
	return nil, context.Canceled
}
