package loanmock

import (
	domain "collateral-evidence/internal/domain/loan"
	"context"
	"time"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return context.Canceled; unset writes succeed.
type Repo struct {
	UpsertMergeFn          func(ctx context.Context, seed *domain.Loan, merge domain.Fields) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	UpdateFn               func(ctx context.Context, loanID string, fields domain.Fields) error
	AppendAssetFn          func(ctx context.Context, loanID string, e domain.FileEntry) error
	ClaimVerificationFn    func(ctx context.Context, loanID string, now time.Time, lease time.Duration) (bool, error)
	ResolveVerificationFn  func(ctx context.Context, loanID string, fields domain.Fields) (bool, error)
}

func (m *Repo) UpsertMerge(ctx context.Context, seed *domain.Loan, merge domain.Fields) error {
	if m.UpsertMergeFn != nil {
		return m.UpsertMergeFn(ctx, seed, merge)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) Update(ctx context.Context, loanID string, fields domain.Fields) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, loanID, fields)
	}
	return nil
}

func (m *Repo) AppendAsset(ctx context.Context, loanID string, e domain.FileEntry) error {
	if m.AppendAssetFn != nil {
		return m.AppendAssetFn(ctx, loanID, e)
	}
	return nil
}

func (m *Repo) ClaimVerification(ctx context.Context, loanID string, now time.Time, lease time.Duration) (bool, error) {
	if m.ClaimVerificationFn != nil {
		return m.ClaimVerificationFn(ctx, loanID, now, lease)
	}
	return false, nil
}

func (m *Repo) ResolveVerification(ctx context.Context, loanID string, fields domain.Fields) (bool, error) {
	if m.ResolveVerificationFn != nil {
		return m.ResolveVerificationFn(ctx, loanID, fields)
	}
	return false, nil
}
