package uow

import (
	"collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/domain/rejection"
	"context"
)

type Repos struct {
	Loans      loan.Repository
	Rejections rejection.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
