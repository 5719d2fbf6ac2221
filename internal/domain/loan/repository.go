package loan

import (
	"context"
	"time"
)

// Fields is a column -> value set for partial updates.
type Fields map[string]any

type Repository interface {
	// UpsertMerge creates seed if loan_id is absent. When present, only the columns in
	// merge are written, and only while the loan is not rejected and belongs to
	// seed.UserID.
	UpsertMerge(ctx context.Context, seed *Loan, merge Fields) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	Update(ctx context.Context, loanID string, fields Fields) error
	// AppendAsset appends e to asset_data atomically; an entry whose path is already
	// recorded is not appended twice.
	AppendAsset(ctx context.Context, loanID string, e FileEntry) error
	// ClaimVerification moves verification_state none|failed -> claimed, stamps claimed_at
	// with now and sets status ai_pending. A claim older than lease may be taken over.
	// It reports false when another run holds a live claim.
	ClaimVerification(ctx context.Context, loanID string, now time.Time, lease time.Duration) (bool, error)
	// ResolveVerification writes fields only while the claim is still held.
	ResolveVerification(ctx context.Context, loanID string, fields Fields) (bool, error)
}
