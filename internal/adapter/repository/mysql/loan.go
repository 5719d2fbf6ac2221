package mysql

import (
	loanDomain "collateral-evidence/internal/domain/loan"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) UpsertMerge(ctx context.Context, seed *loanDomain.Loan, merge loanDomain.Fields) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "loan_id"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return fmt.Errorf("init loan %s: %w", seed.LoanID, err)
	}
	if len(merge) == 0 {
		return nil
	}
	return db.Model(&loanDomain.Loan{}).
		Where("loan_id = ? AND user_id = ? AND status <> ?", seed.LoanID, seed.UserID, loanDomain.StatusRejected).
		Updates(map[string]any(merge)).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	return &out, notFound(res.Error)
}

func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out)
	return &out, notFound(res.Error)
}

func (r *LoanRepository) Update(ctx context.Context, loanID string, fields loanDomain.Fields) error {
	return r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("loan_id = ?", loanID).
		Updates(map[string]any(fields)).Error
}

func (r *LoanRepository) AppendAsset(ctx context.Context, loanID string, e loanDomain.FileEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur loanDomain.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "loan_id", "asset_data").
			Where("loan_id = ?", loanID).
			First(&cur).Error; err != nil {
			return notFound(err)
		}
		assets := cur.Assets()
		for _, a := range assets {
			if a.Path == e.Path {
				return nil
			}
		}
		assets = append(assets, e)
		return tx.Model(&loanDomain.Loan{}).
			Where("id = ?", cur.ID).
			Update("asset_data", datatypes.NewJSONType(assets)).Error
	})
}

func (r *LoanRepository) ClaimVerification(ctx context.Context, loanID string, now time.Time, lease time.Duration) (bool, error) {
	now = now.UTC()
	res := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("loan_id = ? AND status <> ?", loanID, loanDomain.StatusRejected).
		Where(r.db.Where("verification_state IN ?",
			[]loanDomain.VerificationState{loanDomain.VerificationNone, loanDomain.VerificationFailed}).
			Or("(verification_state = ? AND (claimed_at IS NULL OR claimed_at < ?))",
				loanDomain.VerificationClaimed, now.Add(-lease))).
		Updates(map[string]any{
			"verification_state": loanDomain.VerificationClaimed,
			"status":             loanDomain.StatusAIPending,
			"claimed_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LoanRepository) ResolveVerification(ctx context.Context, loanID string, fields loanDomain.Fields) (bool, error) {
	res := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).
		Where("loan_id = ? AND status <> ? AND verification_state = ?", loanID,
			loanDomain.StatusRejected, loanDomain.VerificationClaimed).
		Updates(map[string]any(fields))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loanDomain.ErrNotFound
	}
	return err
}
