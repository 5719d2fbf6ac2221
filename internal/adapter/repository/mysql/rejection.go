package mysql

import (
	"context"

	rejectionDomain "collateral-evidence/internal/domain/rejection"

	"gorm.io/gorm"
)

type RejectionRepository struct{ db *gorm.DB }

func NewRejectionRepository(db *gorm.DB) *RejectionRepository {
	return &RejectionRepository{db: db}
}

func (r *RejectionRepository) Create(ctx context.Context, rej *rejectionDomain.Rejection) error {
	return r.db.WithContext(ctx).Create(rej).Error
}

func (r *RejectionRepository) ListByUserID(ctx context.Context, userID string) ([]rejectionDomain.Rejection, error) {
	var out []rejectionDomain.Rejection
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}
