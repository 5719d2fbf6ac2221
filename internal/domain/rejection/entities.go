package rejection

import "time"

// Rejection logs a submission discarded before a loan record could carry the reason.
type Rejection struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RejectionID string    `gorm:"column:rejection_id;type:char(32);not null;uniqueIndex:ux_rejections_rejection_id" json:"rejection_id"`
	UserID      string    `gorm:"column:user_id;size:64;not null;index" json:"user_id"`
	LoanID      string    `gorm:"column:loan_id;size:64" json:"loan_id,omitempty"`
	FilePath    string    `gorm:"column:file_path;type:text;not null" json:"file_path"`
	Reason      string    `gorm:"column:reason;size:255;not null" json:"reason"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Rejection) TableName() string { return "rejections" }
