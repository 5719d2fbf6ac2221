package loan

import (
	"time"

	domain "collateral-evidence/internal/domain/loan"
)

type FileDTO struct {
	Path        string           `json:"path"`
	Location    *domain.Location `json:"location,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	ContentType string           `json:"content_type,omitempty"`
}

type VerdictDTO struct {
	ProductName     string     `json:"product_name"`
	ConfidenceScore int        `json:"confidence_score"`
	Summary         string     `json:"summary"`
	ExtractedAmount *float64   `json:"extracted_amount,omitempty"`
	AssetType       string     `json:"asset_type"`
	IsHandwritten   bool       `json:"is_handwritten"`
	IsDuplicate     bool       `json:"is_duplicate"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
}

type LoanDTO struct {
	LoanID            string      `json:"loan_id"`
	UserID            string      `json:"user_id"`
	Status            string      `json:"status"`
	VerificationState string      `json:"verification_state"`
	BorrowerName      string      `json:"borrower_name,omitempty"`
	RequestedAmount   *float64    `json:"requested_amount,omitempty"`
	DeclaredAssetType string      `json:"declared_asset_type,omitempty"`
	Bill              *FileDTO    `json:"bill,omitempty"`
	Assets            []FileDTO   `json:"assets"`
	RejectionReason   string      `json:"rejection_reason,omitempty"`
	Note              string      `json:"note,omitempty"`
	Verdict           *VerdictDTO `json:"verdict,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	LastUpdated       time.Time   `json:"last_updated"`
}

type RejectionDTO struct {
	RejectionID string    `json:"rejection_id"`
	LoanID      string    `json:"loan_id,omitempty"`
	FilePath    string    `json:"file_path"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
