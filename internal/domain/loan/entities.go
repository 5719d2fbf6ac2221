package loan

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusInitialised Status = "initialised"
	StatusAIPending   Status = "ai_pending"
	StatusPending     Status = "pending"
	StatusRejected    Status = "rejected"
)

// VerificationState tracks the single oracle call a completed bundle is allowed.
// none|failed -> claimed is the only transition a run may race for. A claim whose
// lease ran out without a verdict counts as failed.
type VerificationState string

const (
	VerificationNone    VerificationState = "none"
	VerificationClaimed VerificationState = "claimed"
	VerificationDone    VerificationState = "done"
	VerificationFailed  VerificationState = "failed"
)

var (
	ErrNotFound            = errors.New("loan not found")
	ErrVerificationClaimed = errors.New("verification already claimed")
	ErrNotRetryable        = errors.New("loan is not awaiting a verification retry")
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FileEntry is one piece of evidence recorded on a loan. Immutable once written.
type FileEntry struct {
	Bucket      string    `json:"bucket,omitempty"`
	Path        string    `json:"path"`
	Location    *Location `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ContentType string    `json:"contentType"`
}

type Loan struct {
	ID                uint64            `gorm:"primaryKey;column:id" json:"-"`
	LoanID            string            `gorm:"column:loan_id;size:64;not null;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	UserID            string            `gorm:"column:user_id;size:64;not null;index:idx_loans_user" json:"user_id"`
	Status            Status            `gorm:"column:status;size:16;not null;default:'initialised'" json:"status"`
	VerificationState VerificationState `gorm:"column:verification_state;size:16;not null;default:'none'" json:"verification_state"`
	ClaimedAt         *time.Time        `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	BorrowerName      string            `gorm:"column:borrower_name;size:255" json:"borrower_name,omitempty"`
	RequestedAmount   *float64          `gorm:"column:requested_amount" json:"requested_amount,omitempty"`
	DeclaredAssetType string            `gorm:"column:declared_asset_type;size:64" json:"declared_asset_type,omitempty"`

	BillData  datatypes.JSONType[*FileEntry]  `gorm:"column:bill_data;not null" json:"bill_data"`
	AssetData datatypes.JSONType[[]FileEntry] `gorm:"column:asset_data;not null" json:"asset_data"`

	RejectionReason string `gorm:"column:rejection_reason;size:255" json:"rejection_reason,omitempty"`

	// verdict
	ProductName     string     `gorm:"column:product_name;size:255" json:"product_name,omitempty"`
	ConfidenceScore *int       `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	Summary         string     `gorm:"column:summary;type:text" json:"summary,omitempty"`
	ExtractedAmount *float64   `gorm:"column:extracted_amount" json:"extracted_amount,omitempty"`
	AssetType       string     `gorm:"column:asset_type;size:64" json:"asset_type,omitempty"`
	IsHandwritten   *bool      `gorm:"column:is_handwritten" json:"is_handwritten,omitempty"`
	IsDuplicate     *bool      `gorm:"column:is_duplicate" json:"is_duplicate,omitempty"`
	VerifiedAt      *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`

	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
}

func (Loan) TableName() string { return "loans" }

// New returns the record a first submission creates for loanID.
func New(loanID, userID string) *Loan {
	return &Loan{
		LoanID:            loanID,
		UserID:            userID,
		Status:            StatusInitialised,
		VerificationState: VerificationNone,
		BillData:          datatypes.NewJSONType[*FileEntry](nil),
		AssetData:         datatypes.NewJSONType([]FileEntry{}),
	}
}

func (l *Loan) Bill() *FileEntry { return l.BillData.Data() }

func (l *Loan) Assets() []FileEntry { return l.AssetData.Data() }

func (l *Loan) Rejected() bool { return l.Status == StatusRejected }

// HasPath reports whether path is already recorded in the bill slot or the asset list.
func (l *Loan) HasPath(path string) bool {
	if b := l.Bill(); b != nil && b.Path == path {
		return true
	}
	for _, a := range l.Assets() {
		if a.Path == path {
			return true
		}
	}
	return false
}

// BundleReady is the readiness predicate: a bill is present and the asset list is full.
func (l *Loan) BundleReady(size int) bool {
	return l.Bill() != nil && len(l.Assets()) == size
}

// Claimable reports whether a run may claim the oracle call for this loan at now.
// A claim older than lease belongs to a run that died before reconciling.
func (l *Loan) Claimable(now time.Time, lease time.Duration) bool {
	if l.Rejected() {
		return false
	}
	switch l.VerificationState {
	case VerificationNone, VerificationFailed, "":
		return true
	case VerificationClaimed:
		return l.ClaimExpired(now, lease)
	}
	return false
}

// ClaimExpired is true for a claimed loan whose claim is older than lease.
func (l *Loan) ClaimExpired(now time.Time, lease time.Duration) bool {
	if l.VerificationState != VerificationClaimed {
		return false
	}
	return l.ClaimedAt == nil || now.Sub(*l.ClaimedAt) > lease
}

// Frozen is true once the bundle has been handed to (or scored by) the oracle.
func (l *Loan) Frozen() bool {
	return l.VerificationState == VerificationClaimed || l.VerificationState == VerificationDone
}

// Verdict is the structured result the oracle returns for a bundle.
type Verdict struct {
	ProductName     string   `json:"productName"`
	ConfidenceScore int      `json:"confidenceScore"`
	Summary         string   `json:"summary"`
	ExtractedAmount *float64 `json:"extractedAmount,omitempty"`
	AssetType       string   `json:"assetType"`
	IsHandwritten   bool     `json:"isHandwritten"`
	IsDuplicate     bool     `json:"isDuplicate"`
}

// BillValue wraps e for a bill_data column update.
func BillValue(e *FileEntry) datatypes.JSONType[*FileEntry] { return datatypes.NewJSONType(e) }
