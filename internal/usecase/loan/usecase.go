package loan

import (
	"context"
	"errors"

	"collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/domain/rejection"
)

var ErrInvalidID = errors.New("invalid id")

// Usecase serves the read side: loan records and the rejection side log.
type Usecase struct {
	repo       loan.Repository
	rejections rejection.Repository
}

func NewUsecase(r loan.Repository, rej rejection.Repository) *Usecase {
	return &Usecase{repo: r, rejections: rej}
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	if loanID == "" || len(loanID) > 64 {
		return nil, ErrInvalidID
	}
	l, err := u.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

func (u *Usecase) Rejections(ctx context.Context, userID string) ([]RejectionDTO, error) {
	if userID == "" || len(userID) > 64 {
		return nil, ErrInvalidID
	}
	rs, err := u.rejections.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]RejectionDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, RejectionDTO{
			RejectionID: r.RejectionID,
			LoanID:      r.LoanID,
			FilePath:    r.FilePath,
			Reason:      r.Reason,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func fileDTO(e loan.FileEntry) FileDTO {
	return FileDTO{Path: e.Path, Location: e.Location, Timestamp: e.Timestamp, ContentType: e.ContentType}
}

func toDTO(l *loan.Loan) *LoanDTO {
	dto := &LoanDTO{
		LoanID:            l.LoanID,
		UserID:            l.UserID,
		Status:            string(l.Status),
		VerificationState: string(l.VerificationState),
		BorrowerName:      l.BorrowerName,
		RequestedAmount:   l.RequestedAmount,
		DeclaredAssetType: l.DeclaredAssetType,
		RejectionReason:   l.RejectionReason,
		Assets:            make([]FileDTO, 0, len(l.Assets())),
		CreatedAt:         l.CreatedAt,
		LastUpdated:       l.LastUpdated,
	}
	if b := l.Bill(); b != nil {
		f := fileDTO(*b)
		dto.Bill = &f
	}
	for _, a := range l.Assets() {
		dto.Assets = append(dto.Assets, fileDTO(a))
	}

	switch {
	case l.ConfidenceScore != nil:
		dto.Verdict = &VerdictDTO{
			ProductName:     l.ProductName,
			ConfidenceScore: *l.ConfidenceScore,
			Summary:         l.Summary,
			ExtractedAmount: l.ExtractedAmount,
			AssetType:       l.AssetType,
			IsHandwritten:   l.IsHandwritten != nil && *l.IsHandwritten,
			IsDuplicate:     l.IsDuplicate != nil && *l.IsDuplicate,
			VerifiedAt:      l.VerifiedAt,
		}
	case l.Summary != "":
		// diagnostic of a failed verification
		dto.Note = l.Summary
	}
	return dto
}
