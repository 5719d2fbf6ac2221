package verification

import (
	"context"
	"time"

	"collateral-evidence/internal/domain/loan"

	"github.com/sirupsen/logrus"
)

// Reconciler writes a verification Result onto its loan.
type Reconciler struct {
	loans         loan.Repository
	lowConfidence int
	log           *logrus.Logger
	now           func() time.Time
}

func NewReconciler(loans loan.Repository, lowConfidence int, log *logrus.Logger) *Reconciler {
	return &Reconciler{loans: loans, lowConfidence: lowConfidence, log: log, now: time.Now}
}

// Apply parks the loan for human review on success, or back in ai_pending with the
// diagnostic on failure. Scores never reject or approve a loan on their own.
func (r *Reconciler) Apply(ctx context.Context, loanID string, res Result) error {
	fields := failureFields(res.Diagnostic)
	if res.OK() {
		fields = verdictFields(res.Verdict, r.now().UTC())
		if res.Verdict.ConfidenceScore < r.lowConfidence {
			r.log.WithFields(logrus.Fields{
				"loan_id": loanID,
				"score":   res.Verdict.ConfidenceScore,
			}).Warn("low confidence verdict routed to human review")
		}
	}

	applied, err := r.loans.ResolveVerification(ctx, loanID, fields)
	if err != nil {
		return err
	}
	if !applied {
		// the loan was rejected or resolved by someone else meanwhile
		r.log.WithField("loan_id", loanID).Warn("verification result dropped: claim no longer held")
		return nil
	}
	r.log.WithFields(logrus.Fields{"loan_id": loanID, "status": fields["status"]}).Info("verification reconciled")
	return nil
}

func verdictFields(v *loan.Verdict, at time.Time) loan.Fields {
	return loan.Fields{
		"status":             loan.StatusPending,
		"verification_state": loan.VerificationDone,
		"product_name":       v.ProductName,
		"confidence_score":   v.ConfidenceScore,
		"summary":            v.Summary,
		"extracted_amount":   v.ExtractedAmount,
		"asset_type":         v.AssetType,
		"is_handwritten":     v.IsHandwritten,
		"is_duplicate":       v.IsDuplicate,
		"verified_at":        at,
	}
}

func failureFields(diagnostic string) loan.Fields {
	return loan.Fields{
		"status":             loan.StatusAIPending,
		"verification_state": loan.VerificationFailed,
		"summary":            diagnostic,
	}
}
