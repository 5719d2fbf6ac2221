package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/domain/rejection"
	"collateral-evidence/internal/domain/uow"
	"collateral-evidence/internal/infrastructure/metrics"
	"collateral-evidence/internal/usecase/verification"
	"collateral-evidence/pkg/id"

	"github.com/sirupsen/logrus"
)

type Outcome string

const (
	OutcomeIgnored            Outcome = "ignored"
	OutcomeRejected           Outcome = "rejected"
	OutcomeAlreadyRejected    Outcome = "already_rejected"
	OutcomeRecorded           Outcome = "recorded"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeBundleClosed       Outcome = "bundle_closed"
	OutcomeVerified           Outcome = "verified"
	OutcomeVerificationFailed Outcome = "verification_failed"
)

// Retryable reports whether re-delivering the same event may make progress.
func (o Outcome) Retryable() bool { return o == OutcomeVerificationFailed }

// Verifier runs a claimed, complete bundle through the oracle and reconciles it.
type Verifier interface {
	Run(ctx context.Context, l *loan.Loan) verification.Result
}

type Pipeline struct {
	uow      uow.UnitOfWork
	gate     *Gatekeeper
	policy   Policy
	verifier Verifier
	log      *logrus.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

// WithClock overrides the server clock used by the gatekeeper.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func NewPipeline(tx uow.UnitOfWork, policy Policy, v Verifier, log *logrus.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		uow:      tx,
		gate:     NewGatekeeper(policy),
		policy:   policy,
		verifier: v,
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs one triggering event to completion. Validation failures are resolved
// into the loan record; only store failures are returned.
func (p *Pipeline) Process(ctx context.Context, ev StorageEvent) (Outcome, error) {
	outcome, err := p.process(ctx, ev)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return outcome, err
	}
	metrics.PipelineRuns.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

func (p *Pipeline) process(ctx context.Context, ev StorageEvent) (Outcome, error) {
	sub, err := Normalize(ev)
	if err != nil {
		p.discard(ctx, sub, err)
		return OutcomeIgnored, nil
	}
	log := p.log.WithFields(logrus.Fields{"loan_id": sub.LoanID, "path": sub.Path, "bill": sub.IsBill})
	now := p.now().UTC()

	var (
		outcome Outcome
		claimed *loan.Loan
		foreign bool
	)
	err = p.uow.WithinTx(ctx, func(r uow.Repos) error {
		claimed, foreign = nil, false
		if err := r.Loans.UpsertMerge(ctx, loan.New(sub.LoanID, sub.UserID), sub.mergeFields()); err != nil {
			return err
		}
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, sub.LoanID)
		if err != nil {
			return err
		}
		if l.UserID != sub.UserID {
			foreign = true
			return nil
		}
		if l.Rejected() {
			outcome = OutcomeAlreadyRejected
			return nil
		}

		if l.HasPath(sub.Path) {
			// re-delivery: evidence already recorded, only readiness is re-evaluated
			outcome = OutcomeDuplicate
		} else {
			outcome, err = p.record(ctx, r, l, sub, now)
			if err != nil || outcome != OutcomeRecorded {
				return err
			}
		}

		fresh, err := r.Loans.GetByLoanID(ctx, sub.LoanID)
		if err != nil {
			return err
		}
		if !fresh.BundleReady(p.policy.BundleSize) || !fresh.Claimable(now, p.policy.ClaimLease) {
			return nil
		}
		ok, err := r.Loans.ClaimVerification(ctx, sub.LoanID, now, p.policy.ClaimLease)
		if err != nil {
			return err
		}
		if ok {
			claimed = fresh
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if foreign {
		p.discard(ctx, sub, fmt.Errorf("%w: %s", ErrOwnerMismatch, sub.LoanID))
		return OutcomeIgnored, nil
	}

	switch outcome {
	case OutcomeAlreadyRejected:
		log.Info("loan already rejected; submission ignored")
	case OutcomeBundleClosed:
		log.Info("bundle closed; submission ignored")
	}
	if claimed == nil {
		return outcome, nil
	}

	// the evidence is committed; an abort from here on leaves the loan ai_pending
	log.Info("bundle complete; invoking verification")
	if res := p.verifier.Run(ctx, claimed); !res.OK() {
		return OutcomeVerificationFailed, nil
	}
	return OutcomeVerified, nil
}

// record gatekeeps sub against l and writes it. l is locked by the caller.
func (p *Pipeline) record(ctx context.Context, r uow.Repos, l *loan.Loan, sub Submission, now time.Time) (Outcome, error) {
	if l.Frozen() || (!sub.IsBill && len(l.Assets()) >= p.policy.BundleSize) {
		return OutcomeBundleClosed, nil
	}

	captured, err := p.gate.Check(sub, now)
	if err == nil && !sub.IsBill && sub.HasLocation() {
		err = CheckGeofence(l.Assets(), *sub.Lat, *sub.Lng, p.policy.GeofenceMeters)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return OutcomeRejected, p.rejectLoan(ctx, r, sub, verr.Reason)
	}

	e := sub.entry(captured)
	if sub.IsBill {
		return OutcomeRecorded, r.Loans.Update(ctx, sub.LoanID, loan.Fields{"bill_data": loan.BillValue(&e)})
	}
	return OutcomeRecorded, r.Loans.AppendAsset(ctx, sub.LoanID, e)
}

func (p *Pipeline) rejectLoan(ctx context.Context, r uow.Repos, sub Submission, reason string) error {
	p.log.WithFields(logrus.Fields{"loan_id": sub.LoanID, "path": sub.Path, "reason": reason}).Warn("submission failed validation; rejecting loan")
	metrics.LoanRejections.WithLabelValues(reason).Inc()
	return r.Loans.Update(ctx, sub.LoanID, loan.Fields{
		"status":           loan.StatusRejected,
		"rejection_reason": reason,
	})
}

// discard logs an input rejection. With a known user the reason also goes to the
// rejection side log, since there may be no loan to carry it.
func (p *Pipeline) discard(ctx context.Context, sub Submission, cause error) {
	log := p.log.WithFields(logrus.Fields{"path": sub.Path, "user_id": sub.UserID, "loan_id": sub.LoanID, "reason": cause.Error()})
	log.Warn("submission discarded")
	if sub.UserID == "" {
		return
	}
	err := p.uow.WithinTx(ctx, func(r uow.Repos) error {
		return r.Rejections.Create(ctx, &rejection.Rejection{
			RejectionID: id.NewID32(),
			UserID:      sub.UserID,
			LoanID:      sub.LoanID,
			FilePath:    sub.Path,
			Reason:      cause.Error(),
		})
	})
	if err != nil {
		log.WithError(err).Error("rejection record not written")
	}
}
