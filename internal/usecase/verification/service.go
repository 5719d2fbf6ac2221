package verification

import (
	"context"
	"fmt"
	"time"

	"collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/domain/uow"

	"github.com/sirupsen/logrus"
)

// reconcileBudget bounds the final write after the invocation budget is spent.
const reconcileBudget = 15 * time.Second

// Service runs a claimed bundle through the oracle and reconciles the result.
type Service struct {
	invoker    *Invoker
	reconciler *Reconciler
	uow        uow.UnitOfWork
	bundleSize int
	lease      time.Duration
	log        *logrus.Logger
	now        func() time.Time
}

func NewService(inv *Invoker, rec *Reconciler, tx uow.UnitOfWork, bundleSize int, log *logrus.Logger) *Service {
	return &Service{
		invoker:    inv,
		reconciler: rec,
		uow:        tx,
		bundleSize: bundleSize,
		lease:      ClaimLease(inv.timeout),
		log:        log,
		now:        time.Now,
	}
}

// Run must only be called by the holder of the loan's verification claim.
func (s *Service) Run(ctx context.Context, l *loan.Loan) Result {
	b, err := BundleFrom(l, s.bundleSize)
	var res Result
	if err != nil {
		res = failure("%v", err)
	} else {
		res = s.invoker.Verify(ctx, b)
	}

	// the invocation may have used up ctx; the result must still land
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileBudget)
	defer cancel()
	if err := s.reconciler.Apply(rctx, l.LoanID, res); err != nil {
		s.log.WithFields(logrus.Fields{"loan_id": l.LoanID, "error": err}).Error("reconcile failed")
	}
	return res
}

// Retry re-claims a loan whose previous verification failed, or whose claim expired
// without a verdict, and runs it again.
func (s *Service) Retry(ctx context.Context, loanID string) (Result, error) {
	var claimed *loan.Loan
	now := s.now().UTC()
	err := s.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		retryable := l.VerificationState == loan.VerificationFailed || l.ClaimExpired(now, s.lease)
		if l.Rejected() || !retryable || !l.BundleReady(s.bundleSize) {
			return fmt.Errorf("%w: status=%s verification=%s", loan.ErrNotRetryable, l.Status, l.VerificationState)
		}
		ok, err := r.Loans.ClaimVerification(ctx, loanID, now, s.lease)
		if err != nil {
			return err
		}
		if !ok {
			return loan.ErrVerificationClaimed
		}
		claimed = l
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.log.WithField("loan_id", loanID).Info("verification retry claimed")
	return s.Run(ctx, claimed), nil
}
