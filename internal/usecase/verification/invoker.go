package verification

import (
	"context"
	"fmt"
	"time"

	"collateral-evidence/internal/domain/loan"
	"collateral-evidence/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one oracle call: a verdict, or a diagnostic explaining why
// there is none.
type Result struct {
	Verdict    *loan.Verdict
	Diagnostic string
}

func (r Result) OK() bool { return r.Verdict != nil }

func failure(format string, args ...any) Result {
	return Result{Diagnostic: fmt.Sprintf(format, args...)}
}

type Invoker struct {
	oracle  Oracle
	uris    URIResolver
	timeout time.Duration
	log     *logrus.Logger
}

func NewInvoker(o Oracle, uris URIResolver, timeout time.Duration, log *logrus.Logger) *Invoker {
	return &Invoker{oracle: o, uris: uris, timeout: timeout, log: log}
}

// ClaimLease is how long a verification claim stays live: the oracle budget plus the
// reconcile write after it. An older claim belongs to a run that never finished.
func ClaimLease(oracleTimeout time.Duration) time.Duration { return oracleTimeout + reconcileBudget }

// Verify sends b to the oracle within the invocation budget, shortened when ctx ends
// sooner. It never returns an error: transport, timeout and parse failures come back
// as a Result with a Diagnostic.
func (i *Invoker) Verify(ctx context.Context, b Bundle) Result {
	deadline := time.Now().Add(i.timeout)
	// the reconcile write has to fit before the caller's deadline too
	if dl, ok := ctx.Deadline(); ok && dl.Add(-reconcileBudget).Before(deadline) {
		deadline = dl.Add(-reconcileBudget)
	}
	if !time.Now().Before(deadline) {
		metrics.OracleCalls.WithLabelValues("request_error").Inc()
		return failure("AI verification skipped: deadline leaves no time for the oracle call")
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := buildRequest(ctx, i.uris, b)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("request_error").Inc()
		return failure("verification request not built: %v", err)
	}

	start := time.Now()
	raw, err := i.oracle.Generate(ctx, req)
	metrics.OracleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleCalls.WithLabelValues("transport_error").Inc()
		i.log.WithFields(logrus.Fields{"loan_id": b.LoanID, "error": err}).Warn("oracle call failed")
		return failure("AI verification failed: %v", err)
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("parse_error").Inc()
		i.log.WithFields(logrus.Fields{"loan_id": b.LoanID, "error": err}).Warn("oracle response rejected")
		return failure("AI verification returned an unreadable response: %v", err)
	}
	metrics.OracleCalls.WithLabelValues("ok").Inc()
	return Result{Verdict: v}
}
