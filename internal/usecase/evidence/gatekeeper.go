package evidence

import (
	"time"

	"collateral-evidence/internal/usecase/verification"
)

// Rejection reasons written to loans.rejection_reason.
const (
	ReasonInvalidTimestamp = "invalid timestamp format"
	ReasonPhotoExpired     = "photo expired"
	ReasonGPSMissing       = "GPS missing"
	ReasonLocationMismatch = "location mismatch"
)

// ValidationError is a terminal validation failure; it rejects the loan.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func reject(reason string) *ValidationError { return &ValidationError{Reason: reason} }

// Policy carries the tunables of the reference evidence policy.
type Policy struct {
	BundleSize     int
	MaxPhotoAge    time.Duration
	GeofenceMeters float64
	// Bills are exempt from the expiry window; this decides whether they still need GPS.
	BillRequireGPS bool
	// ClaimLease is how long a verification claim blocks other runs.
	ClaimLease time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		BundleSize:     3,
		MaxPhotoAge:    15 * time.Minute,
		GeofenceMeters: 200,
		ClaimLease:     verification.ClaimLease(5 * time.Minute),
	}
}

type Gatekeeper struct{ policy Policy }

func NewGatekeeper(p Policy) *Gatekeeper { return &Gatekeeper{policy: p} }

// Check validates one submission against the server clock and returns its capture time.
func (g *Gatekeeper) Check(sub Submission, now time.Time) (time.Time, error) {
	captured, err := ParseTimestamp(sub.RawTime)
	if err != nil {
		return time.Time{}, reject(ReasonInvalidTimestamp)
	}
	if sub.IsBill {
		if g.policy.BillRequireGPS && !sub.HasLocation() {
			return captured, reject(ReasonGPSMissing)
		}
		return captured, nil
	}

	elapsed := now.Sub(captured)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	if elapsed > g.policy.MaxPhotoAge {
		return captured, reject(ReasonPhotoExpired)
	}
	if !sub.HasLocation() {
		return captured, reject(ReasonGPSMissing)
	}
	return captured, nil
}
