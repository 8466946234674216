package domain

import (
	"time"

	"github.com/eastcourt/residency/internal/platform/errors"
)

// ExemptionStatus is the lifecycle state of an exemption request.
type ExemptionStatus string

const (
	// ExemptionPending awaits an admin decision.
	ExemptionPending ExemptionStatus = "pending"
	// ExemptionApproved removes the household from candidacy for the year.
	ExemptionApproved ExemptionStatus = "approved"
	// ExemptionRejected leaves the household eligible; the household may
	// submit a new request version.
	ExemptionRejected ExemptionStatus = "rejected"
)

// ValidateExemptionDecision enforces the single pending -> approved|rejected
// transition. Requests are decided exactly once and never deleted.
func ValidateExemptionDecision(from, to ExemptionStatus) error {
	if from == ExemptionPending && (to == ExemptionApproved || to == ExemptionRejected) {
		return nil
	}
	return errors.WithMetadata(errors.CodeInvalidTransition,
		"exemption cannot move from "+string(from)+" to "+string(to),
		map[string]string{"FromStatus": string(from), "ToStatus": string(to)})
}

// ExemptionRequest is one year-scoped request by a household to be excluded
// from candidacy. Resubmission after a rejection creates a new row with an
// incremented version; history is retained for audit.
type ExemptionRequest struct {
	ID          string
	HouseholdID string
	Year        int
	Version     int
	Reason      string
	Status      ExemptionStatus
	// DecidedBy and DecidedAt are set once, on approval or rejection.
	DecidedBy string
	DecidedAt *time.Time
	// RejectReason holds the admin's note for a rejection.
	RejectReason string
	CreatedAt    time.Time
}
