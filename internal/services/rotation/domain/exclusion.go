package domain

import "time"

// ExclusionCode identifies one reason a household is removed from the
// candidate pool.
type ExclusionCode string

const (
	// ExclusionRecentMoveIn (code A) excludes households that moved in
	// within the recency window.
	ExclusionRecentMoveIn ExclusionCode = "A"
	// ExclusionPriorService (code B) excludes households with any recorded
	// leadership service.
	ExclusionPriorService ExclusionCode = "B"
	// ExclusionApprovedExemption (code C) excludes households with an
	// approved exemption for the target year.
	ExclusionApprovedExemption ExclusionCode = "C"
)

// moveInRecencyWindow is how long after move-in a household stays excluded
// under code A.
const moveInRecencyWindowMonths = 12

// ComputeExclusions returns the exclusion codes that apply to one household,
// in A/B/C order. An empty result means the household is a candidate.
//
// Recency (code A) is evaluated against the wall-clock now passed in, not
// against the target scheduling year. A nil move-in date never triggers
// code A. Code B fires on any prior service, however old.
func ComputeExclusions(h Household, approved map[string]bool, now time.Time) []ExclusionCode {
	var codes []ExclusionCode

	if h.MoveInDate != nil {
		cutoff := now.AddDate(0, -moveInRecencyWindowMonths, 0)
		if h.MoveInDate.After(cutoff) {
			codes = append(codes, ExclusionRecentMoveIn)
		}
	}
	if h.LeaderHistoryCount > 0 {
		codes = append(codes, ExclusionPriorService)
	}
	if approved[h.ID] {
		codes = append(codes, ExclusionApprovedExemption)
	}
	return codes
}
