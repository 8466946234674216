package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eastcourt/residency/internal/platform/errors"
)

// Selection is the outcome of ranking the candidate pool for one year.
type Selection struct {
	PrimaryID string
	BackupID  string
	// ExcludedBy has one entry per directory household; an empty slice
	// means the household was a candidate.
	ExcludedBy map[string][]ExclusionCode
	// Candidates is the ranked eligible pool, primary first.
	Candidates []Household
	// Rationale is a human-readable summary of the selection basis.
	Rationale string
}

// SelectLeaders computes the exclusion map over all households, ranks the
// remaining pool, and picks the primary and backup assignments.
//
// Ranking is ascending move-in date with nil dates sorting last, then the
// prior-year-primary deprioritization, then lexicographic household id. The
// prior-primary comparison is inert in practice: last year's primary carries
// service history and is already excluded under code B. It is kept in the
// ordering so reviving a bounded-recency code B keeps the intended ranking.
func SelectLeaders(households []Household, approved map[string]bool, priorPrimaryID string, now time.Time) (Selection, error) {
	excludedBy := make(map[string][]ExclusionCode, len(households))
	var pool []Household
	for _, h := range households {
		codes := ComputeExclusions(h, approved, now)
		excludedBy[h.ID] = codes
		if len(codes) == 0 {
			pool = append(pool, h)
		}
	}

	if len(pool) < 2 {
		return Selection{}, errors.WithMetadata(
			errors.CodeInsufficientCandidates,
			fmt.Sprintf("candidate pool has %d households, need 2", len(pool)),
			map[string]string{"CandidateCount": strconv.Itoa(len(pool))},
		)
	}

	slices.SortStableFunc(pool, func(a, b Household) int {
		if c := compareMoveIn(a.MoveInDate, b.MoveInDate); c != 0 {
			return c
		}
		if c := comparePriorPrimary(a.ID, b.ID, priorPrimaryID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return Selection{
		PrimaryID:  pool[0].ID,
		BackupID:   pool[1].ID,
		ExcludedBy: excludedBy,
		Candidates: pool,
		Rationale:  rationale(excludedBy, len(households)),
	}, nil
}

// compareMoveIn orders earlier move-in dates first; a nil date is treated as
// infinitely recent and sorts last.
func compareMoveIn(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}

// comparePriorPrimary pushes last year's primary household behind its peer.
func comparePriorPrimary(aID, bID, priorPrimaryID string) int {
	if priorPrimaryID == "" || aID == bID {
		return 0
	}
	switch priorPrimaryID {
	case aID:
		return 1
	case bID:
		return -1
	default:
		return 0
	}
}

func rationale(excludedBy map[string][]ExclusionCode, total int) string {
	counts := map[ExclusionCode]int{}
	excluded := 0
	for _, codes := range excludedBy {
		if len(codes) > 0 {
			excluded++
		}
		for _, code := range codes {
			counts[code]++
		}
	}
	return fmt.Sprintf(
		"oldest-tenure selection; excluded %d of %d households (A:%d B:%d C:%d)",
		excluded, total,
		counts[ExclusionRecentMoveIn],
		counts[ExclusionPriorService],
		counts[ExclusionApprovedExemption],
	)
}
