package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HouseholdReport explains why one household is or is not a candidate.
type HouseholdReport struct {
	HouseholdID        string
	MoveInDate         *time.Time
	LeaderHistoryCount int
	Codes              []domain.ExclusionCode
	IsCandidate        bool
}

// Explanation is the admin-facing transparency report for one year.
type Explanation struct {
	Year       int
	Households []HouseholdReport
	// Schedule is nil when the year has no persisted row.
	Schedule *domain.LeaderSchedule
}

// Explain recomputes the exclusion codes for every household and pairs them
// with the persisted schedule for the year, if any. It mutates nothing and
// shares the exclusion predicate with Compute, so the two can never drift.
func (s *Service) Explain(ctx context.Context, year int) (Explanation, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Explain",
		trace.WithAttributes(attribute.Int("rotation.year", year)))
	defer span.End()

	if err := s.checkConfigured(); err != nil {
		return Explanation{}, err
	}
	if year < minYear {
		return Explanation{}, errors.WithMetadata(errors.CodeYearInvalid,
			fmt.Sprintf("year %d is out of range", year),
			map[string]string{"Year": strconv.Itoa(year)})
	}

	households, err := s.directory.ListAll(ctx)
	if err != nil {
		return Explanation{}, fmt.Errorf("list households: %w", err)
	}
	approved, err := s.exemptions.ListApproved(ctx, year)
	if err != nil {
		return Explanation{}, fmt.Errorf("list approved exemptions: %w", err)
	}

	now := s.now()
	reports := make([]HouseholdReport, 0, len(households))
	for _, h := range households {
		codes := domain.ComputeExclusions(h, approved, now)
		reports = append(reports, HouseholdReport{
			HouseholdID:        h.ID,
			MoveInDate:         h.MoveInDate,
			LeaderHistoryCount: h.LeaderHistoryCount,
			Codes:              codes,
			IsCandidate:        len(codes) == 0,
		})
	}
	slices.SortFunc(reports, func(a, b HouseholdReport) int {
		switch {
		case a.HouseholdID < b.HouseholdID:
			return -1
		case a.HouseholdID > b.HouseholdID:
			return 1
		default:
			return 0
		}
	})

	explanation := Explanation{Year: year, Households: reports}
	schedule, err := s.schedules.GetScheduleByYear(ctx, year)
	switch {
	case err == nil:
		explanation.Schedule = &schedule
	case stderrors.Is(err, storage.ErrNotFound):
		// No row yet; the report still explains the pool.
	default:
		return Explanation{}, fmt.Errorf("load schedule: %w", err)
	}
	return explanation, nil
}
