// Package scheduler computes and persists the annual leadership rotation.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/platform/id"
	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// minYear bounds obviously bogus target years.
const minYear = 2000

var tracer = otel.Tracer("residency/rotation/scheduler")

// PolicyReader supplies the executable policy version.
type PolicyReader interface {
	Current(ctx context.Context) (domain.RotationPolicy, error)
}

// ExemptionReader supplies the approved exemption set for a year.
type ExemptionReader interface {
	ListApproved(ctx context.Context, year int) (map[string]bool, error)
}

// Service orchestrates rotation computation and schedule lifecycle.
type Service struct {
	directory   storage.HouseholdDirectory
	policies    PolicyReader
	exemptions  ExemptionReader
	schedules   storage.ScheduleStore
	changelog   *changelog.Appender
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService wires the scheduler to its collaborators.
func NewService(
	directory storage.HouseholdDirectory,
	policies PolicyReader,
	exemptions ExemptionReader,
	schedules storage.ScheduleStore,
	appender *changelog.Appender,
) *Service {
	return &Service{
		directory:   directory,
		policies:    policies,
		exemptions:  exemptions,
		schedules:   schedules,
		changelog:   appender,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Computation is the outcome of one rotation computation, before any
// persistence.
type Computation struct {
	Year       int
	Policy     domain.RotationPolicy
	Selection  domain.Selection
	ComputedAt time.Time
}

// Compute derives the assignment for a year from the current directory,
// policy, prior schedule, and approved exemptions. It performs no writes.
func (s *Service) Compute(ctx context.Context, year int) (Computation, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Compute",
		trace.WithAttributes(attribute.Int("rotation.year", year)))
	defer span.End()

	if err := s.checkConfigured(); err != nil {
		return Computation{}, err
	}
	if year < minYear {
		return Computation{}, errors.WithMetadata(errors.CodeYearInvalid,
			fmt.Sprintf("year %d is out of range", year),
			map[string]string{"Year": strconv.Itoa(year)})
	}

	// The policy gate comes first: without a published version the
	// scheduler refuses to run rather than assuming defaults.
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return Computation{}, err
	}

	households, err := s.directory.ListAll(ctx)
	if err != nil {
		return Computation{}, fmt.Errorf("list households: %w", err)
	}

	approved, err := s.exemptions.ListApproved(ctx, year)
	if err != nil {
		return Computation{}, fmt.Errorf("list approved exemptions: %w", err)
	}

	priorPrimaryID := ""
	prior, err := s.schedules.GetScheduleByYear(ctx, year-1)
	switch {
	case err == nil:
		priorPrimaryID = prior.PrimaryHouseholdID
	case stderrors.Is(err, storage.ErrNotFound):
		// First scheduled year.
	default:
		return Computation{}, fmt.Errorf("load prior schedule: %w", err)
	}

	selection, err := domain.SelectLeaders(households, approved, priorPrimaryID, s.now())
	if err != nil {
		return Computation{}, err
	}

	return Computation{
		Year:       year,
		Policy:     policy,
		Selection:  selection,
		ComputedAt: s.now(),
	}, nil
}

// CalculateNextYear computes and persists the first draft schedule for a
// year with no existing row.
func (s *Service) CalculateNextYear(ctx context.Context, year int) (domain.LeaderSchedule, error) {
	ctx, span := tracer.Start(ctx, "scheduler.CalculateNextYear",
		trace.WithAttributes(attribute.Int("rotation.year", year)))
	defer span.End()

	result, err := s.Compute(ctx, year)
	if err != nil {
		return domain.LeaderSchedule{}, err
	}

	schedule, err := s.draftSchedule(result)
	if err != nil {
		return domain.LeaderSchedule{}, err
	}
	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		if stderrors.Is(err, storage.ErrAlreadyExists) {
			return domain.LeaderSchedule{}, errors.WithMetadata(errors.CodeScheduleExists,
				fmt.Sprintf("schedule for %d already exists", year),
				map[string]string{"Year": strconv.Itoa(year)})
		}
		return domain.LeaderSchedule{}, fmt.Errorf("persist schedule: %w", err)
	}

	s.changelog.Append(ctx,
		fmt.Sprintf("rotation for %d calculated: primary %s, backup %s",
			year, schedule.PrimaryHouseholdID, schedule.BackupHouseholdID),
		"rotation", schedule.ID)
	return schedule, nil
}

// RecalculateResult reports the outcome of an idempotent recomputation.
type RecalculateResult struct {
	Schedule       domain.LeaderSchedule
	CandidateCount int
}

// Recalculate recomputes a year and replaces its unconfirmed row in one
// atomic upsert keyed by year. A confirmed year is immutable.
func (s *Service) Recalculate(ctx context.Context, year int) (RecalculateResult, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Recalculate",
		trace.WithAttributes(attribute.Int("rotation.year", year)))
	defer span.End()

	result, err := s.Compute(ctx, year)
	if err != nil {
		return RecalculateResult{}, err
	}

	schedule, err := s.draftSchedule(result)
	if err != nil {
		return RecalculateResult{}, err
	}
	if err := s.schedules.UpsertDraftSchedule(ctx, schedule); err != nil {
		if stderrors.Is(err, storage.ErrStatusConflict) {
			return RecalculateResult{}, errors.WithMetadata(errors.CodeConfirmedScheduleImmutable,
				fmt.Sprintf("schedule for %d is confirmed", year),
				map[string]string{"Year": strconv.Itoa(year)})
		}
		return RecalculateResult{}, fmt.Errorf("persist schedule: %w", err)
	}

	// The upsert may have kept the existing row id; reload for callers.
	persisted, err := s.schedules.GetScheduleByYear(ctx, year)
	if err != nil {
		return RecalculateResult{}, fmt.Errorf("reload schedule: %w", err)
	}

	s.changelog.Append(ctx,
		fmt.Sprintf("rotation for %d recalculated: primary %s, backup %s",
			year, persisted.PrimaryHouseholdID, persisted.BackupHouseholdID),
		"rotation", persisted.ID)
	return RecalculateResult{
		Schedule:       persisted,
		CandidateCount: len(result.Selection.Candidates),
	}, nil
}

// Confirm advances a schedule along the forward-only lifecycle.
func (s *Service) Confirm(ctx context.Context, scheduleID string, newStatus domain.ScheduleStatus) (domain.LeaderSchedule, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Confirm")
	defer span.End()

	if err := s.checkConfigured(); err != nil {
		return domain.LeaderSchedule{}, err
	}
	if newStatus != domain.ScheduleConditional && newStatus != domain.ScheduleConfirmed {
		return domain.LeaderSchedule{}, errors.WithMetadata(errors.CodeStatusInvalid,
			"confirm accepts conditional or confirmed, got "+string(newStatus),
			map[string]string{"Status": string(newStatus)})
	}

	current, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.LeaderSchedule{}, errors.New(errors.CodeNotFound, "schedule "+scheduleID+" not found")
		}
		return domain.LeaderSchedule{}, fmt.Errorf("load schedule: %w", err)
	}
	if err := domain.ValidateScheduleTransition(current.Status, newStatus); err != nil {
		return domain.LeaderSchedule{}, err
	}

	err = s.schedules.TransitionScheduleStatus(ctx, scheduleID, current.Status, newStatus, s.now())
	if err != nil {
		if stderrors.Is(err, storage.ErrStatusConflict) {
			// A concurrent admin moved the row first.
			return domain.LeaderSchedule{}, errors.WithMetadata(errors.CodeInvalidTransition,
				"schedule "+scheduleID+" changed status concurrently",
				map[string]string{"FromStatus": string(current.Status), "ToStatus": string(newStatus)})
		}
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.LeaderSchedule{}, errors.New(errors.CodeNotFound, "schedule "+scheduleID+" not found")
		}
		return domain.LeaderSchedule{}, fmt.Errorf("transition schedule: %w", err)
	}

	current.Status = newStatus
	s.changelog.Append(ctx,
		fmt.Sprintf("rotation status changed to %s", newStatus),
		"rotation", scheduleID)
	return current, nil
}

func (s *Service) draftSchedule(result Computation) (domain.LeaderSchedule, error) {
	scheduleID, err := s.newID()
	if err != nil {
		return domain.LeaderSchedule{}, fmt.Errorf("generate schedule id: %w", err)
	}
	return domain.LeaderSchedule{
		ID:                 scheduleID,
		Year:               result.Year,
		PrimaryHouseholdID: result.Selection.PrimaryID,
		BackupHouseholdID:  result.Selection.BackupID,
		Status:             domain.ScheduleDraft,
		Reason:             result.Selection.Rationale,
		CreatedAt:          result.ComputedAt,
		UpdatedAt:          result.ComputedAt,
	}, nil
}

func (s *Service) checkConfigured() error {
	if s == nil || s.directory == nil || s.policies == nil || s.exemptions == nil || s.schedules == nil {
		return fmt.Errorf("scheduler is not fully configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Service) newID() (string, error) {
	if s.idGenerator == nil {
		return id.NewID()
	}
	return s.idGenerator()
}
