package domain

import (
	"time"

	"github.com/eastcourt/residency/internal/platform/errors"
)

// ScheduleStatus is the lifecycle state of a leader schedule row.
type ScheduleStatus string

const (
	// ScheduleDraft is the state the scheduler writes.
	ScheduleDraft ScheduleStatus = "draft"
	// ScheduleConditional marks a schedule pending final confirmation.
	ScheduleConditional ScheduleStatus = "conditional"
	// ScheduleConfirmed is terminal; confirmed years cannot be recalculated.
	ScheduleConfirmed ScheduleStatus = "confirmed"
)

// ParseScheduleStatus validates a raw status string.
func ParseScheduleStatus(raw string) (ScheduleStatus, error) {
	switch ScheduleStatus(raw) {
	case ScheduleDraft, ScheduleConditional, ScheduleConfirmed:
		return ScheduleStatus(raw), nil
	default:
		return "", errors.WithMetadata(errors.CodeStatusInvalid,
			"unknown schedule status "+raw,
			map[string]string{"Status": raw})
	}
}

// scheduleRank orders statuses along the forward-only lifecycle.
func scheduleRank(s ScheduleStatus) int {
	switch s {
	case ScheduleDraft:
		return 0
	case ScheduleConditional:
		return 1
	case ScheduleConfirmed:
		return 2
	default:
		return -1
	}
}

// ValidateScheduleTransition enforces the forward-only lifecycle
// draft -> conditional -> confirmed. Skipping conditional is a forward move
// and is allowed; reopening is not.
func ValidateScheduleTransition(from, to ScheduleStatus) error {
	fromRank, toRank := scheduleRank(from), scheduleRank(to)
	if fromRank < 0 || toRank < 0 || toRank <= fromRank {
		return errors.WithMetadata(errors.CodeInvalidTransition,
			"schedule cannot move from "+string(from)+" to "+string(to),
			map[string]string{"FromStatus": string(from), "ToStatus": string(to)})
	}
	return nil
}

// LeaderSchedule is the persisted assignment for one year.
type LeaderSchedule struct {
	ID                 string
	Year               int
	PrimaryHouseholdID string
	BackupHouseholdID  string
	Status             ScheduleStatus
	// Reason is the generated or admin-edited rationale for the assignment.
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
