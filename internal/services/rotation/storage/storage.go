// Package storage defines persistence contracts for rotation state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrStatusConflict indicates a guarded write found the record in a status
// that does not allow the change.
var ErrStatusConflict = errors.New("record status does not allow this change")

// ChangelogEntry is one append-only audit line describing an admin-visible
// change.
type ChangelogEntry struct {
	ID         int64
	Summary    string
	EntityType string
	// EntityID is empty when the entry is not tied to a single record.
	EntityID  string
	CreatedAt time.Time
}

// HouseholdDirectory reads the portal's household directory. The rotation
// core never writes through this interface.
type HouseholdDirectory interface {
	ListAll(ctx context.Context) ([]domain.Household, error)
}

// HouseholdStore seeds and reads household directory records.
type HouseholdStore interface {
	PutHousehold(ctx context.Context, household domain.Household) error
	ListHouseholds(ctx context.Context) ([]domain.Household, error)
}

// PolicyStore persists the append-only, versioned rotation policy.
type PolicyStore interface {
	// AppendPolicy writes a new version and returns it. Versions start at 1
	// and are assigned atomically from the current maximum.
	AppendPolicy(ctx context.Context, policy domain.RotationPolicy) (domain.RotationPolicy, error)
	// CurrentPolicy returns the highest version, or ErrNotFound when no
	// version has been published.
	CurrentPolicy(ctx context.Context) (domain.RotationPolicy, error)
}

// ExemptionStore persists exemption requests. Requests are never deleted.
type ExemptionStore interface {
	// CreateExemption inserts a pending request, assigning the next version
	// for the (household, year) pair. Returns ErrAlreadyExists when a
	// pending or approved request is already on file for the pair.
	CreateExemption(ctx context.Context, request domain.ExemptionRequest) (domain.ExemptionRequest, error)
	GetExemption(ctx context.Context, id string) (domain.ExemptionRequest, error)
	// DecideExemption transitions a pending request to approved or
	// rejected. Returns ErrStatusConflict when the request is no longer
	// pending, ErrNotFound when it does not exist.
	DecideExemption(ctx context.Context, id string, status domain.ExemptionStatus, decidedBy string, rejectReason string, decidedAt time.Time) error
	// ListApprovedHouseholds returns the households with an approved
	// exemption for the year.
	ListApprovedHouseholds(ctx context.Context, year int) (map[string]bool, error)
	ListExemptions(ctx context.Context, year int) ([]domain.ExemptionRequest, error)
}

// ScheduleStore persists one leader schedule row per year.
type ScheduleStore interface {
	// CreateSchedule inserts a new row. Returns ErrAlreadyExists when a row
	// for the year is present.
	CreateSchedule(ctx context.Context, schedule domain.LeaderSchedule) error
	// UpsertDraftSchedule replaces the year's assignment in place, keeping
	// the existing row id. Returns ErrStatusConflict when the existing row
	// is confirmed.
	UpsertDraftSchedule(ctx context.Context, schedule domain.LeaderSchedule) error
	GetSchedule(ctx context.Context, id string) (domain.LeaderSchedule, error)
	// GetScheduleByYear returns ErrNotFound when the year has no row.
	GetScheduleByYear(ctx context.Context, year int) (domain.LeaderSchedule, error)
	// TransitionScheduleStatus applies from -> to as one guarded write.
	// Returns ErrStatusConflict when the row is no longer in from,
	// ErrNotFound when it does not exist.
	TransitionScheduleStatus(ctx context.Context, id string, from, to domain.ScheduleStatus, updatedAt time.Time) error
}

// ChangelogStore appends audit entries.
type ChangelogStore interface {
	AppendChangelog(ctx context.Context, entry ChangelogEntry) error
	ListChangelog(ctx context.Context, limit int) ([]ChangelogEntry, error)
}

// Store is a composite interface for rotation storage concerns.
type Store interface {
	HouseholdStore
	PolicyStore
	ExemptionStore
	ScheduleStore
	ChangelogStore
	Close() error
}
