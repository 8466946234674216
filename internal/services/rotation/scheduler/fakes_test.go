package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

type fakeDirectory struct {
	households []domain.Household
	err        error
}

func (f *fakeDirectory) ListAll(context.Context) ([]domain.Household, error) {
	return f.households, f.err
}

type fakePolicies struct {
	policy domain.RotationPolicy
	err    error
}

func (f *fakePolicies) Current(context.Context) (domain.RotationPolicy, error) {
	if f.err != nil {
		return domain.RotationPolicy{}, f.err
	}
	return f.policy, nil
}

type fakeExemptions struct {
	approved map[int]map[string]bool
	err      error
}

func (f *fakeExemptions) ListApproved(_ context.Context, year int) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.approved[year], nil
}

// memScheduleStore is an in-memory ScheduleStore with the same guarded-write
// semantics as the sqlite implementation.
type memScheduleStore struct {
	byYear map[int]domain.LeaderSchedule
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{byYear: make(map[int]domain.LeaderSchedule)}
}

func (m *memScheduleStore) CreateSchedule(_ context.Context, schedule domain.LeaderSchedule) error {
	if _, ok := m.byYear[schedule.Year]; ok {
		return storage.ErrAlreadyExists
	}
	m.byYear[schedule.Year] = schedule
	return nil
}

func (m *memScheduleStore) UpsertDraftSchedule(_ context.Context, schedule domain.LeaderSchedule) error {
	existing, ok := m.byYear[schedule.Year]
	if !ok {
		schedule.Status = domain.ScheduleDraft
		m.byYear[schedule.Year] = schedule
		return nil
	}
	if existing.Status == domain.ScheduleConfirmed {
		return storage.ErrStatusConflict
	}
	existing.PrimaryHouseholdID = schedule.PrimaryHouseholdID
	existing.BackupHouseholdID = schedule.BackupHouseholdID
	existing.Status = domain.ScheduleDraft
	existing.Reason = schedule.Reason
	existing.UpdatedAt = schedule.UpdatedAt
	m.byYear[schedule.Year] = existing
	return nil
}

func (m *memScheduleStore) GetSchedule(_ context.Context, id string) (domain.LeaderSchedule, error) {
	for _, schedule := range m.byYear {
		if schedule.ID == id {
			return schedule, nil
		}
	}
	return domain.LeaderSchedule{}, storage.ErrNotFound
}

func (m *memScheduleStore) GetScheduleByYear(_ context.Context, year int) (domain.LeaderSchedule, error) {
	schedule, ok := m.byYear[year]
	if !ok {
		return domain.LeaderSchedule{}, storage.ErrNotFound
	}
	return schedule, nil
}

func (m *memScheduleStore) TransitionScheduleStatus(_ context.Context, id string, from, to domain.ScheduleStatus, updatedAt time.Time) error {
	for year, schedule := range m.byYear {
		if schedule.ID != id {
			continue
		}
		if schedule.Status != from {
			return storage.ErrStatusConflict
		}
		schedule.Status = to
		schedule.UpdatedAt = updatedAt
		m.byYear[year] = schedule
		return nil
	}
	return storage.ErrNotFound
}

type memChangelogStore struct {
	entries []storage.ChangelogEntry
}

func (m *memChangelogStore) AppendChangelog(_ context.Context, entry storage.ChangelogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memChangelogStore) ListChangelog(context.Context, int) ([]storage.ChangelogEntry, error) {
	return m.entries, nil
}

type fixture struct {
	service   *Service
	directory *fakeDirectory
	policies  *fakePolicies
	exempt    *fakeExemptions
	schedules *memScheduleStore
	audit     *memChangelogStore
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		directory: &fakeDirectory{},
		policies:  &fakePolicies{policy: domain.RotationPolicy{Version: 1}},
		exempt:    &fakeExemptions{approved: map[int]map[string]bool{}},
		schedules: newMemScheduleStore(),
		audit:     &memChangelogStore{},
		now:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.directory, f.policies, f.exempt, f.schedules, changelog.NewAppender(f.audit))
	f.service.clock = func() time.Time { return f.now }
	counter := 0
	f.service.idGenerator = func() (string, error) {
		counter++
		return fmt.Sprintf("sch-%d", counter), nil
	}
	return f
}

func datePtr(value string) *time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &t
}
