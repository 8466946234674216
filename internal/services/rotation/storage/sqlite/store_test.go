package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotation.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func datePtr(value string) *time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	for _, table := range []string{"households", "rotation_policies", "exemption_requests", "leader_schedules", "changelog_entries"} {
		var name string
		err := sqlDB.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestHouseholdRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutHousehold(ctx, domain.Household{ID: "102", MoveInDate: datePtr("2018-03-01"), LeaderHistoryCount: 1}); err != nil {
		t.Fatalf("put household: %v", err)
	}
	if err := store.PutHousehold(ctx, domain.Household{ID: "101"}); err != nil {
		t.Fatalf("put household: %v", err)
	}

	households, err := store.ListHouseholds(ctx)
	if err != nil {
		t.Fatalf("list households: %v", err)
	}
	if len(households) != 2 {
		t.Fatalf("got %d households", len(households))
	}
	if households[0].ID != "101" || households[1].ID != "102" {
		t.Fatalf("unexpected order: %s, %s", households[0].ID, households[1].ID)
	}
	if households[0].MoveInDate != nil {
		t.Fatal("expected nil move-in date to survive round trip")
	}
	if got := households[1].MoveInDate; got == nil || !got.Equal(*datePtr("2018-03-01")) {
		t.Fatalf("move-in date = %v", got)
	}

	// Upsert replaces in place.
	if err := store.PutHousehold(ctx, domain.Household{ID: "102", LeaderHistoryCount: 2}); err != nil {
		t.Fatalf("put household: %v", err)
	}
	households, err = store.ListHouseholds(ctx)
	if err != nil {
		t.Fatalf("list households: %v", err)
	}
	if len(households) != 2 || households[1].LeaderHistoryCount != 2 {
		t.Fatalf("upsert failed: %+v", households)
	}
}

func TestPolicyVersionsAreAppendOnly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CurrentPolicy(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now().UTC()
	first, err := store.AppendPolicy(ctx, domain.RotationPolicy{
		Priority:            []string{"oldest tenure first"},
		ExclusionConditions: []string{"A recent move-in", "B prior service", "C approved exemption"},
		Reason:              "initial policy",
		CreatedAt:           now,
	})
	if err != nil {
		t.Fatalf("append policy: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("version = %d, want 1", first.Version)
	}

	second, err := store.AppendPolicy(ctx, domain.RotationPolicy{
		Priority:            []string{"oldest tenure first", "lowest unit number"},
		ExclusionConditions: []string{"A", "B", "C"},
		Reason:              "clarified tie-break",
		CreatedAt:           now,
	})
	if err != nil {
		t.Fatalf("append policy: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("version = %d, want 2", second.Version)
	}

	current, err := store.CurrentPolicy(ctx)
	if err != nil {
		t.Fatalf("current policy: %v", err)
	}
	if current.Version != 2 || current.Reason != "clarified tie-break" {
		t.Fatalf("current = %+v", current)
	}
	if len(current.Priority) != 2 {
		t.Fatalf("priority = %v", current.Priority)
	}
}

func TestExemptionVersioningAndDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-1", HouseholdID: "102", Year: 2027, Reason: "travel", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("create exemption: %v", err)
	}
	if first.Version != 1 || first.Status != domain.ExemptionPending {
		t.Fatalf("first = %+v", first)
	}

	// Pending blocks resubmission.
	_, err = store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-2", HouseholdID: "102", Year: 2027, Reason: "travel again", CreatedAt: now,
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// A rejected decision unblocks a new version.
	if err := store.DecideExemption(ctx, "ex-1", domain.ExemptionRejected, "admin-1", "not a valid reason", now); err != nil {
		t.Fatalf("decide: %v", err)
	}
	second, err := store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-3", HouseholdID: "102", Year: 2027, Reason: "medical", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("create after rejection: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("version = %d, want 2", second.Version)
	}

	// An approved decision blocks resubmission too.
	if err := store.DecideExemption(ctx, "ex-3", domain.ExemptionApproved, "admin-1", "", now); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-4", HouseholdID: "102", Year: 2027, Reason: "again", CreatedAt: now,
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Same household, different year is independent.
	if _, err := store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-5", HouseholdID: "102", Year: 2028, Reason: "travel", CreatedAt: now,
	}); err != nil {
		t.Fatalf("create for other year: %v", err)
	}
}

func TestDecideExemptionGuards(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.CreateExemption(ctx, domain.ExemptionRequest{
		ID: "ex-1", HouseholdID: "103", Year: 2027, Reason: "travel", CreatedAt: now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.DecideExemption(ctx, "ex-1", domain.ExemptionApproved, "admin-1", "", now); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Second decision loses.
	err := store.DecideExemption(ctx, "ex-1", domain.ExemptionRejected, "admin-2", "late", now)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	if err := store.DecideExemption(ctx, "missing", domain.ExemptionApproved, "admin-1", "", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := store.GetExemption(ctx, "ex-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ExemptionApproved || got.DecidedBy != "admin-1" || got.DecidedAt == nil {
		t.Fatalf("got %+v", got)
	}

	approved, err := store.ListApprovedHouseholds(ctx, 2027)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if !approved["103"] || len(approved) != 1 {
		t.Fatalf("approved = %v", approved)
	}
}

func TestScheduleCreateUpsertAndGuards(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	draft := domain.LeaderSchedule{
		ID: "sch-1", Year: 2027,
		PrimaryHouseholdID: "101", BackupHouseholdID: "102",
		Status: domain.ScheduleDraft, Reason: "initial",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateSchedule(ctx, draft); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateSchedule(ctx, domain.LeaderSchedule{
		ID: "sch-2", Year: 2027, PrimaryHouseholdID: "103", BackupHouseholdID: "104",
		Status: domain.ScheduleDraft, CreatedAt: now, UpdatedAt: now,
	}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Upsert keeps the existing row id while replacing the assignment.
	if err := store.UpsertDraftSchedule(ctx, domain.LeaderSchedule{
		ID: "sch-3", Year: 2027, PrimaryHouseholdID: "105", BackupHouseholdID: "106",
		Reason: "recalculated", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.GetScheduleByYear(ctx, 2027)
	if err != nil {
		t.Fatalf("get by year: %v", err)
	}
	if got.ID != "sch-1" {
		t.Fatalf("id = %q, want sch-1 (row replaced, not re-keyed)", got.ID)
	}
	if got.PrimaryHouseholdID != "105" || got.BackupHouseholdID != "106" {
		t.Fatalf("assignment = %s/%s", got.PrimaryHouseholdID, got.BackupHouseholdID)
	}

	// Confirmed rows are immutable to the upsert.
	if err := store.TransitionScheduleStatus(ctx, "sch-1", domain.ScheduleDraft, domain.ScheduleConfirmed, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	err = store.UpsertDraftSchedule(ctx, domain.LeaderSchedule{
		ID: "sch-4", Year: 2027, PrimaryHouseholdID: "107", BackupHouseholdID: "108",
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	got, err = store.GetScheduleByYear(ctx, 2027)
	if err != nil {
		t.Fatalf("get by year: %v", err)
	}
	if got.PrimaryHouseholdID != "105" {
		t.Fatal("confirmed schedule was modified")
	}

	// Upsert with no existing row inserts.
	if err := store.UpsertDraftSchedule(ctx, domain.LeaderSchedule{
		ID: "sch-5", Year: 2028, PrimaryHouseholdID: "101", BackupHouseholdID: "102",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert new year: %v", err)
	}
	if _, err := store.GetScheduleByYear(ctx, 2028); err != nil {
		t.Fatalf("get 2028: %v", err)
	}
}

func TestTransitionScheduleStatusGuards(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.CreateSchedule(ctx, domain.LeaderSchedule{
		ID: "sch-1", Year: 2027, PrimaryHouseholdID: "101", BackupHouseholdID: "102",
		Status: domain.ScheduleDraft, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.TransitionScheduleStatus(ctx, "sch-1", domain.ScheduleDraft, domain.ScheduleConditional, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	// Stale expectation loses.
	err := store.TransitionScheduleStatus(ctx, "sch-1", domain.ScheduleDraft, domain.ScheduleConfirmed, now)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := store.TransitionScheduleStatus(ctx, "missing", domain.ScheduleDraft, domain.ScheduleConditional, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := store.GetSchedule(ctx, "sch-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ScheduleConditional {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestChangelogRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, summary := range []string{"first entry", "second entry"} {
		if err := store.AppendChangelog(ctx, storage.ChangelogEntry{
			Summary:    summary,
			EntityType: "rotation",
			EntityID:   "sch-1",
			CreatedAt:  now,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := store.ListChangelog(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Summary != "second entry" {
		t.Fatalf("expected newest first, got %q", entries[0].Summary)
	}
}
