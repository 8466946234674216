package exemption

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// memExemptionStore mirrors the sqlite store's versioning and guarded-update
// semantics.
type memExemptionStore struct {
	requests []domain.ExemptionRequest
}

func (m *memExemptionStore) CreateExemption(_ context.Context, request domain.ExemptionRequest) (domain.ExemptionRequest, error) {
	version := 0
	for _, existing := range m.requests {
		if existing.HouseholdID != request.HouseholdID || existing.Year != request.Year {
			continue
		}
		if existing.Status == domain.ExemptionPending || existing.Status == domain.ExemptionApproved {
			return domain.ExemptionRequest{}, storage.ErrAlreadyExists
		}
		if existing.Version > version {
			version = existing.Version
		}
	}
	request.Version = version + 1
	m.requests = append(m.requests, request)
	return request, nil
}

func (m *memExemptionStore) GetExemption(_ context.Context, id string) (domain.ExemptionRequest, error) {
	for _, request := range m.requests {
		if request.ID == id {
			return request, nil
		}
	}
	return domain.ExemptionRequest{}, storage.ErrNotFound
}

func (m *memExemptionStore) DecideExemption(_ context.Context, id string, to domain.ExemptionStatus, decidedBy, rejectReason string, decidedAt time.Time) error {
	for i, request := range m.requests {
		if request.ID != id {
			continue
		}
		if request.Status != domain.ExemptionPending {
			return storage.ErrStatusConflict
		}
		request.Status = to
		request.DecidedBy = decidedBy
		request.DecidedAt = &decidedAt
		request.RejectReason = rejectReason
		m.requests[i] = request
		return nil
	}
	return storage.ErrNotFound
}

func (m *memExemptionStore) ListApprovedHouseholds(_ context.Context, year int) (map[string]bool, error) {
	approved := map[string]bool{}
	for _, request := range m.requests {
		if request.Year == year && request.Status == domain.ExemptionApproved {
			approved[request.HouseholdID] = true
		}
	}
	return approved, nil
}

func (m *memExemptionStore) ListExemptions(_ context.Context, year int) ([]domain.ExemptionRequest, error) {
	var out []domain.ExemptionRequest
	for _, request := range m.requests {
		if request.Year == year {
			out = append(out, request)
		}
	}
	return out, nil
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

func newTestService() (*Service, *memExemptionStore, *memChangelogStore) {
	store := &memExemptionStore{}
	audit := &memChangelogStore{}
	service := NewService(store, changelog.NewAppender(audit))
	service.clock = func() time.Time {
		return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	counter := 0
	service.idGenerator = func() (string, error) {
		counter++
		return fmt.Sprintf("ex-%d", counter), nil
	}
	return service, store, audit
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	service, _, audit := newTestService()

	request, err := service.Submit(context.Background(), "unit-12", 2027, "extended travel")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if request.Status != domain.ExemptionPending {
		t.Fatalf("status = %s", request.Status)
	}
	if request.Version != 1 {
		t.Fatalf("version = %d", request.Version)
	}
	if len(audit.entries) != 1 || !strings.Contains(audit.entries[0].Summary, "unit-12") {
		t.Fatalf("changelog = %+v", audit.entries)
	}
}

func TestSubmitValidation(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name        string
		householdID string
		year        int
		reason      string
		wantCode    errors.Code
	}{
		{"empty household", "  ", 2027, "r", errors.CodeHouseholdIDEmpty},
		{"bogus year", "unit-12", 20, "r", errors.CodeYearInvalid},
		{"empty reason", "unit-12", 2027, "  ", errors.CodeReasonEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Submit(ctx, tc.householdID, tc.year, tc.reason)
			if !errors.IsCode(err, tc.wantCode) {
				t.Fatalf("err = %v, want code %s", err, tc.wantCode)
			}
		})
	}
	if len(store.requests) != 0 {
		t.Fatalf("invalid submits stored %d requests", len(store.requests))
	}
}

func TestSubmitBlocksActiveDuplicate(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	if _, err := service.Submit(ctx, "unit-12", 2027, "travel"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := service.Submit(ctx, "unit-12", 2027, "travel again")
	if !errors.IsCode(err, errors.CodeDuplicateActiveRequest) {
		t.Fatalf("err = %v", err)
	}

	// Another year is an independent pair.
	if _, err := service.Submit(ctx, "unit-12", 2028, "travel"); err != nil {
		t.Fatalf("other year: %v", err)
	}
}

func TestResubmitAfterRejectionIncrementsVersion(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	first, err := service.Submit(ctx, "unit-12", 2027, "travel")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Reject(ctx, first.ID, "admin-1", "insufficient detail"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	second, err := service.Submit(ctx, "unit-12", 2027, "travel, with itinerary")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("version = %d", second.Version)
	}

	history, err := service.List(ctx, 2027)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d rows", len(history))
	}
}

func TestApproveFeedsSchedulerSet(t *testing.T) {
	service, store, audit := newTestService()
	ctx := context.Background()

	request, err := service.Submit(ctx, "unit-12", 2027, "travel")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Approve(ctx, request.ID, "admin-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	decided, err := store.GetExemption(ctx, request.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if decided.Status != domain.ExemptionApproved || decided.DecidedBy != "admin-1" || decided.DecidedAt == nil {
		t.Fatalf("decided = %+v", decided)
	}

	approved, err := service.ListApproved(ctx, 2027)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if !approved["unit-12"] {
		t.Fatalf("approved = %v", approved)
	}
	if other, _ := service.ListApproved(ctx, 2028); other["unit-12"] {
		t.Fatal("approval leaked into another year")
	}
	if len(audit.entries) != 2 {
		t.Fatalf("got %d changelog entries", len(audit.entries))
	}
}

func TestRejectKeepsReason(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	request, err := service.Submit(ctx, "unit-12", 2027, "travel")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Reject(ctx, request.ID, "admin-1", "no supporting documents"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	decided, err := store.GetExemption(ctx, request.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if decided.RejectReason != "no supporting documents" {
		t.Fatalf("reject reason = %q", decided.RejectReason)
	}

	approved, _ := service.ListApproved(ctx, 2027)
	if approved["unit-12"] {
		t.Fatal("rejected request counted as approved")
	}
}

func TestDecisionGuards(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	request, err := service.Submit(ctx, "unit-12", 2027, "travel")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := service.Reject(ctx, request.ID, "admin-1", "  "); !errors.IsCode(err, errors.CodeReasonEmpty) {
		t.Fatalf("blank reject reason: %v", err)
	}
	if err := service.Approve(ctx, request.ID, "  "); !errors.IsCode(err, errors.CodeApproverIDEmpty) {
		t.Fatalf("blank approver: %v", err)
	}
	if err := service.Approve(ctx, "missing", "admin-1"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("missing request: %v", err)
	}

	if err := service.Approve(ctx, request.ID, "admin-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// Decisions are final.
	if err := service.Reject(ctx, request.ID, "admin-2", "too late"); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("second decision: %v", err)
	}
	if err := service.Approve(ctx, request.ID, "admin-2"); !errors.IsCode(err, errors.CodeInvalidTransition) {
		t.Fatalf("re-approve: %v", err)
	}
}
