// Package exemption runs the per-household, per-year exemption workflow.
package exemption

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	stderrors "errors"

	"github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/platform/id"
	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// minYear bounds obviously bogus target years.
const minYear = 2000

// Service manages exemption requests and their approval workflow.
type Service struct {
	store       storage.ExemptionStore
	changelog   *changelog.Appender
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService creates an exemption service backed by store.
func NewService(store storage.ExemptionStore, appender *changelog.Appender) *Service {
	return &Service{
		store:       store,
		changelog:   appender,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Submit files a pending exemption request for (householdID, year).
//
// A request that follows a rejected decision gets the next version for the
// pair; a pending or approved request on file fails the submission.
func (s *Service) Submit(ctx context.Context, householdID string, year int, reason string) (domain.ExemptionRequest, error) {
	if s == nil || s.store == nil {
		return domain.ExemptionRequest{}, fmt.Errorf("exemption store is not configured")
	}
	householdID = strings.TrimSpace(householdID)
	if householdID == "" {
		return domain.ExemptionRequest{}, errors.New(errors.CodeHouseholdIDEmpty, "household id is required")
	}
	if year < minYear {
		return domain.ExemptionRequest{}, errors.WithMetadata(errors.CodeYearInvalid,
			fmt.Sprintf("year %d is out of range", year),
			map[string]string{"Year": strconv.Itoa(year)})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ExemptionRequest{}, errors.New(errors.CodeReasonEmpty, "exemption reason is required")
	}

	requestID, err := s.newID()
	if err != nil {
		return domain.ExemptionRequest{}, fmt.Errorf("generate exemption id: %w", err)
	}

	request, err := s.store.CreateExemption(ctx, domain.ExemptionRequest{
		ID:          requestID,
		HouseholdID: householdID,
		Year:        year,
		Reason:      reason,
		Status:      domain.ExemptionPending,
		CreatedAt:   s.now(),
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrAlreadyExists) {
			return domain.ExemptionRequest{}, errors.WithMetadata(errors.CodeDuplicateActiveRequest,
				fmt.Sprintf("household %s already has an active request for %d", householdID, year),
				map[string]string{"HouseholdID": householdID, "Year": strconv.Itoa(year)})
		}
		return domain.ExemptionRequest{}, fmt.Errorf("submit exemption: %w", err)
	}

	s.changelog.Append(ctx,
		fmt.Sprintf("exemption requested by household %s for %d", householdID, year),
		"exemption_request", request.ID)
	return request, nil
}

// Approve grants a pending exemption request.
func (s *Service) Approve(ctx context.Context, requestID string, approverID string) error {
	return s.decide(ctx, requestID, approverID, domain.ExemptionApproved, "")
}

// Reject declines a pending exemption request, keeping the admin's note.
func (s *Service) Reject(ctx context.Context, requestID string, approverID string, rejectReason string) error {
	rejectReason = strings.TrimSpace(rejectReason)
	if rejectReason == "" {
		return errors.New(errors.CodeReasonEmpty, "rejection reason is required")
	}
	return s.decide(ctx, requestID, approverID, domain.ExemptionRejected, rejectReason)
}

func (s *Service) decide(ctx context.Context, requestID string, approverID string, to domain.ExemptionStatus, rejectReason string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("exemption store is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return errors.New(errors.CodeNotFound, "exemption request id is required")
	}
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return errors.New(errors.CodeApproverIDEmpty, "approver id is required")
	}

	current, err := s.store.GetExemption(ctx, requestID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.New(errors.CodeNotFound, "exemption request "+requestID+" not found")
		}
		return fmt.Errorf("load exemption: %w", err)
	}
	if err := domain.ValidateExemptionDecision(current.Status, to); err != nil {
		return err
	}

	err = s.store.DecideExemption(ctx, requestID, to, approverID, rejectReason, s.now())
	if err != nil {
		if stderrors.Is(err, storage.ErrStatusConflict) {
			// Another admin decided between our read and write.
			return errors.WithMetadata(errors.CodeInvalidTransition,
				"exemption request "+requestID+" was already decided",
				map[string]string{"FromStatus": "decided", "ToStatus": string(to)})
		}
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.New(errors.CodeNotFound, "exemption request "+requestID+" not found")
		}
		return fmt.Errorf("decide exemption: %w", err)
	}

	s.changelog.Append(ctx,
		fmt.Sprintf("exemption for household %s (%d) %s by %s", current.HouseholdID, current.Year, to, approverID),
		"exemption_request", requestID)
	return nil
}

// ListApproved returns the households holding an approved exemption for the
// year. This is the set the scheduler consumes.
func (s *Service) ListApproved(ctx context.Context, year int) (map[string]bool, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("exemption store is not configured")
	}
	return s.store.ListApprovedHouseholds(ctx, year)
}

// List returns every request filed for the year, for audit display.
func (s *Service) List(ctx context.Context, year int) ([]domain.ExemptionRequest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("exemption store is not configured")
	}
	return s.store.ListExemptions(ctx, year)
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
