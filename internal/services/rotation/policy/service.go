// Package policy manages the append-only, versioned rotation policy.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	stderrors "errors"

	"github.com/eastcourt/residency/internal/platform/errors"
	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// Service publishes and reads rotation policy versions.
type Service struct {
	store     storage.PolicyStore
	changelog *changelog.Appender
	clock     func() time.Time
}

// NewService creates a policy service backed by store.
func NewService(store storage.PolicyStore, appender *changelog.Appender) *Service {
	return &Service{
		store:     store,
		changelog: appender,
		clock:     time.Now,
	}
}

// PublishVersion appends a new immutable policy version and returns it.
// Past versions are never edited.
func (s *Service) PublishVersion(ctx context.Context, priority []string, exclusionConditions []string, reason string) (domain.RotationPolicy, error) {
	if s == nil || s.store == nil {
		return domain.RotationPolicy{}, fmt.Errorf("policy store is not configured")
	}
	priority = trimAll(priority)
	exclusionConditions = trimAll(exclusionConditions)
	if len(priority) == 0 || len(exclusionConditions) == 0 {
		return domain.RotationPolicy{}, errors.New(errors.CodePolicyRulesEmpty,
			"policy needs at least one priority rule and one exclusion condition")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.RotationPolicy{}, errors.New(errors.CodeReasonEmpty, "policy change reason is required")
	}

	now := s.now()
	policy, err := s.store.AppendPolicy(ctx, domain.RotationPolicy{
		Priority:            priority,
		ExclusionConditions: exclusionConditions,
		Reason:              strings.TrimSpace(reason),
		CreatedAt:           now,
	})
	if err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("publish policy version: %w", err)
	}

	s.changelog.Append(ctx, fmt.Sprintf("rotation policy version %d published", policy.Version), "rotation_policy", "")
	return policy, nil
}

// Current returns the highest policy version. The scheduler refuses to run
// without one.
func (s *Service) Current(ctx context.Context) (domain.RotationPolicy, error) {
	if s == nil || s.store == nil {
		return domain.RotationPolicy{}, fmt.Errorf("policy store is not configured")
	}
	policy, err := s.store.CurrentPolicy(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.RotationPolicy{}, errors.New(errors.CodeNoPolicyDefined,
				"no rotation policy version has been published")
		}
		return domain.RotationPolicy{}, fmt.Errorf("read current policy: %w", err)
	}
	return policy, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
