package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// AppendPolicy writes a new immutable policy version. The version number is
// assigned inside the insert from the current maximum, so concurrent
// publishes cannot collide.
func (s *Store) AppendPolicy(ctx context.Context, policy domain.RotationPolicy) (domain.RotationPolicy, error) {
	if s == nil || s.sqlDB == nil {
		return domain.RotationPolicy{}, fmt.Errorf("storage is not configured")
	}

	priorityJSON, err := json.Marshal(policy.Priority)
	if err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("marshal priority: %w", err)
	}
	conditionsJSON, err := json.Marshal(policy.ExclusionConditions)
	if err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("marshal exclusion conditions: %w", err)
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`INSERT INTO rotation_policies (version, priority_json, exclusion_conditions_json, reason, created_at)
		 SELECT COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?
		 FROM rotation_policies
		 RETURNING version`,
		string(priorityJSON),
		string(conditionsJSON),
		policy.Reason,
		policy.CreatedAt.UTC().UnixMilli(),
	)
	if err := row.Scan(&policy.Version); err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("append policy: %w", err)
	}
	return policy, nil
}

// CurrentPolicy returns the highest policy version.
func (s *Store) CurrentPolicy(ctx context.Context) (domain.RotationPolicy, error) {
	if s == nil || s.sqlDB == nil {
		return domain.RotationPolicy{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT version, priority_json, exclusion_conditions_json, reason, created_at
		 FROM rotation_policies
		 ORDER BY version DESC
		 LIMIT 1`,
	)

	var policy domain.RotationPolicy
	var priorityJSON, conditionsJSON string
	var createdAt int64
	if err := row.Scan(&policy.Version, &priorityJSON, &conditionsJSON, &policy.Reason, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.RotationPolicy{}, storage.ErrNotFound
		}
		return domain.RotationPolicy{}, fmt.Errorf("current policy: %w", err)
	}

	if err := json.Unmarshal([]byte(priorityJSON), &policy.Priority); err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("unmarshal priority: %w", err)
	}
	if err := json.Unmarshal([]byte(conditionsJSON), &policy.ExclusionConditions); err != nil {
		return domain.RotationPolicy{}, fmt.Errorf("unmarshal exclusion conditions: %w", err)
	}
	policy.CreatedAt = unixMillisToTime(createdAt)
	return policy, nil
}
