package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// CreateExemption inserts a pending exemption request, assigning the next
// version for the (household, year) pair.
func (s *Store) CreateExemption(ctx context.Context, request domain.ExemptionRequest) (domain.ExemptionRequest, error) {
	if s == nil || s.sqlDB == nil {
		return domain.ExemptionRequest{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExemptionRequest{}, fmt.Errorf("begin create exemption: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	err = tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM exemption_requests
		 WHERE household_id = ? AND year = ? AND status IN (?, ?)`,
		request.HouseholdID,
		request.Year,
		string(domain.ExemptionPending),
		string(domain.ExemptionApproved),
	).Scan(&active)
	if err != nil {
		return domain.ExemptionRequest{}, fmt.Errorf("check active exemption: %w", err)
	}
	if active > 0 {
		return domain.ExemptionRequest{}, storage.ErrAlreadyExists
	}

	err = tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM exemption_requests
		 WHERE household_id = ? AND year = ?`,
		request.HouseholdID,
		request.Year,
	).Scan(&request.Version)
	if err != nil {
		return domain.ExemptionRequest{}, fmt.Errorf("next exemption version: %w", err)
	}

	request.Status = domain.ExemptionPending
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO exemption_requests (
		    id, household_id, year, version, reason, status, decided_by, decided_at, reject_reason, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, '', NULL, '', ?)`,
		request.ID,
		request.HouseholdID,
		request.Year,
		request.Version,
		request.Reason,
		string(request.Status),
		request.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent submission for the same pair won the version.
			return domain.ExemptionRequest{}, storage.ErrAlreadyExists
		}
		return domain.ExemptionRequest{}, fmt.Errorf("insert exemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ExemptionRequest{}, fmt.Errorf("commit create exemption: %w", err)
	}
	return request, nil
}

// GetExemption loads one exemption request by id.
func (s *Store) GetExemption(ctx context.Context, id string) (domain.ExemptionRequest, error) {
	if s == nil || s.sqlDB == nil {
		return domain.ExemptionRequest{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, household_id, year, version, reason, status, decided_by, decided_at, reject_reason, created_at
		 FROM exemption_requests
		 WHERE id = ?`,
		id,
	)
	return scanExemption(row)
}

// DecideExemption transitions a pending request to approved or rejected as
// one guarded write. Two admins deciding concurrently cannot both win.
func (s *Store) DecideExemption(ctx context.Context, id string, status domain.ExemptionStatus, decidedBy string, rejectReason string, decidedAt time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE exemption_requests
		 SET status = ?, decided_by = ?, decided_at = ?, reject_reason = ?
		 WHERE id = ? AND status = ?`,
		string(status),
		decidedBy,
		decidedAt.UTC().UnixMilli(),
		rejectReason,
		id,
		string(domain.ExemptionPending),
	)
	if err != nil {
		return fmt.Errorf("decide exemption: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide exemption rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var found int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM exemption_requests WHERE id = ?`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("decide exemption lookup: %w", err)
	}
	return storage.ErrStatusConflict
}

// ListApprovedHouseholds returns the households with an approved exemption
// for the year.
func (s *Store) ListApprovedHouseholds(ctx context.Context, year int) (map[string]bool, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT household_id FROM exemption_requests
		 WHERE year = ? AND status = ?`,
		year,
		string(domain.ExemptionApproved),
	)
	if err != nil {
		return nil, fmt.Errorf("list approved households: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	approved := make(map[string]bool)
	for rows.Next() {
		var householdID string
		if err := rows.Scan(&householdID); err != nil {
			return nil, fmt.Errorf("scan approved household: %w", err)
		}
		approved[householdID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list approved households: %w", err)
	}
	return approved, nil
}

// ListExemptions returns all exemption requests for a year, newest version
// first within a household.
func (s *Store) ListExemptions(ctx context.Context, year int) ([]domain.ExemptionRequest, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, household_id, year, version, reason, status, decided_by, decided_at, reject_reason, created_at
		 FROM exemption_requests
		 WHERE year = ?
		 ORDER BY household_id, version DESC`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("list exemptions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var requests []domain.ExemptionRequest
	for rows.Next() {
		request, err := scanExemption(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exemptions: %w", err)
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExemption(row rowScanner) (domain.ExemptionRequest, error) {
	var request domain.ExemptionRequest
	var status string
	var decidedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(
		&request.ID,
		&request.HouseholdID,
		&request.Year,
		&request.Version,
		&request.Reason,
		&status,
		&request.DecidedBy,
		&decidedAt,
		&request.RejectReason,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ExemptionRequest{}, storage.ErrNotFound
		}
		return domain.ExemptionRequest{}, fmt.Errorf("scan exemption: %w", err)
	}
	request.Status = domain.ExemptionStatus(status)
	if decidedAt.Valid {
		t := time.UnixMilli(decidedAt.Int64).UTC()
		request.DecidedAt = &t
	}
	request.CreatedAt = unixMillisToTime(createdAt)
	return request, nil
}
