package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// CreateSchedule inserts a new schedule row for a year with no existing row.
func (s *Store) CreateSchedule(ctx context.Context, schedule domain.LeaderSchedule) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO leader_schedules (
		    id, year, primary_household_id, backup_household_id, status, reason, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.Year,
		schedule.PrimaryHouseholdID,
		schedule.BackupHouseholdID,
		string(schedule.Status),
		schedule.Reason,
		schedule.CreatedAt.UTC().UnixMilli(),
		schedule.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// UpsertDraftSchedule replaces the year's assignment in one atomic statement.
// The existing row id and created_at survive; a confirmed row is left
// untouched and reported as a status conflict. The single-statement upsert
// avoids any window with zero rows for the year.
func (s *Store) UpsertDraftSchedule(ctx context.Context, schedule domain.LeaderSchedule) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO leader_schedules (
		    id, year, primary_household_id, backup_household_id, status, reason, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(year) DO UPDATE SET
		    primary_household_id = excluded.primary_household_id,
		    backup_household_id = excluded.backup_household_id,
		    status = excluded.status,
		    reason = excluded.reason,
		    updated_at = excluded.updated_at
		 WHERE leader_schedules.status <> ?`,
		schedule.ID,
		schedule.Year,
		schedule.PrimaryHouseholdID,
		schedule.BackupHouseholdID,
		string(domain.ScheduleDraft),
		schedule.Reason,
		schedule.CreatedAt.UTC().UnixMilli(),
		schedule.UpdatedAt.UTC().UnixMilli(),
		string(domain.ScheduleConfirmed),
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert schedule rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrStatusConflict
	}
	return nil
}

// GetSchedule loads one schedule row by id.
func (s *Store) GetSchedule(ctx context.Context, id string) (domain.LeaderSchedule, error) {
	if s == nil || s.sqlDB == nil {
		return domain.LeaderSchedule{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, year, primary_household_id, backup_household_id, status, reason, created_at, updated_at
		 FROM leader_schedules
		 WHERE id = ?`,
		id,
	)
	return scanSchedule(row)
}

// GetScheduleByYear loads the schedule row for a year.
func (s *Store) GetScheduleByYear(ctx context.Context, year int) (domain.LeaderSchedule, error) {
	if s == nil || s.sqlDB == nil {
		return domain.LeaderSchedule{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, year, primary_household_id, backup_household_id, status, reason, created_at, updated_at
		 FROM leader_schedules
		 WHERE year = ?`,
		year,
	)
	return scanSchedule(row)
}

// TransitionScheduleStatus applies from -> to as one guarded write, so two
// concurrent confirmations cannot both succeed.
func (s *Store) TransitionScheduleStatus(ctx context.Context, id string, from, to domain.ScheduleStatus, updatedAt time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE leader_schedules
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to),
		updatedAt.UTC().UnixMilli(),
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("transition schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition schedule rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var found int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM leader_schedules WHERE id = ?`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("transition schedule lookup: %w", err)
	}
	return storage.ErrStatusConflict
}

func scanSchedule(row rowScanner) (domain.LeaderSchedule, error) {
	var schedule domain.LeaderSchedule
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(
		&schedule.ID,
		&schedule.Year,
		&schedule.PrimaryHouseholdID,
		&schedule.BackupHouseholdID,
		&status,
		&schedule.Reason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LeaderSchedule{}, storage.ErrNotFound
		}
		return domain.LeaderSchedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	schedule.Status = domain.ScheduleStatus(status)
	schedule.CreatedAt = unixMillisToTime(createdAt)
	schedule.UpdatedAt = unixMillisToTime(updatedAt)
	return schedule, nil
}
