// Package sqlite provides SQLite-backed persistence for rotation state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/eastcourt/residency/internal/platform/storage/sqlitemigrate"
	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for rotation state.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a rotation SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutHousehold upserts one household directory record.
func (s *Store) PutHousehold(ctx context.Context, household domain.Household) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	household.ID = strings.TrimSpace(household.ID)
	if household.ID == "" {
		return fmt.Errorf("household id is required")
	}

	var moveIn sql.NullInt64
	if household.MoveInDate != nil {
		moveIn = sql.NullInt64{Int64: household.MoveInDate.UTC().UnixMilli(), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO households (id, move_in_date, leader_history_count)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		    move_in_date = excluded.move_in_date,
		    leader_history_count = excluded.leader_history_count`,
		household.ID,
		moveIn,
		household.LeaderHistoryCount,
	)
	if err != nil {
		return fmt.Errorf("put household: %w", err)
	}
	return nil
}

// ListHouseholds returns all household directory records, ordered by id.
func (s *Store) ListHouseholds(ctx context.Context) ([]domain.Household, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, move_in_date, leader_history_count
		 FROM households
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var households []domain.Household
	for rows.Next() {
		var h domain.Household
		var moveIn sql.NullInt64
		if err := rows.Scan(&h.ID, &moveIn, &h.LeaderHistoryCount); err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		if moveIn.Valid {
			t := time.UnixMilli(moveIn.Int64).UTC()
			h.MoveInDate = &t
		}
		households = append(households, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	return households, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func unixMillisToTime(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}
