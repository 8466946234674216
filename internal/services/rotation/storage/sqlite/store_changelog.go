package sqlite

import (
	"context"
	"fmt"

	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// AppendChangelog writes one audit entry.
func (s *Store) AppendChangelog(ctx context.Context, entry storage.ChangelogEntry) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO changelog_entries (summary, entity_type, entity_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		entry.Summary,
		entry.EntityType,
		entry.EntityID,
		entry.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append changelog: %w", err)
	}
	return nil
}

// ListChangelog returns the newest entries first.
func (s *Store) ListChangelog(ctx context.Context, limit int) ([]storage.ChangelogEntry, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, summary, entity_type, entity_id, created_at
		 FROM changelog_entries
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list changelog: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []storage.ChangelogEntry
	for rows.Next() {
		var entry storage.ChangelogEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Summary, &entry.EntityType, &entry.EntityID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan changelog entry: %w", err)
		}
		entry.CreatedAt = unixMillisToTime(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list changelog: %w", err)
	}
	return entries, nil
}
