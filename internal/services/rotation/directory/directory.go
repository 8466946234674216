// Package directory exposes a read-only view of the household directory to
// the rotation core. Directory writes belong to the portal's CRUD surface;
// this adapter only reads what the seed tooling or the portal put there.
package directory

import (
	"context"
	"fmt"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// SQLite adapts a household store into the HouseholdDirectory contract the
// scheduler consumes.
type SQLite struct {
	store storage.HouseholdStore
}

// NewSQLite wraps store as a read-only directory.
func NewSQLite(store storage.HouseholdStore) *SQLite {
	return &SQLite{store: store}
}

// ListAll returns every household on record.
func (d *SQLite) ListAll(ctx context.Context) ([]domain.Household, error) {
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("household store is not configured")
	}
	return d.store.ListHouseholds(ctx)
}

// Memory is an in-memory HouseholdDirectory for tests and local tooling.
type Memory struct {
	Households []domain.Household
}

// ListAll returns the configured households.
func (d *Memory) ListAll(context.Context) ([]domain.Household, error) {
	if d == nil {
		return nil, nil
	}
	return d.Households, nil
}
