// Package seed loads household directory fixtures into the rotation store so
// a development environment has a directory to schedule against.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eastcourt/residency/internal/services/rotation/domain"
	"github.com/eastcourt/residency/internal/services/rotation/storage"
	"github.com/eastcourt/residency/internal/services/rotation/storage/sqlite"
)

// moveInDateLayout is the fixture date format.
const moveInDateLayout = "2006-01-02"

// Household is one directory fixture entry.
type Household struct {
	ID string `yaml:"id"`
	// MoveInDate is YYYY-MM-DD; empty means unknown.
	MoveInDate         string `yaml:"moveInDate"`
	LeaderHistoryCount int    `yaml:"leaderHistoryCount"`
}

// Fixture is the root of a seed file.
type Fixture struct {
	Households []Household `yaml:"households"`
}

// Load reads and parses a fixture file.
func Load(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture file: %w", err)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture file: %w", err)
	}
	return fixture, nil
}

// Apply upserts every fixture household into the store and returns the count.
func Apply(ctx context.Context, store storage.HouseholdStore, fixture Fixture) (int, error) {
	for i, entry := range fixture.Households {
		if entry.ID == "" {
			return i, fmt.Errorf("household %d is missing an id", i)
		}
		household := domain.Household{
			ID:                 entry.ID,
			LeaderHistoryCount: entry.LeaderHistoryCount,
		}
		if entry.MoveInDate != "" {
			moveIn, err := time.Parse(moveInDateLayout, entry.MoveInDate)
			if err != nil {
				return i, fmt.Errorf("household %s move-in date: %w", entry.ID, err)
			}
			household.MoveInDate = &moveIn
		}
		if err := store.PutHousehold(ctx, household); err != nil {
			return i, fmt.Errorf("seed household %s: %w", entry.ID, err)
		}
	}
	return len(fixture.Households), nil
}

// Run loads a fixture file into the sqlite store at dbPath.
func Run(ctx context.Context, dbPath, fixturePath string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	fixture, err := Load(fixturePath)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open rotation store: %w", err)
	}
	defer store.Close()

	count, err := Apply(ctx, store, fixture)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d households into %s\n", count, dbPath)
	return nil
}
