// Package seed parses seed command flags and loads directory fixtures.
package seed

import (
	"context"
	"errors"
	"flag"
	"io"

	entrypoint "github.com/eastcourt/residency/internal/platform/cmd"
	"github.com/eastcourt/residency/internal/seed"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"RESIDENCY_ROTATION_DB" envDefault:"rotation.db"`
	FixturePath string `env:"RESIDENCY_SEED_FIXTURES" envDefault:"fixtures/households.yaml"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the rotation sqlite database")
	fs.StringVar(&cfg.FixturePath, "fixtures", cfg.FixturePath, "Path to the household fixture YAML file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.DBPath == "" {
		return errors.New("database path is required")
	}
	if cfg.FixturePath == "" {
		return errors.New("fixture path is required")
	}
	return seed.Run(ctx, cfg.DBPath, cfg.FixturePath, out)
}
