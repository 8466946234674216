// Package rotation parses rotation service flags and launches the service.
package rotation

import (
	"context"
	"flag"

	entrypoint "github.com/eastcourt/residency/internal/platform/cmd"
	server "github.com/eastcourt/residency/internal/services/rotation/app"
)

// Config holds rotation command configuration.
type Config struct {
	Port   int    `env:"RESIDENCY_ROTATION_PORT" envDefault:"8080"`
	DBPath string `env:"RESIDENCY_ROTATION_DB" envDefault:"rotation.db"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The rotation HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the rotation sqlite database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the rotation HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRotation, func(context.Context) error {
		return server.Run(ctx, cfg.Port, cfg.DBPath)
	})
}
