// Package app assembles the rotation service and runs its HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/api/httpapi"
	"github.com/eastcourt/residency/internal/services/rotation/changelog"
	"github.com/eastcourt/residency/internal/services/rotation/directory"
	"github.com/eastcourt/residency/internal/services/rotation/exemption"
	"github.com/eastcourt/residency/internal/services/rotation/policy"
	"github.com/eastcourt/residency/internal/services/rotation/scheduler"
	"github.com/eastcourt/residency/internal/services/rotation/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

// Run opens the store, wires the rotation services together, and serves the
// HTTP API until the context ends.
func Run(ctx context.Context, port int, dbPath string) error {
	if port <= 0 {
		return errors.New("port is required")
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open rotation store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close rotation store: %v", err)
		}
	}()

	appender := changelog.NewAppender(store)
	policies := policy.NewService(store, appender)
	exemptions := exemption.NewService(store, appender)
	schedules := scheduler.NewService(directory.NewSQLite(store), policies, exemptions, store, appender)

	handler := httpapi.NewHandler(schedules, exemptions, policies)
	return serve(ctx, fmt.Sprintf(":%d", port), handler)
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	log.Printf("rotation API listening on %s", addr)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
