// Package changelog appends human-readable audit entries for admin review.
package changelog

import (
	"context"
	"log"
	"time"

	"github.com/eastcourt/residency/internal/services/rotation/storage"
)

// Appender records changelog entries. Writes are fire-and-forget: a failed
// append is logged and never surfaces to the caller, so audit trouble cannot
// roll back a scheduling transaction.
type Appender struct {
	store storage.ChangelogStore
	clock func() time.Time
}

// NewAppender creates a changelog appender backed by store.
func NewAppender(store storage.ChangelogStore) *Appender {
	return &Appender{store: store, clock: time.Now}
}

// Append records one changelog entry. It is a no-op when the store is nil.
func (a *Appender) Append(ctx context.Context, summary string, entityType string, entityID string) {
	if a == nil || a.store == nil {
		return
	}
	now := time.Now
	if a.clock != nil {
		now = a.clock
	}
	entry := storage.ChangelogEntry{
		Summary:    summary,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  now().UTC(),
	}
	if err := a.store.AppendChangelog(ctx, entry); err != nil {
		log.Printf("changelog append failed (%s): %v", summary, err)
	}
}
