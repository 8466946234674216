package migrations

import "embed"

// FS contains embedded SQLite migrations for rotation storage.
//
//go:embed *.sql
var FS embed.FS
