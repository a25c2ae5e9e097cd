package migrations

import "embed"

// FS contains embedded SQLite migrations for editing storage.
//
//go:embed *.sql
var FS embed.FS
