// Package migrations embeds the goose schema migrations for the
// PostgreSQL stores.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
