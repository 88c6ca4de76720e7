// Package migrations embeds the goose SQL migrations for sqlstore. The
// statements stay within the subset shared by PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
