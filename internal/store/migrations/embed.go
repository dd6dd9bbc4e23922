// Package migrations embeds the SQL schema migrations for springs.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
