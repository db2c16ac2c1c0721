// Package migrations embeds the SQL migration files for creds.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
