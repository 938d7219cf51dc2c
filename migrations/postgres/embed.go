// Package migrations embebe los .sql de Postgres.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
