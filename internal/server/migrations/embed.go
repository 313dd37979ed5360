// Package migrations embeds the Postgres schema of the development auth backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
