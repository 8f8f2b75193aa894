// Package migrations embeds the schema of the client tracking database.
package migrations

import "embed"

//go:embed sqlite/*.sql
var Migrations embed.FS
