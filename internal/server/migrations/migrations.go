// Package migrations embeds the schema for every supported dialect. Each
// dialect lives in its own directory so goose can be pointed at one of them.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
