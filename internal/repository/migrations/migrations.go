// Package migrations embeds the SQL schema for the document stores.
package migrations

import "embed"

// FS holds one directory of goose migrations per SQL dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
