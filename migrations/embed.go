// Package migrations bundles the SQL schema into the binary.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.up.sql
var FS embed.FS
