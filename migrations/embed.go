// Package migrations embeds the sqlite schema migrations so the binary
// and the repository tests share one schema source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
