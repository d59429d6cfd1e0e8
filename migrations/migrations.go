// Package migrations embeds the gateway schema and seed SQL so the binaries
// carry them without a deploy-time file dependency.
package migrations

import "embed"

//go:embed sql
var FS embed.FS
