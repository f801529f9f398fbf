// Package appfs embeds the files shipped with the binary.
package appfs

import "embed"

// FS holds the page templates under templates/.
//
//go:embed all:templates
var FS embed.FS
