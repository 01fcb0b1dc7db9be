// Package appfs embeds the files the binaries ship with: database migrations, email templates and assets.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates assets
var FS embed.FS
