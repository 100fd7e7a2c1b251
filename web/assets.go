package webassets

import (
	"embed"
	"io/fs"
)

// Files contains the embedded monitor dashboard.
//
//go:embed ui
var Files embed.FS

// UI returns the dashboard rooted at index.html.
func UI() fs.FS {
	sub, err := fs.Sub(Files, "ui")
	if err != nil {
		panic(err)
	}
	return sub
}
