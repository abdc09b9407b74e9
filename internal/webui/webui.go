// Package webui embeds the browser client: a single page that uploads a
// screenshot and shows the returned security-test report.
package webui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// Assets returns the client files rooted at the site root.
func Assets() fs.FS {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		// dist is embedded at compile time; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}
