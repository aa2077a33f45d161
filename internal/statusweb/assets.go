package statusweb

import (
	"embed"
	"io/fs"
)

//go:embed all:web
var embeddedFS embed.FS

// webFS returns the embedded dashboard page, rooted at its own directory
// so it serves at "/" rather than "/web/".
func webFS() (fs.FS, error) {
	return fs.Sub(embeddedFS, "web")
}
