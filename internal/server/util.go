package server

import (
	"path"
	"strings"
)

// sanitizeBase turns a configured base path into a clean "/prefix" form; the root maps
// to "".
func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" {
		return ""
	}
	bp = path.Clean("/" + bp)
	if bp == "/" {
		return ""
	}
	return bp
}
