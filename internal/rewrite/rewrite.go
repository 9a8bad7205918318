// Package rewrite canonicalizes incoming request URIs before the edge cache
// key is computed. It is a pure function of its input: no I/O, no state.
package rewrite

import (
	"strings"

	"github.com/imgedge/imgedge/internal/ops"
)

// Rewrite maps an incoming URI to the canonical path form understood by the
// transform origin. The query string is dropped, duplicate slashes collapse,
// and a trailing default operations token is supplied when the path has none.
func Rewrite(uri string) string {
	path := uri
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segs := make([]string, 0, 8)
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return "/"
	}

	if !isOperationsToken(segs[len(segs)-1]) {
		segs = append(segs, ops.PassthroughToken)
	}

	return "/" + strings.Join(segs, "/")
}

func isOperationsToken(seg string) bool {
	return seg == ops.PassthroughToken || strings.Contains(seg, "=")
}
