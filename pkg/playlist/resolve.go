package playlist

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Resolve turns a URI reference found in a playlist into an absolute
// one, per spec.md §4.2: absolute (contains "://") references are used
// as-is; otherwise they're joined against baseURI using URL resolution
// when baseURI looks like a URL, or filesystem join semantics otherwise.
func Resolve(baseURI, ref string) string {
	if strings.Contains(ref, "://") {
		return ref
	}
	if baseURI == "" {
		return ref
	}
	if strings.Contains(baseURI, "://") {
		base, err := url.Parse(baseURI)
		if err != nil {
			return ref
		}
		rel, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return base.ResolveReference(rel).String()
	}
	return filepath.Join(baseURI, ref)
}
