package source

import (
	"path"
	"strings"
)

// NormalizeURI canonicalizes an original_uri before it is ever compared or stored,
// so the same logical file produces the same catalog key across runs regardless of
// how a particular adapter happened to format it: backslashes become forward
// slashes, a trailing slash is stripped, and redundant "." / ".." segments are
// resolved with path.Clean.
func NormalizeURI(uri string) string {
	normalized := strings.ReplaceAll(uri, `\`, "/")
	normalized = strings.TrimSuffix(normalized, "/")
	if normalized == "" {
		return normalized
	}
	return path.Clean(normalized)
}
