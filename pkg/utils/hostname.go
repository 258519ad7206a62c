package utils

import (
	"regexp"
	"strings"
)

// slugTokenPattern matches the character set a slug component (`app` or
// `node`) may use: alphanumeric, dash and dot in the body, alphanumeric
// at both ends. Slugs are joined with "." and used verbatim as on-disk
// path segments under the workspace root (spec §3, §4.1). Internal dots
// are allowed — "web.0"-style node names are the canonical dyno-naming
// convention the whole spec is built around (spec §8 scenario 1) — the
// pattern only needs to keep a crafted `app`/`node` from introducing a
// path separator or starting/ending with a separator.
var slugTokenPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.\-]*[a-zA-Z0-9])?$`)

// IsValidSlugToken reports whether token is safe to use as one half of
// a ProcessRecord slug ("{app}.{node}"): alphanumeric-bounded, free of
// path separators, and free of any ".." escape sequence.
func IsValidSlugToken(token string) bool {
	if strings.Contains(token, "..") {
		return false
	}
	return slugTokenPattern.MatchString(token)
}
