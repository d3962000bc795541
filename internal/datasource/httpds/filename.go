package httpds

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"
)

var unsafeRunes = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SafeFilenameFromURL derives a filesystem-safe name for artifacts saved
// from a URL, such as sampled source prefixes. Host, path, and query are
// flattened to alphanumerics and underscores. URLs that cannot be parsed,
// or that flatten to nothing, fall back to a hash of the raw string so the
// name stays deterministic.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hashName(rawURL)
	}
	base := u.Host + u.Path
	if u.RawQuery != "" {
		base += "_" + u.RawQuery
	}
	clean := strings.Trim(unsafeRunes.ReplaceAllString(base, "_"), "_")
	if clean == "" {
		return hashName(rawURL)
	}
	return clean
}

func hashName(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}
