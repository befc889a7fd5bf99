package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Normalizer canonicalizes and resolves URLs. Query keys matching any of the
// configured delete patterns are stripped during canonicalization.
type Normalizer struct {
	deleteParams []*regexp.Regexp
}

// NewNormalizer compiles the delete-param patterns. Patterns are unanchored
// and case-sensitive.
func NewNormalizer(deleteParams []string) (*Normalizer, error) {
	n := &Normalizer{}
	for _, raw := range deleteParams {
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, configErr("delete_params", raw, fmt.Errorf("%w: %w", ErrInvalidPattern, err))
		}
		n.deleteParams = append(n.deleteParams, re)
	}
	return n, nil
}

// Canonicalize returns the canonical form of rawURL or "" when the URL is
// rejected (unparseable, or a scheme other than http/https).
//
// A leading "//" is read as https. The scheme and host are lowercased, the
// port is kept, the fragment and userinfo are dropped, and the query keeps
// the last value per key with deleted keys removed and keys sorted. Inputs
// without a scheme come back as path and query only, which lets callers
// canonicalize relative references before resolving them.
func (n *Normalizer) Canonicalize(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Opaque != "" {
		return ""
	}

	var b strings.Builder
	if u.Scheme != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return ""
		}
		b.WriteString(scheme)
		b.WriteString("://")
		b.WriteString(strings.ToLower(u.Host))
	}
	b.WriteString(u.EscapedPath())
	if query := n.canonicalQuery(u.RawQuery); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

func (n *Normalizer) canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	// Pairs split on "&" only. A ";" stays inside its value, where
	// url.ParseQuery would drop the whole pair.
	values := url.Values{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || key == "" || n.shouldDelete(key) {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		values.Set(key, value)
	}
	return values.Encode()
}

func (n *Normalizer) shouldDelete(key string) bool {
	for _, re := range n.deleteParams {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Resolve turns relative into an absolute URL using base. References that
// already carry a scheme are returned unchanged. Fragment-only references,
// empty references, and bases without a host resolve to "".
//
// A query-only reference replaces the base's query. Any other reference is
// joined with the base directory (or the root when it starts with "/") and
// dot segments are collapsed.
func (n *Normalizer) Resolve(relative, base string) string {
	if relative == "" || strings.HasPrefix(relative, "#") {
		return ""
	}
	if hasScheme(relative) {
		return relative
	}
	if strings.HasPrefix(relative, "//") {
		return n.Canonicalize(relative)
	}
	base = n.Canonicalize(base)
	if base == "" {
		return ""
	}
	if strings.HasPrefix(relative, "?") {
		return stripQuery(base) + relative
	}
	bu, err := url.Parse(base)
	if err != nil || bu.Host == "" {
		return ""
	}

	relPath, relQuery, hasQuery := strings.Cut(relative, "?")
	relPath, _, _ = strings.Cut(relPath, "#")

	joined := relPath
	if !strings.HasPrefix(relPath, "/") {
		dir := bu.EscapedPath()
		if idx := strings.LastIndex(dir, "/"); idx >= 0 {
			dir = dir[:idx]
		} else {
			dir = ""
		}
		joined = dir + "/" + relPath
	}

	resolved := bu.Scheme + "://" + bu.Host + collapseDotSegments(joined)
	if hasQuery && relQuery != "" {
		resolved += "?" + relQuery
	}
	return resolved
}

func hasScheme(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != ""
}

func stripQuery(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

// collapseDotSegments removes "//", "/./" and "/seg/../" until none remain.
// Every step shortens the path, so the loop is bounded by its length.
func collapseDotSegments(path string) string {
	limit := len(path) + 1
	for range limit {
		next := collapseOnce(path)
		if next == path {
			break
		}
		path = next
	}
	if path == "" {
		return "/"
	}
	return path
}

func collapseOnce(path string) string {
	if idx := strings.Index(path, "//"); idx >= 0 {
		return path[:idx] + path[idx+1:]
	}
	if idx := strings.Index(path, "/./"); idx >= 0 {
		return path[:idx] + path[idx+2:]
	}
	if strings.HasSuffix(path, "/.") {
		return path[:len(path)-1]
	}
	if idx := strings.Index(path, "/../"); idx >= 0 {
		parent := strings.LastIndex(path[:idx], "/")
		if parent < 0 {
			return path[idx+3:]
		}
		return path[:parent] + path[idx+3:]
	}
	if strings.HasSuffix(path, "/..") {
		idx := len(path) - 3
		parent := strings.LastIndex(path[:idx], "/")
		if parent < 0 {
			return "/"
		}
		return path[:parent+1]
	}
	return path
}
