package crawler

import (
	"strconv"
	"strings"
	"time"
)

// StatusFetchFailed is the HTTP code recorded when a request never produced a
// response (DNS failure, refused connection, timeout, aborted redirect chain).
const StatusFetchFailed = 0

// DefaultMaxRedirects caps the redirects a single check follows.
const DefaultMaxRedirects = 10

// Link is the per-URL check record kept in the checked set.
type Link struct {
	// RequestedURL is the canonical URL that was dispatched.
	RequestedURL string `json:"requested_url"`
	// EffectiveURL is the canonical URL after redirects.
	EffectiveURL string `json:"effective_url"`
	// HTTPCode is the final status, or StatusFetchFailed.
	HTTPCode int `json:"http_code"`
	// RedirectCount is the number of redirects followed.
	RedirectCount int `json:"redirect_count"`
	// MIMEType is the declared content type without parameters. May be empty.
	MIMEType string `json:"mime_type,omitempty"`
	// IsInternal is decided from the requested URL's host.
	IsInternal bool `json:"is_internal"`
}

// IsHTML reports whether the declared content type is text/html.
func (l Link) IsHTML() bool {
	return strings.Contains(strings.ToLower(l.MIMEType), "text/html")
}

// Failed reports whether the fetch never produced a response.
func (l Link) Failed() bool {
	return l.HTTPCode == StatusFetchFailed
}

// HitRedirectCap reports whether the check stopped at the redirect limit.
func (l Link) HitRedirectCap(maxRedirects int) bool {
	return maxRedirects > 0 && l.RedirectCount >= maxRedirects
}

// LogLine renders the persisted log entry for a completed check.
func (l Link) LogLine() string {
	var b strings.Builder
	b.WriteString("Checked ")
	b.WriteString(l.RequestedURL)
	b.WriteString(" - ")
	b.WriteString(strconv.Itoa(l.HTTPCode))
	if l.RedirectCount > 0 {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(l.RedirectCount))
		b.WriteString(" -> ")
		b.WriteString(l.EffectiveURL)
		b.WriteString(")")
	}
	return b.String()
}

// FetchResult is what the Fetcher reports for a single check.
type FetchResult struct {
	HTTPCode      int
	EffectiveURL  string
	RedirectCount int
	MIMEType      string
	Duration      time.Duration
}

// PageLinks is what the PageFetcher reports for an internal HTML page.
type PageLinks struct {
	// Links are the raw, trimmed, non-empty attribute values in document order.
	Links []string
	// CacheID is the sequential cache identifier, or 0 when nothing was cached.
	CacheID int
	// Bytes is the size of the downloaded body.
	Bytes int64
}

// Verdict is the outcome of running a URL through the domain policy.
type Verdict int

// Verdicts returned by DomainPolicy.Admit.
const (
	VerdictAccept Verdict = iota
	VerdictUnparseable
	VerdictInvalidHost
	VerdictSkipped
)

// String implements fmt.Stringer; the value doubles as a metrics label.
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictUnparseable:
		return "unparseable"
	case VerdictInvalidHost:
		return "invalid_host"
	case VerdictSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
