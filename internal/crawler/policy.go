package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DomainPolicy classifies URLs as internal or external and decides whether
// they are skipped. It is built once per crawl and never mutated afterwards.
type DomainPolicy struct {
	internal    map[string]struct{}
	skipDomains map[string]struct{}
	skipPaths   map[string][]string
}

// NewDomainPolicy builds a policy from the seed URLs (which define the
// internal domains), whole domains to skip, and domain+path prefixes to skip.
// Every configured entry must carry an extractable host; otherwise a
// *ConfigError wrapping ErrDomainResolution is returned.
func NewDomainPolicy(seeds, skipDomains, skipURLs []string) (*DomainPolicy, error) {
	p := &DomainPolicy{
		internal:    make(map[string]struct{}),
		skipDomains: make(map[string]struct{}),
		skipPaths:   make(map[string][]string),
	}
	if err := p.setDomains(seeds); err != nil {
		return nil, err
	}
	if err := p.setSkipDomains(skipDomains); err != nil {
		return nil, err
	}
	if err := p.setSkipURLs(skipURLs); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DomainPolicy) setDomains(seeds []string) error {
	for _, raw := range seeds {
		host, err := seedHost(raw)
		if err != nil {
			return configErr("links", raw, err)
		}
		p.internal[host] = struct{}{}
	}
	return nil
}

// seedHost extracts the lowercase host of a seed. Seeds are crawled as
// given, so they must be absolute http(s) or protocol-relative URLs.
func seedHost(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	u, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDomainResolution, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		if !strings.HasPrefix(value, "//") {
			return "", fmt.Errorf("%w: missing scheme", ErrDomainResolution)
		}
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrDomainResolution, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrDomainResolution
	}
	return host, nil
}

func (p *DomainPolicy) setSkipDomains(domains []string) error {
	for _, raw := range domains {
		host, _, err := configuredHost(raw)
		if err != nil {
			return configErr("skip_domains", raw, err)
		}
		p.skipDomains[host] = struct{}{}
	}
	return nil
}

func (p *DomainPolicy) setSkipURLs(urls []string) error {
	for _, raw := range urls {
		host, path, err := configuredHost(raw)
		if err != nil {
			return configErr("skip_urls", raw, err)
		}
		p.skipPaths[host] = append(p.skipPaths[host], path)
	}
	return nil
}

// configuredHost extracts the lowercase host and path (default "/") from a
// skip entry. Bare hostnames such as "example.com" are accepted.
func configuredHost(raw string) (string, string, error) {
	value := strings.TrimSpace(raw)
	if value != "" && !strings.Contains(value, "://") && !strings.HasPrefix(value, "//") {
		value = "http://" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrDomainResolution, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", ErrDomainResolution
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return host, path, nil
}

// HasValidDomain reports whether rawURL has a host that is not skipped and
// satisfies hostname grammar.
func (p *DomainPolicy) HasValidDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if _, skipped := p.skipDomains[host]; skipped {
		return false
	}
	return validHostname(host)
}

// IsInternal reports whether rawURL's host is one of the seed hosts.
func (p *DomainPolicy) IsInternal(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := p.internal[strings.ToLower(u.Hostname())]
	return ok
}

// ShouldSkip reports whether rawURL's host is skipped entirely or its path
// starts with a registered skip prefix for that host.
func (p *DomainPolicy) ShouldSkip(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return p.skipHostPath(strings.ToLower(u.Hostname()), u.EscapedPath())
}

func (p *DomainPolicy) skipHostPath(host, path string) bool {
	if _, skipped := p.skipDomains[host]; skipped {
		return true
	}
	prefixes := p.skipPaths[host]
	if len(prefixes) == 0 {
		return false
	}
	if path == "" {
		path = "/"
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Admit runs the full filter and returns why a URL was rejected, if it was.
// Rejections are expected control flow, never errors.
func (p *DomainPolicy) Admit(rawURL string) Verdict {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return VerdictUnparseable
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return VerdictInvalidHost
	}
	if p.skipHostPath(host, u.EscapedPath()) {
		return VerdictSkipped
	}
	if !validHostname(host) {
		return VerdictInvalidHost
	}
	return VerdictAccept
}

// InternalDomains returns a copy of the internal host set.
func (p *DomainPolicy) InternalDomains() []string {
	out := make([]string, 0, len(p.internal))
	for host := range p.internal {
		out = append(out, host)
	}
	return out
}
