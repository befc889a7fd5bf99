package collyfetcher

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// sessions keeps one cookie jar per internal host for the lifetime of a crawl.
type sessions struct {
	mu   sync.Mutex
	jars map[string]http.CookieJar
}

func newSessions() *sessions {
	return &sessions{jars: make(map[string]http.CookieJar)}
}

// jar returns the session jar for rawURL's host, creating it on first use.
// It returns nil when use is false or the URL has no host.
func (s *sessions) jar(rawURL string, use bool) http.CookieJar {
	if !use {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())

	s.mu.Lock()
	defer s.mu.Unlock()
	if jar, ok := s.jars[host]; ok {
		return jar
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil
	}
	s.jars[host] = jar
	return jar
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jars)
}
