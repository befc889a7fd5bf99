package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/storage"
	"github.com/JakeFAU/linkcrawler/internal/storage/memory"
)

const pageHTML = `<html><body><a href="/ok">ok</a><img src="logo.png"></body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("<html></html>"))
		}
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/r1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/r2", http.StatusFound)
	})
	mux.HandleFunc("/r2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		http.Redirect(w, r, fmt.Sprintf("/loop?n=%d", n+1), http.StatusFound)
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("sid"); err == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pageHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherFetch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{MaxRedirects: 3, HeadFallback: true, Timeout: 5 * time.Second}, nil, nil)

	tests := []struct {
		name      string
		path      string
		code      int
		effective string
		redirects int
		mime      string
	}{
		{name: "ok", path: "/ok", code: 200, effective: "/ok", mime: "text/html"},
		{name: "not found is a result", path: "/missing", code: 404, effective: "/missing", mime: "text/plain"},
		{name: "redirect chain", path: "/r1", code: 200, effective: "/ok", redirects: 2, mime: "text/html"},
		{name: "redirect cap", path: "/loop", code: 302, effective: "/loop?n=3", redirects: 3},
		{name: "head fallback", path: "/nohead", code: 200, effective: "/nohead", mime: "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := f.Fetch(context.Background(), srv.URL+tt.path, false)
			require.NoError(t, err)
			assert.Equal(t, tt.code, res.HTTPCode)
			assert.Equal(t, srv.URL+tt.effective, res.EffectiveURL)
			assert.Equal(t, tt.redirects, res.RedirectCount)
			if tt.mime != "" {
				assert.Equal(t, tt.mime, res.MIMEType)
			}
		})
	}
}

func TestFetcherWithoutHeadFallback(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{}, nil, nil)
	res, err := f.Fetch(context.Background(), srv.URL+"/nohead", false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.HTTPCode)
}

func TestFetcherConnectionFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/"
	srv.Close()

	f := New(Config{ConnectTimeout: time.Second, Timeout: 2 * time.Second}, nil, nil)
	_, err := f.Fetch(context.Background(), target, false)
	require.Error(t, err)
}

func TestFetcherCanceled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL+"/ok", false)
	require.Error(t, err)
}

func TestFetcherSessions(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{}, nil, nil)

	first, err := f.Fetch(context.Background(), srv.URL+"/session", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, first.HTTPCode)
	second, err := f.Fetch(context.Background(), srv.URL+"/session", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, second.HTTPCode, "session cookie should be replayed")

	anon, err := f.Fetch(context.Background(), srv.URL+"/session", false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, anon.HTTPCode, "cookies are only kept for sessions")
	assert.Equal(t, 1, f.sessions.len())
}

func TestFetcherFetchLinks(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	blobs := memory.NewBlobStore()
	f := New(Config{}, storage.NewPageCache(blobs), nil)

	page, err := f.FetchLinks(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ok", "logo.png"}, page.Links)
	assert.Equal(t, 1, page.CacheID)
	assert.EqualValues(t, len(pageHTML), page.Bytes)

	cached, ok := blobs.Get("file1.html")
	require.True(t, ok)
	assert.Equal(t, pageHTML, string(cached))
}

func TestFetcherFetchLinksWithoutCache(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{}, nil, nil)
	page, err := f.FetchLinks(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Zero(t, page.CacheID)
	assert.Len(t, page.Links, 2)
}

func TestConfigureCheckHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	var result crawler.FetchResult
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCheckHooks(hooks, &result, &fetchErr)
	if hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Headers:    &http.Header{"Content-Type": {"Text/HTML; charset=UTF-8"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/final"),
		},
	})
	if result.HTTPCode != http.StatusCreated || result.EffectiveURL != "https://example.com/final" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.MIMEType != "text/html" {
		t.Fatalf("expected media type without parameters, got %q", result.MIMEType)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestLimitRedirects(t *testing.T) {
	t.Parallel()

	var count int
	check := limitRedirects(2, &count)
	via := []*http.Request{{}, {}}
	if err := check(nil, via[:1]); err != nil {
		t.Fatalf("first redirect rejected: %v", err)
	}
	if err := check(nil, via); err != nil {
		t.Fatalf("second redirect rejected: %v", err)
	}
	if err := check(nil, append(via, &http.Request{})); !errors.Is(err, http.ErrUseLastResponse) {
		t.Fatalf("expected ErrUseLastResponse, got %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "text/html", want: "text/html"},
		{header: "text/html; charset=utf-8", want: "text/html"},
		{header: "TEXT/HTML;;", want: "text/html"},
		{header: "application/xhtml+xml", want: "application/xhtml+xml"},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Content-Type", tt.header)
		}
		assert.Equal(t, tt.want, mediaType(&h), tt.header)
	}
	assert.Empty(t, mediaType(nil))
}

func TestSessionsJar(t *testing.T) {
	t.Parallel()

	s := newSessions()
	a := s.jar("http://site.test/a", true)
	require.NotNil(t, a)
	assert.Same(t, a, s.jar("http://SITE.test:8080/b", true))
	assert.NotSame(t, a, s.jar("http://www.site.test/", true))
	assert.Nil(t, s.jar("http://site.test/", false))
	assert.Nil(t, s.jar("/no-host", true))
	assert.Equal(t, 2, s.len())
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
