// Package collyfetcher checks URLs and downloads pages using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/extract"
)

// DefaultUserAgent identifies the crawler when none is configured.
const DefaultUserAgent = "linkcrawler/1.0 (+https://github.com/JakeFAU/linkcrawler)"

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	ConnectTimeout time.Duration
	Timeout        time.Duration
	MaxRedirects   int
	MaxBodyBytes   int
	// HeadFallback retries a check with GET when the server rejects HEAD with 405.
	HeadFallback bool
}

// PageStore keeps downloaded page bodies and returns their cache id.
type PageStore interface {
	Store(ctx context.Context, body []byte) (int, error)
}

// Fetcher implements crawler.Fetcher and crawler.PageFetcher. Every request
// gets its own collector; the transport and cookie sessions are shared.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	sessions  *sessions
	pages     PageStore
	logger    *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. pages may be nil, in which case nothing is cached.
func New(cfg Config, pages PageStore, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = crawler.DefaultMaxRedirects
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(cfg.ConnectTimeout),
		sessions:  newSessions(),
		pages:     pages,
		logger:    logger,
	}
}

// Fetch checks rawURL with a HEAD request, following up to MaxRedirects
// redirects. HTTP error statuses are results, not errors; an error means no
// response was received.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, useSession bool) (crawler.FetchResult, error) {
	start := time.Now()
	result, err := f.check(ctx, http.MethodHead, rawURL, useSession)
	if err == nil && f.cfg.HeadFallback && result.HTTPCode == http.StatusMethodNotAllowed {
		f.logger.Debug("head rejected, retrying with get", zap.String("url", rawURL))
		result, err = f.check(ctx, http.MethodGet, rawURL, useSession)
	}
	if err != nil {
		return crawler.FetchResult{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (f *Fetcher) check(ctx context.Context, method, rawURL string, useSession bool) (crawler.FetchResult, error) {
	var (
		result    crawler.FetchResult
		redirects int
		fetchErr  error
	)
	collector := f.buildCollector(ctx, rawURL, useSession, &redirects)
	f.configureCheckHooks(collector, &result, &fetchErr)

	visit := collector.Visit
	if method == http.MethodHead {
		visit = collector.Head
	}
	if err := runCollector(ctx, visit, rawURL, &fetchErr); err != nil {
		return crawler.FetchResult{}, err
	}
	result.RedirectCount = redirects
	return result, nil
}

// FetchLinks downloads the page at effectiveURL, caches the body, and returns
// the raw references found in it.
func (f *Fetcher) FetchLinks(ctx context.Context, effectiveURL string) (crawler.PageLinks, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(ctx, effectiveURL, true, new(int))
	f.configurePageHooks(collector, &body, &fetchErr)
	if err := runCollector(ctx, collector.Visit, effectiveURL, &fetchErr); err != nil {
		return crawler.PageLinks{}, err
	}

	links, err := extract.Links(bytes.NewReader(body))
	if err != nil {
		return crawler.PageLinks{}, fmt.Errorf("extract links from %s: %w", effectiveURL, err)
	}
	out := crawler.PageLinks{Links: links, Bytes: int64(len(body))}
	if f.pages == nil {
		return out, nil
	}
	id, err := f.pages.Store(ctx, body)
	if err != nil {
		f.logger.Warn("page cache write failed", zap.String("effective_url", effectiveURL), zap.Error(err))
		return out, nil
	}
	out.CacheID = id
	return out, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, rawURL string, useSession bool, redirects *int) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	)
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(f.cfg.Timeout)
	if jar := f.sessions.jar(rawURL, useSession); jar != nil {
		collector.SetCookieJar(jar)
	} else {
		collector.DisableCookies()
	}
	collector.SetRedirectHandler(limitRedirects(f.cfg.MaxRedirects, redirects))
	return collector
}

// limitRedirects follows at most limit redirects and records how many were
// followed. Past the cap the last redirect response becomes the result.
func limitRedirects(limit int, count *int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) > limit {
			return http.ErrUseLastResponse
		}
		*count = len(via)
		return nil
	}
}

func (f *Fetcher) configureCheckHooks(hooks collectorHooks, result *crawler.FetchResult, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResult{
			HTTPCode: r.StatusCode,
			MIMEType: mediaType(r.Headers),
		}
		if r.Request != nil && r.Request.URL != nil {
			result.EffectiveURL = r.Request.URL.String()
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) configurePageHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, visit func(string) error, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// mediaType returns the lowercased Content-Type without parameters.
func mediaType(headers *http.Header) string {
	if headers == nil {
		return ""
	}
	raw := headers.Get("Content-Type")
	if raw == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func newHTTPTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
