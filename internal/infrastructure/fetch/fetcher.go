// Package fetch provides the HTTP page fetcher used to read restaurant and
// recipe websites.
package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/sommekat/sommelier/internal/ports/outbound"
	"github.com/sommekat/sommelier/pkg/errors"
)

// Browser-like request headers. Several restaurant sites reject requests
// that do not look like they come from a browser.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	DefaultAcceptLanguage = "en-GB,en;q=0.9"
)

const maxRedirects = 10

// Recorder receives one measurement per fetch.
type Recorder interface {
	FetchCompleted(outcome string, elapsed time.Duration)
}

// Config holds fetcher configuration
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int64

	// Per-host politeness limit.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the production fetch settings.
func DefaultConfig() Config {
	return Config{
		UserAgent:         DefaultUserAgent,
		AcceptLanguage:    DefaultAcceptLanguage,
		Timeout:           15 * time.Second,
		MaxBodyBytes:      10 << 20,
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// Fetcher implements outbound.PageFetcher over HTTP.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	recorder Recorder
	logger   *zap.Logger

	now       func() time.Time
	mu        sync.Mutex
	limiters  map[string]*hostLimiter
	lastSweep time.Time
}

type hostLimiter struct {
	*rate.Limiter
	lastUsed time.Time
}

// limiterIdleTTL is how long a host's limiter survives without use. A limiter
// idle this long has refilled its burst, so dropping it changes nothing.
const limiterIdleTTL = 5 * time.Minute

var _ outbound.PageFetcher = (*Fetcher)(nil)

// New creates a fetcher. recorder may be nil.
func New(cfg Config, recorder Recorder, logger *zap.Logger) (*Fetcher, error) {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = defaults.AcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	// Compression is negotiated by hand so brotli can be offered alongside gzip.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		recorder: recorder,
		logger:   logger.Named("fetch"),
		now:      time.Now,
		limiters: make(map[string]*hostLimiter),
	}, nil
}

// Fetch performs a GET with browser headers. Transport failures and non-2xx
// responses become FETCH_FAILED errors; cancellation of ctx is returned as is.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*outbound.FetchedPage, error) {
	start := time.Now()
	page, outcome, err := f.fetch(ctx, rawURL)
	elapsed := time.Since(start)

	if f.recorder != nil {
		f.recorder.FetchCompleted(outcome, elapsed)
	}

	fields := []zap.Field{
		zap.String("url", rawURL),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		f.logger.Debug("Fetch failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	f.logger.Debug("Fetched page", append(fields, zap.Int("bytes", len(page.Body)))...)
	return page, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*outbound.FetchedPage, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, "invalid_url", errors.NewInputError(fmt.Sprintf("invalid URL %q", rawURL))
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if err := f.limiter(parsed.Hostname()).Wait(ctx); err != nil {
		return nil, "rate_limited", f.transportError(ctx, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "invalid_url", errors.NewInputError(fmt.Sprintf("invalid URL %q", rawURL))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", DefaultAccept)
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "error", f.transportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, "http_" + strconv.Itoa(resp.StatusCode), errors.NewFetchFailedError(rawURL, resp.StatusCode, nil)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, "error", errors.NewFetchFailedError(rawURL, resp.StatusCode, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, "error", f.transportError(ctx, rawURL, err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, "too_large", errors.NewFetchFailedError(
			rawURL, resp.StatusCode,
			fmt.Errorf("response body exceeds %d bytes", f.cfg.MaxBodyBytes),
		)
	}

	return &outbound.FetchedPage{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, "ok", nil
}

// transportError keeps caller cancellation distinguishable from an
// unreachable host.
func (f *Fetcher) transportError(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return errors.NewFetchFailedError(rawURL, 0, err)
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if now.Sub(f.lastSweep) >= limiterIdleTTL {
		for h, l := range f.limiters {
			if now.Sub(l.lastUsed) >= limiterIdleTTL {
				delete(f.limiters, h)
			}
		}
		f.lastSweep = now
	}

	l, ok := f.limiters[host]
	if !ok {
		l = &hostLimiter{Limiter: rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSecond), f.cfg.Burst)}
		f.limiters[host] = l
	}
	l.lastUsed = now
	return l.Limiter
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
