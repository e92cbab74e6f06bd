// Package client fetches raster inputs from local paths, HTTP(S) URLs and S3.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Middleware manipulates an outgoing *http.Request before it is executed.
// The context is provided for cancellation and to support auth implementations
// that may need to perform async operations (e.g., token refresh).
type Middleware func(context.Context, *http.Request) error

// Logger represents the minimal logging interface used by the fetcher.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Option configures a Fetcher during construction.
type Option func(*Fetcher) error

// ProgressFunc reports cumulative bytes read and the expected total (-1 when unknown).
type ProgressFunc func(read, total int64)

// Fetcher reads whole raster files into memory.
type Fetcher struct {
	httpClient  *http.Client
	middleware  []Middleware
	retryPolicy RetryPolicy
	maxRetries  int
	userAgent   string
	logger      Logger
	progress    ProgressFunc

	s3Options S3Options
	s3Client  S3API
}

// -----------------------------------------------------------------------------
// Fetcher options
// -----------------------------------------------------------------------------

// WithTimeout sets the HTTP timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) error {
		if d > 0 {
			f.httpClient.Timeout = d
		}
		return nil
	}
}

// WithTransport replaces the round tripper of the HTTP client.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) error {
		f.httpClient.Transport = rt
		return nil
	}
}

// WithMiddleware registers one or more request-middleware functions.
func WithMiddleware(mw ...Middleware) Option {
	return func(f *Fetcher) error {
		f.middleware = append(f.middleware, mw...)
		return nil
	}
}

// WithRetryPolicy configures the retry behavior and the maximum number of
// retries after the first attempt.
func WithRetryPolicy(policy RetryPolicy, maxRetries int) Option {
	return func(f *Fetcher) error {
		f.retryPolicy = policy
		f.maxRetries = maxRetries
		return nil
	}
}

// WithUserAgent overrides the User-Agent header of HTTP requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) error {
		if ua != "" {
			f.userAgent = ua
		}
		return nil
	}
}

// WithLogger registers a logger used for request lifecycle events.
func WithLogger(logger Logger) Option {
	return func(f *Fetcher) error {
		f.logger = logger
		return nil
	}
}

// WithProgress registers a callback invoked while input bytes are read.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Fetcher) error {
		f.progress = fn
		return nil
	}
}

// New constructs a Fetcher with provided options.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		retryPolicy: DefaultRetryPolicy,
		maxRetries:  3,
		userAgent:   "go-rio-stac/0.1",
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Fetch returns the content of href. Supported forms are local paths,
// file:// URLs, http(s):// URLs and s3://bucket/key URLs.
func (f *Fetcher) Fetch(ctx context.Context, href string) ([]byte, error) {
	u, err := url.Parse(href)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return f.readLocal(ctx, href)
	}

	switch u.Scheme {
	case "file":
		return f.readLocal(ctx, u.Path)
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "s3":
		return f.fetchS3(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) readLocal(ctx context.Context, path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	total := int64(-1)
	if info, err := file.Stat(); err == nil {
		total = info.Size()
	}
	return f.readAll(ctx, file, total)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	if f.logger != nil {
		f.logger.Debugf("fetch: GET %s", rawURL)
	}

	resp, err := f.retry(ctx, func() (*http.Response, error) {
		return f.doRequest(ctx, http.MethodGet, rawURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if f.logger != nil {
			f.logger.Errorf("fetch: request failed status=%d url=%s", resp.StatusCode, rawURL)
		}
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL, Detail: string(detail)}
	}

	return f.readAll(ctx, resp.Body, resp.ContentLength)
}

// doRequest is the one place that builds a request, runs middleware and executes it.
func (f *Fetcher) doRequest(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	for _, mw := range f.middleware {
		if err := mw(ctx, req); err != nil {
			return nil, fmt.Errorf("error applying middleware for %s: %w", rawURL, err)
		}
	}

	return f.httpClient.Do(req)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	logger *slog.Logger
}

// SlogLogger returns a Logger writing to l. A nil l returns nil.
func SlogLogger(l *slog.Logger) Logger {
	if l == nil {
		return nil
	}
	return slogLogger{logger: l}
}

func (s slogLogger) Debugf(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}

func (s slogLogger) Errorf(format string, args ...any) {
	s.logger.Error(fmt.Sprintf(format, args...))
}
