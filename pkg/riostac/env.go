package riostac

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/go-rio-stac/auth"
	"github.com/robert-malhotra/go-rio-stac/pkg/client"
)

// GDAL's GDAL_HTTP_RETRY_DELAY default.
const defaultRetryDelay = 30 * time.Second

var envKeys = map[string]bool{
	"GDAL_HTTP_TIMEOUT":     true,
	"GDAL_HTTP_MAX_RETRY":   true,
	"GDAL_HTTP_RETRY_DELAY": true,
	"GDAL_HTTP_USERAGENT":   true,
	"GDAL_HTTP_BEARER":      true,
	"GDAL_HTTP_HEADERS":     true,
	"GDAL_HTTP_USERPWD":     true,
	"CPL_CURL_VERBOSE":      true,
	"AWS_REGION":            true,
	"AWS_DEFAULT_REGION":    true,
	"AWS_PROFILE":           true,
	"AWS_NO_SIGN_REQUEST":   true,
	"AWS_S3_ENDPOINT":       true,
	"AWS_HTTPS":             true,
	"AWS_VIRTUAL_HOSTING":   true,
}

// Env is a set of GDAL-style configuration options scoped to one CreateItem
// call. It only configures how inputs are fetched; the process environment
// is never read or modified.
type Env struct {
	vars map[string]string
}

// NewEnv copies vars into a new Env.
func NewEnv(vars map[string]string) Env {
	e := Env{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		e.vars[k] = v
	}
	return e
}

// Get returns the value of a configuration option.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Unknown returns the sorted names of options Env does not act on.
func (e Env) Unknown() []string {
	var out []string
	for k := range e.vars {
		if !envKeys[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ClientOptions translates the configuration into fetcher options.
func (e Env) ClientOptions(logger *slog.Logger) ([]client.Option, error) {
	var opts []client.Option

	if v, ok := e.Get("GDAL_HTTP_TIMEOUT"); ok {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("riostac: invalid GDAL_HTTP_TIMEOUT %q: %w", v, err)
		}
		opts = append(opts, client.WithTimeout(time.Duration(secs*float64(time.Second))))
	}

	_, hasRetry := e.Get("GDAL_HTTP_MAX_RETRY")
	_, hasDelay := e.Get("GDAL_HTTP_RETRY_DELAY")
	if hasRetry || hasDelay {
		maxRetry, delay := 0, defaultRetryDelay
		if v, ok := e.Get("GDAL_HTTP_MAX_RETRY"); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("riostac: invalid GDAL_HTTP_MAX_RETRY %q", v)
			}
			maxRetry = n
		}
		if v, ok := e.Get("GDAL_HTTP_RETRY_DELAY"); ok {
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("riostac: invalid GDAL_HTTP_RETRY_DELAY %q", v)
			}
			delay = time.Duration(secs * float64(time.Second))
		}
		opts = append(opts, client.WithRetryPolicy(client.NewRetryPolicy(delay), maxRetry))
	}

	if v, ok := e.Get("GDAL_HTTP_USERAGENT"); ok {
		opts = append(opts, client.WithUserAgent(v))
	}

	var rt http.RoundTripper
	if v, ok := e.Get("GDAL_HTTP_HEADERS"); ok {
		header, err := parseHeaders(v)
		if err != nil {
			return nil, err
		}
		rt = &auth.HeaderTransport{Header: header, Base: rt}
	}
	if v, ok := e.Get("GDAL_HTTP_USERPWD"); ok {
		rt = &auth.APIKeyTransport{
			Key:    "Basic " + base64.StdEncoding.EncodeToString([]byte(v)),
			Header: "Authorization",
			Base:   rt,
		}
	}
	if v, ok := e.Get("GDAL_HTTP_BEARER"); ok {
		rt = &auth.BearerTokenTransport{Token: v, Base: rt}
	}
	if rt != nil {
		opts = append(opts, client.WithTransport(rt))
	}

	if e.bool("CPL_CURL_VERBOSE", false) {
		opts = append(opts, client.WithMiddleware(requestLogger(logger)))
	}

	opts = append(opts, client.WithS3Options(e.s3Options()))

	for _, k := range e.Unknown() {
		logger.Debug("ignoring configuration option", "name", k)
	}
	return opts, nil
}

// requestLogger logs every outgoing request with its header names. Values
// are left out since they may carry credentials.
func requestLogger(logger *slog.Logger) client.Middleware {
	return func(ctx context.Context, req *http.Request) error {
		names := make([]string, 0, len(req.Header))
		for name := range req.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		logger.DebugContext(ctx, "http request", "method", req.Method, "url", req.URL.Redacted(), "headers", names)
		return nil
	}
}

func (e Env) s3Options() client.S3Options {
	var s3 client.S3Options
	if v, ok := e.Get("AWS_REGION"); ok {
		s3.Region = v
	} else if v, ok := e.Get("AWS_DEFAULT_REGION"); ok {
		s3.Region = v
	}
	s3.Profile, _ = e.Get("AWS_PROFILE")
	s3.Anonymous = e.bool("AWS_NO_SIGN_REQUEST", false)
	s3.UsePathStyle = !e.bool("AWS_VIRTUAL_HOSTING", true)

	if host, ok := e.Get("AWS_S3_ENDPOINT"); ok && host != "" {
		if !strings.Contains(host, "://") {
			scheme := "https://"
			if !e.bool("AWS_HTTPS", true) {
				scheme = "http://"
			}
			host = scheme + host
		}
		s3.Endpoint = host
	}
	return s3
}

// bool follows GDAL's convention: NO, FALSE, OFF and 0 are false, anything
// else is true.
func (e Env) bool(key string, def bool) bool {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NO", "FALSE", "OFF", "0":
		return false
	default:
		return true
	}
}

// parseHeaders reads "Name: value" pairs separated by newlines, or by commas
// when the value is a single line.
func parseHeaders(v string) (http.Header, error) {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	sep := "\n"
	if !strings.Contains(v, "\n") {
		sep = ","
	}

	header := http.Header{}
	for _, line := range strings.Split(v, sep) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("riostac: invalid GDAL_HTTP_HEADERS entry %q", line)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}
