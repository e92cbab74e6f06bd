// Package auth provides http.RoundTripper implementations that attach
// credentials to requests for remote raster inputs.
package auth

import "net/http"

// APIKeyTransport injects an API key header into outgoing requests.
type APIKeyTransport struct {
	Key    string
	Header string
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	header := t.Header
	if header == "" {
		header = "Authorization"
	}
	if t.Key != "" {
		clone.Header.Set(header, t.Key)
	}
	return base(t.Base).RoundTrip(clone)
}

// BearerTokenTransport injects a bearer token.
type BearerTokenTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.Token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.Token)
	}
	return base(t.Base).RoundTrip(clone)
}

// HeaderTransport sets a fixed group of headers on every request.
// Existing values for the same header names are replaced.
type HeaderTransport struct {
	Header http.Header
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, values := range t.Header {
		clone.Header.Del(key)
		for _, value := range values {
			clone.Header.Add(key, value)
		}
	}
	return base(t.Base).RoundTrip(clone)
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
