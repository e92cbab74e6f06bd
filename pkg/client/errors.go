package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme is returned for hrefs that are not local, http(s) or s3.
	ErrUnsupportedScheme = errors.New("client: unsupported URL scheme")
)

// FetchError represents a non-2xx HTTP response for an input href.
type FetchError struct {
	Status int
	URL    string
	Detail string
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Detail == "" {
		return fmt.Sprintf("client: GET %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("client: GET %s: status %d (%s)", e.URL, e.Status, e.Detail)
}
