// Package fetcher downloads listing feeds and attachment files over HTTP and
// decodes the JSON, XML, CSV, XLSX and ZIP payloads they arrive in.
package fetcher

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
)

// ErrTooLarge is returned when a response body exceeds the configured limit.
var ErrTooLarge = eris.New("fetcher: response body exceeds size limit")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Get fetches the URL and buffers the body up to the size limit. Client
	// errors (4xx) are returned as a Response, not an error, so callers can
	// decide what a 404 means to them.
	Get(ctx context.Context, url string) (*Response, error)
}

// Response is a buffered HTTP response.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response's Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}
