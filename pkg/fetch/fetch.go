// Package fetch streams distribution archives from a pluggable backend and
// writes them to disk.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Event is delivered to an EventFunc while a download progresses.
type Event interface {
	isEvent()
}

// ContentLengthKnown is sent once, before any data, when the size of the
// resource is advertised.
type ContentLengthKnown struct {
	Length int64
}

// DataReceived carries one chunk of the body. Chunk is only valid for the
// duration of the callback.
type DataReceived struct {
	Chunk []byte
}

func (ContentLengthKnown) isEvent() {}
func (DataReceived) isEvent()       {}

// EventFunc consumes download events. Returning an error aborts the
// transfer; the error is reported with KindSink.
type EventFunc func(Event) error

// Backend performs one download, always from byte zero, calling onEvent
// synchronously from its read loop.
//
// New backends implement this interface and register a name in NewBackend.
type Backend interface {
	Name() string
	Download(ctx context.Context, u *url.URL, onEvent EventFunc) error
}

// Backend names accepted by NewBackend.
const (
	BackendHTTP = "http"
	BackendCurl = "curl"
)

// NewBackend returns the backend registered under name.
func NewBackend(name string, opts HTTPOptions) (Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendHTTP:
		return NewHTTPBackend(opts), nil
	case BackendCurl:
		return CurlBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown download backend %q", name)
	}
}

// Download parses rawURL and runs it through backend.
func Download(ctx context.Context, backend Backend, rawURL string, onEvent EventFunc) error {
	u, err := ParseURL(rawURL)
	if err != nil {
		return err
	}
	return backend.Download(ctx, u, onEvent)
}

// ParseURL parses an absolute download URL.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}
	if u.Scheme == "" {
		return nil, &Error{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("missing URL scheme")}
	}
	return u, nil
}

// CurlBackend is the libcurl-style backend. It is declared so configurations
// selecting it fail loudly instead of silently falling back.
type CurlBackend struct{}

// Name implements Backend.
func (CurlBackend) Name() string { return BackendCurl }

// Download implements Backend.
func (CurlBackend) Download(_ context.Context, u *url.URL, _ EventFunc) error {
	return &Error{Kind: KindUnsupported, URL: u.String(), Err: ErrNotImplemented}
}
