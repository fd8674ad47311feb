package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rustup-plus-plus/distpack/pkg/httpclient"
)

// DefaultUserAgent identifies distpack to distribution servers.
const DefaultUserAgent = "distpack/dev"

const chunkSize = 32 * 1024

// HTTPOptions configures the HTTP backend.
type HTTPOptions struct {
	UserAgent      string
	ConnectTimeout time.Duration
	// FileRoot serves file:// URLs from a local directory; "/" by default.
	FileRoot string
}

// HTTPBackend downloads over HTTP(S) and file:// with net/http.
type HTTPBackend struct {
	client *http.Client
}

// NewHTTPBackend creates the HTTP backend.
func NewHTTPBackend(opts HTTPOptions) *HTTPBackend {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.FileRoot == "" {
		opts.FileRoot = "/"
	}
	return &HTTPBackend{
		client: httpclient.New(httpclient.Options{
			UserAgent:      opts.UserAgent,
			ConnectTimeout: opts.ConnectTimeout,
			FileRoot:       opts.FileRoot,
		}),
	}
}

// Name implements Backend.
func (b *HTTPBackend) Name() string { return BackendHTTP }

// Download implements Backend.
func (b *HTTPBackend) Download(ctx context.Context, u *url.URL, onEvent EventFunc) error {
	rawURL := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		kind := KindStatus
		if resp.StatusCode == http.StatusNotFound {
			kind = KindNotFound
		}
		return &Error{Kind: kind, URL: rawURL, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength >= 0 {
		if err := onEvent(ContentLengthKnown{Length: resp.ContentLength}); err != nil {
			return &Error{Kind: KindSink, URL: rawURL, Err: err}
		}
	}

	return stream(rawURL, resp.Body, onEvent)
}

// stream forwards body to onEvent chunk by chunk. A callback failure wins
// over a read failure reported in the same step: the sink error is the root
// cause the user has to act on.
func stream(rawURL string, body io.Reader, onEvent EventFunc) error {
	buf := make([]byte, chunkSize)

	for {
		nr, readErr := body.Read(buf)
		if nr > 0 {
			if err := onEvent(DataReceived{Chunk: buf[:nr]}); err != nil {
				return &Error{Kind: KindSink, URL: rawURL, Err: err}
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return &Error{Kind: KindTransport, URL: rawURL, Err: readErr}
		}
	}
}
