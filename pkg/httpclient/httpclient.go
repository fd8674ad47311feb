package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultConnectTimeout bounds connection establishment only; transfers
	// themselves are not time-limited.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultMaxRedirects is the redirect hop limit.
	DefaultMaxRedirects = 10
)

// Options configures New.
type Options struct {
	UserAgent      string
	ConnectTimeout time.Duration
	MaxRedirects   int
	// FileRoot, when set, serves file:// URLs from this directory.
	FileRoot string
}

// New creates an HTTP client for distribution downloads.
func New(opts Options) *http.Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}

	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Compressed archives must reach the sink byte for byte.
		DisableCompression: true,
	}
	if opts.FileRoot != "" {
		transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(opts.FileRoot)))
	}

	maxRedirects := opts.MaxRedirects
	return &http.Client{
		Transport: &userAgentTransport{
			Base:      transport,
			UserAgent: opts.UserAgent,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// userAgentTransport is a RoundTripper that stamps every request with a
// fixed client identification string.
type userAgentTransport struct {
	Base      http.RoundTripper
	UserAgent string
}

// RoundTrip implements the http.RoundTripper interface
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.UserAgent == "" {
		return t.Base.RoundTrip(req)
	}

	// Clone the request to avoid modifying the original
	req2 := req.Clone(req.Context())
	req2.Header.Set("User-Agent", t.UserAgent)

	return t.Base.RoundTrip(req2)
}
