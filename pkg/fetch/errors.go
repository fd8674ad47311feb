package fetch

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotImplemented is returned by declared but unimplemented backends.
var ErrNotImplemented = errors.New("download backend not implemented")

// Kind classifies a download failure.
type Kind int

const (
	// KindTransport covers connection failures, timeouts and broken streams.
	KindTransport Kind = iota
	// KindNotFound means the server (or local mirror) has no such resource.
	KindNotFound
	// KindStatus is any other non-2xx response.
	KindStatus
	// KindSink means the event callback failed, e.g. the disk is full.
	KindSink
	// KindUnsupported means the selected backend cannot serve the request.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not found"
	case KindStatus:
		return "http status"
	case KindSink:
		return "sink"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Backend.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("download %s: %s: server returned %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("download %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether the failure originated on the network side
// rather than in the consumer of the stream. KindUnsupported is neither: no
// transfer was attempted.
func (e *Error) IsTransport() bool {
	return e.Kind == KindTransport || e.Kind == KindNotFound || e.Kind == KindStatus
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsTransport reports whether err carries a transport-classified *Error.
func IsTransport(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.IsTransport()
}
