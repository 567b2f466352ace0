package octoprint

import (
	"errors"
	"fmt"
)

// ErrorKind classifies relay failures
type ErrorKind int

const (
	// KindUnknown is any error not produced by this package
	KindUnknown ErrorKind = iota
	// KindNotConfigured means no connection settings have been saved
	KindNotConfigured
	// KindTransport covers network failures and timeouts
	KindTransport
	// KindUpstream means OctoPrint answered with a non-2xx status
	KindUpstream
	// KindDecode means the upstream body could not be decoded
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindTransport:
		return "transport"
	case KindUpstream:
		return "upstream"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// NotConfiguredMessage is returned to callers when no client is available
const NotConfiguredMessage = "OctoPrint client not initialized. Configure connection settings first."

// Error is the single error type returned by Client operations
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

// ErrNotConfigured is returned when there is no configured client
var ErrNotConfigured = &Error{Kind: KindNotConfigured, Err: errors.New(NotConfiguredMessage)}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotConfigured:
		return NotConfiguredMessage
	case KindUpstream:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown if it is not an *Error
func KindOf(err error) ErrorKind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindUnknown
}

// StatusCodeOf returns the upstream status code carried by err, or 0
func StatusCodeOf(err error) int {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.StatusCode
	}
	return 0
}
