package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by the stage that produced it
type Kind string

const (
	KindPageLoad   Kind = "page_load"
	KindImageFetch Kind = "image_fetch"
	KindDecode     Kind = "decode"
	KindFilesystem Kind = "filesystem"
	KindInvalidURL Kind = "invalid_url"
	KindCancelled  Kind = "cancelled"
)

// Error is the error type returned by the scraping and download stages
type Error struct {
	Kind Kind
	Op   string
	URL  string
	// Code is the HTTP status when one was received, 0 for transport errors
	Code int
	// NoRetry marks a failure that repeating the request cannot fix
	NoRetry bool
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind
func New(kind Kind, op, url string, err error) *Error {
	return &Error{Kind: kind, Op: op, URL: url, Err: err}
}

// Permanent builds an Error that IsRetryable always rejects, for responses
// that arrived fine but could not be used
func Permanent(kind Kind, op, url string, err error) *Error {
	return &Error{Kind: kind, Op: op, URL: url, NoRetry: true, Err: err}
}

// HTTPStatus builds an Error for a non-success HTTP response
func HTTPStatus(kind Kind, url string, code int) *Error {
	return &Error{
		Kind: kind,
		Op:   "GET",
		URL:  url,
		Code: code,
		Err:  fmt.Errorf("unexpected status %s", http.StatusText(code)),
	}
}

// KindOf returns the kind of err, or "" when err carries no Error
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return ""
}

// Is reports whether err has the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether a failed operation is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var e *Error
	if !stderrors.As(err, &e) {
		return true
	}

	if e.NoRetry {
		return false
	}
	switch e.Kind {
	case KindDecode, KindInvalidURL, KindCancelled, KindFilesystem:
		return false
	}
	return IsRetryableStatusCode(e.Code)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // transport error
		return true
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	default:
		return statusCode >= 500
	}
}
