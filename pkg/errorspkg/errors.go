// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("internal")
	// ErrUnavailable indicates that the request could not be served right now and may be retried.
	ErrUnavailable = errors.New("temporarily unavailable")
)
