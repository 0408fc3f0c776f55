package model

import (
	"context"
	"errors"
	"net"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", ...) and
// match with errors.Is.
var (
	ErrFetch                    = errors.New("fetch error")
	ErrParse                    = errors.New("parse error")
	ErrExtractionEmpty          = errors.New("extraction empty")
	ErrValidationRejected       = errors.New("validation rejected")
	ErrExternalModelUnavailable = errors.New("external model unavailable")
	ErrStrategyExhausted        = errors.New("strategy exhausted")
)

// IsTimeout reports whether err was caused by a deadline, either a context
// deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
