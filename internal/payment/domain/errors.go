package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// GatewayError is a non-2xx answer, or no answer, from the provider.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsRetryable is true for provider 5xx, 429 and transport timeouts. 4xx means
// the payload or credentials are wrong and repeating will not help.
func IsRetryable(err error) bool {
	var gw *GatewayError
	if !errors.As(err, &gw) {
		return false
	}
	switch {
	case gw.StatusCode >= http.StatusInternalServerError, gw.StatusCode == http.StatusTooManyRequests:
		return true
	case gw.StatusCode != 0:
		return false
	}
	if errors.Is(gw.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(gw.Err, &ne) && ne.Timeout()
}
