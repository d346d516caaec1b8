package application

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrUserNotFound             = errors.New("user not found")
	ErrProductNotFound          = errors.New("product not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrOrderNotFound            = errors.New("order not found")
	ErrRemoteReferenceMissing   = errors.New("remote order reference missing")
	ErrUnsupportedPaymentSource = errors.New("unsupported payment source")
	ErrGateway                  = errors.New("payment provider request failed")
	// ErrCheckoutIncomplete means the order was persisted but a later step
	// failed. Nothing already done is undone.
	ErrCheckoutIncomplete = errors.New("checkout incomplete")
)

// Failure pairs a sentinel kind with a message that is safe to show clients.
type Failure struct {
	Kind   error
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Detail
	}
	return f.Detail + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

func fail(kind, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}

// Detail returns the client-safe message of err, if it carries one.
func Detail(err error) (string, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Detail, true
	}
	return "", false
}
