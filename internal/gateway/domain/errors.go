package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed marks a failed credential refresh against a
	// gateway token endpoint, whether network or deserialization.
	ErrAuthenticationFailed = errors.New("payment_authentication_failed")

	// ErrGatewayUnavailable marks a network-level failure talking to a gateway.
	ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")

	// ErrMalformedResponse marks a gateway body that matched no expected shape,
	// on either the success or the error path.
	ErrMalformedResponse = errors.New("payment_response_malformed")
)

// GatewayError is a structured business error returned by a payment gateway.
type GatewayError struct {
	Gateway string
	Name    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Gateway, e.Message)
	}
	return fmt.Sprintf("%s: error name: %s, message: %s", e.Gateway, e.Name, e.Message)
}

// IsPaymentError reports whether err belongs to the payment error taxonomy,
// so callers can surface a generic "payment system unavailable" message.
func IsPaymentError(err error) bool {
	var gwErr *GatewayError
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.As(err, &gwErr)
}
