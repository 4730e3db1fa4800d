package contracts

import (
	"errors"
	"fmt"
)

// RejectReason identifies which validation check failed.
type RejectReason string

const (
	ReasonBelowMinNotional    RejectReason = "BELOW_MIN_NOTIONAL"
	ReasonBelowMinSize        RejectReason = "BELOW_MIN_SIZE"
	ReasonMissingLimitPrice   RejectReason = "MISSING_LIMIT_PRICE"
	ReasonPriceOutOfBounds    RejectReason = "PRICE_OUT_OF_BOUNDS"
	ReasonPriceOffTick        RejectReason = "PRICE_OFF_TICK"
	ReasonNoQuote             RejectReason = "NO_QUOTE"
	ReasonInsufficientBalance RejectReason = "INSUFFICIENT_BALANCE"
	ReasonInsufficientShares  RejectReason = "INSUFFICIENT_SHARES"
	ReasonBadInputUnit        RejectReason = "BAD_INPUT_UNIT"
	ReasonMissingExpiration   RejectReason = "MISSING_EXPIRATION"
	ReasonUnknownOutcome      RejectReason = "UNKNOWN_OUTCOME"
)

// InputRejectedError is a local validation failure. Always recoverable,
// surfaced inline in the UI, never retried automatically.
type InputRejectedError struct {
	Reason  RejectReason
	Message string
}

func (e *InputRejectedError) Error() string {
	return e.Message
}

// NewInputRejected builds an InputRejectedError with a user-facing message.
func NewInputRejected(reason RejectReason, format string, args ...interface{}) *InputRejectedError {
	return &InputRejectedError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExchangeRejectedError means the order book declined the order. The
// root cause is a business rule, so it is not retried automatically.
type ExchangeRejectedError struct {
	Code    string // machine-readable code from the exchange, when present
	Message string
}

func (e *ExchangeRejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("order rejected by exchange (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("order rejected by exchange: %s", e.Message)
}

// TransportError is a network or timeout failure talking to an external
// service. Safe to retry a bounded number of times for reads; submits
// must never be blindly retried without idempotency protection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Sentinel errors shared across packages.
var (
	// ErrTickSizeLoading signals that no tick size is available yet for
	// the active token. Callers must not construct orders until the
	// fetch completes; a defaulted tick size would corrupt validation.
	ErrTickSizeLoading = errors.New("tick size is loading")

	// ErrSubmitInFlight signals that a submission is already
	// outstanding; the submit action is disabled until it resolves.
	ErrSubmitInFlight = errors.New("order submission already in flight")
)

// IsInputRejected reports whether err is a local validation rejection.
func IsInputRejected(err error) bool {
	var ir *InputRejectedError
	return errors.As(err, &ir)
}

// IsExchangeRejected reports whether err is an exchange-side rejection.
func IsExchangeRejected(err error) bool {
	var er *ExchangeRejectedError
	return errors.As(err, &er)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
