package types

import "errors"

// ErrorKind classifies a failure for programmatic handling. Adapters assign
// kinds at the provider/wallet boundary; layers above only add context.
type ErrorKind string

const (
	ErrInvalidParams         ErrorKind = "INVALID_PARAMS"
	ErrWalletNotConnected    ErrorKind = "WALLET_NOT_CONNECTED"
	ErrRouteNotFound         ErrorKind = "ROUTE_NOT_FOUND"
	ErrUnsupportedNetwork    ErrorKind = "UNSUPPORTED_NETWORK"
	ErrUnsupportedToken      ErrorKind = "UNSUPPORTED_TOKEN"
	ErrInsufficientLiquidity ErrorKind = "INSUFFICIENT_LIQUIDITY"
	ErrSlippageTooHigh       ErrorKind = "SLIPPAGE_TOO_HIGH"
	ErrInsufficientFunds     ErrorKind = "INSUFFICIENT_FUNDS"
	ErrTransactionRejected   ErrorKind = "TRANSACTION_REJECTED"
	ErrSignatureRejected     ErrorKind = "SIGNATURE_REJECTED"
	ErrSubscriptionFailed    ErrorKind = "SUBSCRIPTION_FAILED"
	ErrServerUnavailable     ErrorKind = "SERVER_UNAVAILABLE"
	ErrNetworkError          ErrorKind = "NETWORK_ERROR"
)

// DonationError carries a classified error kind alongside the raw cause.
// The core never fabricates end-user text; the message here is diagnostic.
type DonationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *DonationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *DonationError) Unwrap() error {
	return e.Err
}

// NewError creates a classified donation error
func NewError(kind ErrorKind, message string, err error) *DonationError {
	return &DonationError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind from err, walking the wrap chain.
// Unclassified errors report ErrNetworkError, the generic fallback.
func KindOf(err error) ErrorKind {
	var de *DonationError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrNetworkError
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DonationError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// IsClassified reports whether err is already a typed donation error
func IsClassified(err error) bool {
	var de *DonationError
	return errors.As(err, &de)
}
