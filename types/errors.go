package types

import "errors"

// PaymentError is the error surfaced by widget operations. Message is meant
// for the end user; Err keeps the underlying cause.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *PaymentError) Error() string {
	return e.Message
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrNoProvider            = "NO_PROVIDER"
	ErrMisconfiguredMerchant = "MISCONFIGURED_MERCHANT"
	ErrUserRejected          = "USER_REJECTED"
	ErrWrongChain            = "WRONG_CHAIN"
	ErrChainSwitch           = "CHAIN_SWITCH_FAILED"
	ErrInsufficientBalance   = "INSUFFICIENT_BALANCE"
	ErrBalanceQuery          = "BALANCE_QUERY_FAILED"
	ErrTransactionTimeout    = "TRANSACTION_TIMEOUT"
	ErrTransactionFailed     = "TRANSACTION_FAILED"
	ErrInvalidState          = "INVALID_STATE"
	ErrConfigError           = "CONFIG_ERROR"
	ErrUnknown               = "UNKNOWN"
)

// NewPaymentError builds a PaymentError wrapping cause.
func NewPaymentError(code, message string, cause error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: cause}
}

// IsCode reports whether err, or anything it wraps, is a PaymentError with code.
func IsCode(err error, code string) bool {
	var pe *PaymentError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}

// CodeOf returns the code of the outermost PaymentError in err, or ErrUnknown.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrUnknown
}
