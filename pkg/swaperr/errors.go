package swaperr

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier shared with logs and API consumers
type Code string

const (
	// Configuration
	InvalidConfig          Code = "INVALID_CONFIG"
	InvalidTokenIdentifier Code = "INVALID_TOKEN_IDENTIFIER"
	InvalidAmount          Code = "INVALID_AMOUNT"
	MissingRequiredField   Code = "MISSING_REQUIRED_FIELD"

	// Wallet
	WalletNotConnected     Code = "WALLET_NOT_CONNECTED"
	WalletConnectionFailed Code = "WALLET_CONNECTION_FAILED"
	WalletActionFailed     Code = "WALLET_ACTION_FAILED"
	WalletActionRejected   Code = "WALLET_ACTION_REJECTED"
	UnsupportedActionType  Code = "UNSUPPORTED_ACTION_TYPE"

	// API / network
	ApiRequestFailed   Code = "API_REQUEST_FAILED"
	ApiTimeout         Code = "API_TIMEOUT"
	ApiInvalidResponse Code = "API_INVALID_RESPONSE"
	QuoteFailed        Code = "QUOTE_FAILED"
	QuoteExpired       Code = "QUOTE_EXPIRED"

	// Transaction
	DepositBuildFailed  Code = "DEPOSIT_BUILD_FAILED"
	DepositSubmitFailed Code = "DEPOSIT_SUBMIT_FAILED"
	OrderFailed         Code = "ORDER_FAILED"
	TransactionFailed   Code = "TRANSACTION_FAILED"
	TransactionRejected Code = "TRANSACTION_REJECTED"
	InsufficientBalance Code = "INSUFFICIENT_BALANCE"
	SlippageExceeded    Code = "SLIPPAGE_EXCEEDED"

	// Integration
	ElementNotFound      Code = "ELEMENT_NOT_FOUND"
	InitializationFailed Code = "INITIALIZATION_FAILED"
)

// Category groups codes by the layer that raises them
type Category int

const (
	CategoryUnknown Category = iota
	CategoryConfiguration
	CategoryWallet
	CategoryAPI
	CategoryTransaction
	CategoryIntegration
)

func (c Category) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryWallet:
		return "wallet"
	case CategoryAPI:
		return "api"
	case CategoryTransaction:
		return "transaction"
	case CategoryIntegration:
		return "integration"
	default:
		return "unknown"
	}
}

// Category returns the group a code belongs to. Codes outside the closed
// set report CategoryUnknown.
func (c Code) Category() Category {
	switch c {
	case InvalidConfig, InvalidTokenIdentifier, InvalidAmount, MissingRequiredField:
		return CategoryConfiguration
	case WalletNotConnected, WalletConnectionFailed, WalletActionFailed, WalletActionRejected, UnsupportedActionType:
		return CategoryWallet
	case ApiRequestFailed, ApiTimeout, ApiInvalidResponse, QuoteFailed, QuoteExpired:
		return CategoryAPI
	case DepositBuildFailed, DepositSubmitFailed, OrderFailed, TransactionFailed, TransactionRejected, InsufficientBalance, SlippageExceeded:
		return CategoryTransaction
	case ElementNotFound, InitializationFailed:
		return CategoryIntegration
	default:
		return CategoryUnknown
	}
}

// Valid reports whether c is one of the known codes
func (c Code) Valid() bool {
	return c.Category() != CategoryUnknown
}

// Error is the single error type raised across the swap flow
type Error struct {
	Code    Code
	Message string
	// Status and Body are set for non-2xx API responses.
	Status  int
	Body    string
	Details map[string]any
	Err     error
}

// New creates an error with the given code and message
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can write
// errors.Is(err, swaperr.New(swaperr.ApiTimeout, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns e after recording a structured detail
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the code of the first *Error in err's chain
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
