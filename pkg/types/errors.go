package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the flat classification callers branch on
type ErrorKind int

const (
	KindQuoteExpired ErrorKind = iota + 1
	KindSimulationRequired
	KindSimulationFailed
	KindInsufficientBalance
	KindInsufficientAllowance
	KindSlippageExceeded
	KindProviderError
	KindNetworkError
	KindInvalidParameters
	KindUnsupportedRoute
	KindTransactionFailed
	KindUserCancelled
)

var kindNames = map[ErrorKind]string{
	KindQuoteExpired:          "quote expired",
	KindSimulationRequired:    "simulation required",
	KindSimulationFailed:      "simulation failed",
	KindInsufficientBalance:   "insufficient balance",
	KindInsufficientAllowance: "insufficient allowance",
	KindSlippageExceeded:      "slippage exceeded",
	KindProviderError:         "provider error",
	KindNetworkError:          "network error",
	KindInvalidParameters:     "invalid parameters",
	KindUnsupportedRoute:      "unsupported route",
	KindTransactionFailed:     "transaction failed",
	KindUserCancelled:         "user cancelled",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown error"
}

// SwapError carries an ErrorKind plus the payload relevant to that kind
type SwapError struct {
	Kind     ErrorKind
	Message  string
	Provider string
	From     string
	To       string
	Expected string
	Actual   string
	Err      error
}

func (e *SwapError) Error() string {
	switch e.Kind {
	case KindProviderError:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Provider, e.Message)
	case KindUnsupportedRoute:
		return fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
	case KindSlippageExceeded:
		return fmt.Sprintf("%s: expected %s, got %s", e.Kind, e.Expected, e.Actual)
	case KindNetworkError:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// Is matches any SwapError of the same kind, so errors.Is(err, ErrQuoteExpired) works
// regardless of payload.
func (e *SwapError) Is(target error) bool {
	var t *SwapError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrQuoteExpired          = &SwapError{Kind: KindQuoteExpired}
	ErrSimulationRequired    = &SwapError{Kind: KindSimulationRequired}
	ErrSimulationFailed      = &SwapError{Kind: KindSimulationFailed}
	ErrInsufficientBalance   = &SwapError{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &SwapError{Kind: KindInsufficientAllowance}
	ErrSlippageExceeded      = &SwapError{Kind: KindSlippageExceeded}
	ErrProviderError         = &SwapError{Kind: KindProviderError}
	ErrNetworkError          = &SwapError{Kind: KindNetworkError}
	ErrInvalidParameters     = &SwapError{Kind: KindInvalidParameters}
	ErrUnsupportedRoute      = &SwapError{Kind: KindUnsupportedRoute}
	ErrTransactionFailed     = &SwapError{Kind: KindTransactionFailed}
	ErrUserCancelled         = &SwapError{Kind: KindUserCancelled}
)

func NewQuoteExpired() error {
	return &SwapError{Kind: KindQuoteExpired}
}

func NewSimulationRequired() error {
	return &SwapError{Kind: KindSimulationRequired}
}

func NewSimulationFailed(reason string) error {
	return &SwapError{Kind: KindSimulationFailed, Message: reason}
}

func NewInsufficientBalance(message string) error {
	return &SwapError{Kind: KindInsufficientBalance, Message: message}
}

func NewInsufficientAllowance(message string) error {
	return &SwapError{Kind: KindInsufficientAllowance, Message: message}
}

func NewSlippageExceeded(expected, actual string) error {
	return &SwapError{Kind: KindSlippageExceeded, Expected: expected, Actual: actual}
}

func NewProviderError(provider, message string) error {
	return &SwapError{Kind: KindProviderError, Provider: provider, Message: message}
}

func NewNetworkError(err error) error {
	return &SwapError{Kind: KindNetworkError, Err: err}
}

func NewInvalidParameters(reason string) error {
	return &SwapError{Kind: KindInvalidParameters, Message: reason}
}

func NewUnsupportedRoute(from, to Asset) error {
	return &SwapError{Kind: KindUnsupportedRoute, From: from.String(), To: to.String()}
}

func NewTransactionFailed(reason string) error {
	return &SwapError{Kind: KindTransactionFailed, Message: reason}
}

func NewUserCancelled() error {
	return &SwapError{Kind: KindUserCancelled}
}

// KindOf returns the ErrorKind of err, or 0 if err is not a SwapError
func KindOf(err error) ErrorKind {
	var se *SwapError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
