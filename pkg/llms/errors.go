package llms

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures for the orchestrator's propagation
// policy.
type ErrorKind string

const (
	// ErrorTransient covers timeouts, 429s and 5xx responses. Retried by
	// the gateway; surfaced only after the retry budget is spent.
	ErrorTransient ErrorKind = "transient"

	// ErrorPermanent covers authentication, quota exhaustion and schema
	// violations. Never retried.
	ErrorPermanent ErrorKind = "permanent"

	// ErrorContextOverflow means the message payload exceeds the provider's
	// context limit. The request is refused before submission.
	ErrorContextOverflow ErrorKind = "context_overflow"

	// ErrorCancelled means the calling context was cancelled or its
	// deadline passed mid-call.
	ErrorCancelled ErrorKind = "cancelled"
)

// GatewayError is the typed error all gateway operations return.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, defaulting unknown errors to transient so
// the orchestrator treats them as recoverable.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrorTransient
}

// IsPermanent reports whether err should never be retried.
func IsPermanent(err error) bool {
	k := KindOf(err)
	return k == ErrorPermanent || k == ErrorContextOverflow
}

func transientErr(message string, err error) *GatewayError {
	return &GatewayError{Kind: ErrorTransient, Message: message, Err: err}
}

func permanentErr(message string, err error) *GatewayError {
	return &GatewayError{Kind: ErrorPermanent, Message: message, Err: err}
}

func overflowErr(message string) *GatewayError {
	return &GatewayError{Kind: ErrorContextOverflow, Message: message}
}

func cancelledErr(err error) *GatewayError {
	return &GatewayError{Kind: ErrorCancelled, Message: "call cancelled", Err: err}
}
