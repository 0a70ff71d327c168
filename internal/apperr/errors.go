// internal/apperr/errors.go
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindProvider      Kind = "provider"
	KindUpstream      Kind = "upstream"
	KindOnChain       Kind = "on_chain"
	KindUserCancelled Kind = "user_cancelled"
	KindInternal      Kind = "internal"
)

// Error is the structured error returned across package boundaries.
// Message is safe to show to a user; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Payload carries the raw on-chain error for KindOnChain.
	Payload string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches kind and message to err. A nil err yields nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

func Provider(op, message string, err error) error {
	return Wrap(KindProvider, op, message, err)
}

func Upstream(op, message string, err error) error {
	return Wrap(KindUpstream, op, message, err)
}

func UserCancelled(op string, err error) error {
	return Wrap(KindUserCancelled, op, "transaction was cancelled by the user", err)
}

// OnChain builds the error reported when a submitted transaction landed with
// a non-null err field. payload is kept verbatim.
func OnChain(op, payload string) *Error {
	return &Error{
		Kind:    KindOnChain,
		Op:      op,
		Message: "transaction failed on chain",
		Payload: payload,
	}
}

// OnChainJSON is OnChain with the raw error value encoded as JSON.
func OnChainJSON(op string, raw interface{}) *Error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return OnChain(op, fmt.Sprint(raw))
	}
	return OnChain(op, string(payload))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps the kind of err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindUserCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders err for display without leaking transport details.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "unexpected error"
	}
	if e.Kind == KindOnChain && e.Payload != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Payload)
	}
	return e.Message
}
