// Package apierr gives every core component a shared, typed error
// vocabulary instead of the string-sniffed error mapping the teacher's HTTP
// handlers used (strings.Contains(err.Error(), "not found")). Core
// components return *Error; the HTTP layer maps Kind to a status code and
// bus workers map Kind to ack/nak.
package apierr

import "fmt"

type Kind string

const (
	KindValidation      Kind = "Validation"
	KindNotFound        Kind = "NotFound"
	KindForbidden       Kind = "Forbidden"
	KindSlotUnavailable Kind = "SlotUnavailable"
	KindHoldExpired     Kind = "HoldExpired"
	KindNdaRequired     Kind = "NdaRequired"
	KindTransient       Kind = "Transient"
	KindWebhookAuth     Kind = "WebhookAuth"
)

// Error is the typed result every core component (C1-C6) returns on
// failure. Message is safe to surface to the caller verbatim.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func SlotUnavailable(message string) *Error {
	return New(KindSlotUnavailable, message)
}

func HoldExpired(message string) *Error {
	return New(KindHoldExpired, message)
}

func NdaRequired(message string) *Error {
	return New(KindNdaRequired, message)
}

func Transient(message string, cause error) *Error {
	return Wrap(KindTransient, message, cause)
}

func WebhookAuth(message string) *Error {
	return New(KindWebhookAuth, message)
}

// As extracts an *Error from err, returning (nil, false) for anything else
// (including nil), so callers never have to special-case a plain error
// surfacing as Transient twice.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}
