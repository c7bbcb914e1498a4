// Package neatooerr defines the wire-level error taxonomy shared by the
// dispatcher, client proxy, factory core, and serializer.
package neatooerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the closed set of error categories the protocol can
// carry in a Response envelope. Kinds never leak implementation-specific
// payloads beyond Kind+Message.
type Kind string

const (
	KindBadRequest            Kind = "BadRequest"
	KindUnknownDelegate       Kind = "UnknownDelegate"
	KindSerializationMismatch Kind = "SerializationMismatch"
	KindMissingService        Kind = "MissingService"
	KindNotAuthorized         Kind = "NotAuthorized"
	KindCanceled              Kind = "Canceled"
	KindSaveNotSupported      Kind = "SaveNotSupported"
	KindDomain                Kind = "Domain"
)

// Error is the typed error carried across the wire and raised by the client
// proxy. Reason is only populated for KindNotAuthorized.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds a typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a typed error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Denied builds the NotAuthorized variant, which carries a reason string
// distinct from Message.
func Denied(reason string) *Error {
	return &Error{Kind: KindNotAuthorized, Message: "authorization denied", Reason: reason}
}

// As unwraps err looking for a *Error, following the standard errors.As chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
