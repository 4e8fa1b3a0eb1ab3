package jws

import (
	"fmt"
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindStructural is input whose shape cannot be a token, such as a
	// malformed compact string or a JSON document without a payload.
	KindStructural Kind = iota + 1

	// KindValidation is a token that is well-formed but rejected before any
	// cryptographic operation, by the built-in header rules or a Validator.
	KindValidation

	// KindKeyResolution is a key candidate of an unrecognized shape, or a
	// signature that needs a key and has none.
	KindKeyResolution

	// KindMissingSignature is a token without signatures to verify.
	KindMissingSignature
)

var kindNames = [...]string{
	KindStructural:       "structural error",
	KindValidation:       "validation error",
	KindKeyResolution:    "key resolution error",
	KindMissingSignature: "missing signature error",
}

func (k Kind) String() string {
	if k < KindStructural || k > KindMissingSignature {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Error is the error type returned by the codec. Use errors.Is with the
// kind sentinels to classify one:
//
//	if errors.Is(err, jws.ErrStructural) {
//		// not a token at all
//	}
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels. They match any *Error of the same Kind.
var (
	ErrStructural       = &Error{Kind: KindStructural}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrKeyResolution    = &Error{Kind: KindKeyResolution}
	ErrMissingSignature = &Error{Kind: KindMissingSignature}
)

// Messages carried by the errors the codec returns.
const (
	MessageMalformedToken     = "malformed token"
	MessageInvalidDocument    = "invalid JWD"
	MessageInvalidJWKArgument = "invalid JWK argument"
	MessageMissingSignatures  = "missing signature(s)"
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return "jws: " + msg + ": " + e.Err.Error()
	}
	return "jws: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a kind sentinel: an *Error with the same Kind and no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func structuralError(message string, err error) error {
	return &Error{Kind: KindStructural, Message: message, Err: err}
}

func validationError(err error) error {
	return &Error{Kind: KindValidation, Message: "validation failed", Err: err}
}

func validationErrorf(format string, args ...any) error {
	return validationError(fmt.Errorf(format, args...))
}

func keyResolutionError(message string, err error) error {
	return &Error{Kind: KindKeyResolution, Message: message, Err: err}
}

func missingSignatureError(err error) error {
	return &Error{Kind: KindMissingSignature, Message: MessageMissingSignatures, Err: err}
}
