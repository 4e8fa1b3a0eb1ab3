package jwt

import (
	"errors"
	"fmt"
)

var (
	ErrNoClaimSet          = errors.New("no claim set")
	ErrNotCompact          = errors.New("JWT must use the compact serialization")
	ErrAlgorithmNotAllowed = errors.New("algorithm is not allowed")
	ErrNoKey               = errors.New("no key to verify signature")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrExpired             = errors.New("token is expired")
	ErrNotYetValid         = errors.New("token is not valid yet")
	ErrIssuerNotAllowed    = errors.New("issuer is not allowed")
	ErrAudienceNotAllowed  = errors.New("audience is not allowed")
	ErrKeyTooSmall         = errors.New("key is too small")
)

type ErrSigningFailed struct {
	Inner error
}

func (e *ErrSigningFailed) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Inner)
}

func (e *ErrSigningFailed) Unwrap() error {
	return e.Inner
}

func NewSigningError(inner error) *ErrSigningFailed {
	return &ErrSigningFailed{Inner: inner}
}

type ErrInvalidType struct {
	Inner error
}

func (e *ErrInvalidType) Error() string {
	return fmt.Sprintf("invalid type: %v", e.Inner)
}

func (e *ErrInvalidType) Unwrap() error {
	return e.Inner
}

func NewInvalidTypeError(inner error) *ErrInvalidType {
	return &ErrInvalidType{Inner: inner}
}
