package jwa

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is returned for an operation outside the five
	// recognized ones. It is a structural error, distinct from an algorithm
	// that is simply not registered.
	ErrInvalidOperation = errors.New("jwa: invalid operation")

	// ErrNotSupported matches every NotSupportedError.
	ErrNotSupported = errors.New("jwa: algorithm not supported")

	// ErrUnsupportedOperation matches every UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("jwa: operation not supported for algorithm family")

	ErrSealed            = errors.New("jwa: registry is sealed")
	ErrAlreadyDefined    = errors.New("jwa: algorithm already defined")
	ErrMissingAlgorithm  = errors.New("jwa: JWK has no \"alg\"")
	ErrAlgorithmMismatch = errors.New("jwa: JWK \"alg\" does not match")
)

// NotSupportedError is returned by Registry.Normalize when no adapter is
// registered for an (operation, algorithm) pair.
type NotSupportedError struct {
	Operation Operation
	Algorithm Algorithm
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not a supported '%s' algorithm", e.Algorithm, e.Operation)
}

func (e *NotSupportedError) Unwrap() error {
	return ErrNotSupported
}

// UnsupportedOperationError is returned by an adapter asked to perform an
// operation its algorithm family does not have, such as signing with AES-GCM.
type UnsupportedOperationError struct {
	Family    string
	Operation Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Family, e.Operation)
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}
