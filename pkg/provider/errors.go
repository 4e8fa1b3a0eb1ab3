package provider

import (
	"errors"
	"fmt"
)

var (
	ErrNoKey                = errors.New("provider: no key")
	ErrUsageNotPermitted    = errors.New("provider: key usage not permitted")
	ErrUnsupportedAlgorithm = errors.New("provider: unsupported algorithm")
	ErrUnsupportedFormat    = errors.New("provider: unsupported key format")
	ErrInvalidKeyData       = errors.New("provider: invalid key data")
)

// UsageError reports an operation the key was not imported for.
type UsageError struct {
	Usage  Usage
	Usages []Usage
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("provider: key usage %q not permitted (key usages %v)", e.Usage, e.Usages)
}

func (e *UsageError) Unwrap() error {
	return ErrUsageNotPermitted
}
