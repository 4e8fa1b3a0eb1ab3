package jws

import (
	"context"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/header"
	"golang.org/x/exp/slices"
)

// Validator checks a token before Encode or Verify touch the crypto
// provider. A non-nil error stops the operation and is returned wrapped in
// a KindValidation Error.
type Validator interface {
	Validate(ctx context.Context, t *Token) error
}

// ValidatorFunc adapts a function to a Validator.
type ValidatorFunc func(ctx context.Context, t *Token) error

func (f ValidatorFunc) Validate(ctx context.Context, t *Token) error {
	return f(ctx, t)
}

// validateShape applies the rules every token must satisfy.
func (c *Codec) validateShape(t *Token) error {
	if !t.Serialization.Valid() {
		return validationErrorf("invalid serialization %v", t.Serialization)
	}

	n := len(t.Signatures)
	if t.Serialization.single() && n != 1 {
		return validationErrorf("%s serialization requires exactly one signature, got %d", t.Serialization, n)
	}

	for i, sig := range t.Signatures {
		if sig == nil {
			return validationErrorf("signature %d is nil", i)
		}

		if len(sig.Protected) == 0 {
			return validationErrorf("signature %d has no protected header", i)
		}

		if _, err := sig.Protected.Algorithm(); err != nil {
			return validationErrorf("signature %d: %w", i, err)
		}

		if t.Serialization == Compact && len(sig.Header) > 0 {
			return validationErrorf("compact serialization cannot carry an unprotected header")
		}

		if err := header.Disjoint(sig.Protected, sig.Header); err != nil {
			return validationErrorf("signature %d: %w", i, err)
		}

		if err := c.validateCritical(sig); err != nil {
			return validationErrorf("signature %d: %w", i, err)
		}
	}

	return nil
}

// validateCritical applies the "crit" rules: a non-empty list of
// extension parameter names, each present in the protected header and
// understood by this codec. "crit" itself must be protected.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4.1.11
func (c *Codec) validateCritical(sig *Signature) error {
	if _, ok := sig.Header[header.Critical]; ok {
		return fmt.Errorf("header parameter %q must be integrity protected", header.Critical)
	}

	names, err := sig.Protected.Critical()
	if err != nil {
		return err
	}

	for _, name := range names {
		if header.IsRegistered(name) {
			return fmt.Errorf("header parameter %q lists registered parameter %q", header.Critical, name)
		}
		if _, ok := sig.Protected[name]; !ok {
			return fmt.Errorf("critical header parameter %q is not in the protected header", name)
		}
		if !slices.Contains(c.critical, name) {
			return fmt.Errorf("critical header parameter %q is not understood", name)
		}
	}

	return nil
}

func (c *Codec) validate(ctx context.Context, t *Token) error {
	if err := c.validateShape(t); err != nil {
		return err
	}

	if c.validator != nil {
		if err := c.validator.Validate(ctx, t); err != nil {
			return validationError(err)
		}
	}

	return nil
}
