package jws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anvilresearch/jose-sub000/internal/logger"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"golang.org/x/sync/errgroup"
)

// Verify checks every signature of t that has a key attached and reports
// whether all of them are valid.
//
// A signature value without a key is skipped and counts as valid, so a
// token with no keys attached verifies. Callers must attach at least one
// key, or check Signature.Skipped, before trusting the result. The "none"
// algorithm needs no key and always verifies. A descriptor without a
// signature value fails with a MissingSignature Error unless its algorithm
// is "none".
//
// The result of each signature is recorded on it. A signature mismatch is
// reported as false, not as an error.
func (c *Codec) Verify(ctx context.Context, t *Token) (bool, error) {
	start := time.Now()

	if t == nil || len(t.Signatures) == 0 {
		return false, missingSignatureError(nil)
	}

	for i, sig := range t.Signatures {
		if sig == nil {
			return false, missingSignatureError(fmt.Errorf("signature %d is nil", i))
		}
		if sig.signed {
			continue
		}
		if alg, _ := sig.Algorithm(); alg != jwa.None {
			return false, missingSignatureError(fmt.Errorf("signature %d has no value", i))
		}
	}

	if err := c.validate(ctx, t); err != nil {
		return false, err
	}

	payload, err := t.encodedPayload()
	if err != nil {
		return false, validationError(err)
	}

	adapters := make([]jwa.Adapter, len(t.Signatures))
	for i, sig := range t.Signatures {
		alg, _ := sig.Algorithm()
		if sig.Key == nil && alg != jwa.None {
			continue
		}
		adapter, err := c.registry.Normalize(jwa.OperationVerify, alg)
		if err != nil {
			return false, err
		}
		adapters[i] = adapter
	}

	results := make([]bool, len(t.Signatures))

	g, gctx := errgroup.WithContext(ctx)
	for i, sig := range t.Signatures {
		if adapters[i] == nil {
			continue
		}
		g.Go(func() error {
			protected, err := sig.encodedProtected()
			if err != nil {
				return validationError(err)
			}

			ok, err := adapters[i].Verify(gctx, sig.Key, sig.signature, signingInput(protected, payload))
			if err != nil {
				return err
			}

			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.DebugContext(ctx, "failed to verify token", logger.Serialization(t.Serialization.String()), logger.Error(err))
		return false, err
	}

	verified, skipped := true, 0
	for i, sig := range t.Signatures {
		sig.resetResult()
		if adapters[i] == nil {
			sig.skipped = true
			skipped++
			continue
		}
		sig.checked = true
		sig.verified = results[i]
		verified = verified && results[i]
	}
	t.verified = verified

	c.logger.DebugContext(ctx, "verified token",
		logger.Serialization(t.Serialization.String()),
		logger.Count(len(t.Signatures)),
		slog.Int("skipped", skipped),
		logger.Elapsed(start),
	)

	return verified, nil
}
