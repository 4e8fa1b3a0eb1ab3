package jws

import (
	"context"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
)

// candidateKey is one key a resolver can choose. handle is nil until the
// key has been imported.
type candidateKey struct {
	value  jwk.Value
	handle *jwk.Key
}

func (k candidateKey) keyID() string {
	return jwk.StringParam(k.value, jwk.KeyID)
}

func (k candidateKey) use() string {
	return jwk.StringParam(k.value, jwk.PublicKeyUse)
}

// candidates flattens the accepted candidate shapes. positional is true for
// the slice shapes, whose keys map to signatures by index when the token
// has more than one signature.
func candidates(candidate any) (keys []candidateKey, positional bool, err error) {
	fromKeys := func(in []*jwk.Key) ([]candidateKey, error) {
		out := make([]candidateKey, 0, len(in))
		for i, key := range in {
			if key == nil {
				return nil, fmt.Errorf("key %d is nil", i)
			}
			out = append(out, candidateKey{value: key.Value, handle: key})
		}
		return out, nil
	}
	fromValues := func(in []jwk.Value) []candidateKey {
		out := make([]candidateKey, 0, len(in))
		for _, value := range in {
			out = append(out, candidateKey{value: value})
		}
		return out
	}

	switch c := candidate.(type) {
	case *jwk.Key:
		if c == nil {
			return nil, false, fmt.Errorf("nil key")
		}
		keys, err = fromKeys([]*jwk.Key{c})
	case []*jwk.Key:
		keys, err = fromKeys(c)
		positional = true
	case jwk.KeySet:
		keys, err = fromKeys(c.Keys)
	case *jwk.KeySet:
		if c == nil {
			return nil, false, fmt.Errorf("nil key set")
		}
		keys, err = fromKeys(c.Keys)
	case jwk.Value:
		if c == nil {
			return nil, false, fmt.Errorf("nil JWK")
		}
		if members, ok := c["keys"]; ok {
			values, err := anyValues(members)
			if err != nil {
				return nil, false, fmt.Errorf("invalid JWK set: %w", err)
			}
			return fromValues(values), false, nil
		}
		keys = fromValues([]jwk.Value{c})
	case []jwk.Value:
		keys = fromValues(c)
		positional = true
	case []any:
		values, err := anyValues(c)
		if err != nil {
			return nil, false, err
		}
		keys = fromValues(values)
		positional = true
	case jwk.Set:
		keys = fromValues(c.Keys)
	case *jwk.Set:
		if c == nil {
			return nil, false, fmt.Errorf("nil JWK set")
		}
		keys = fromValues(c.Keys)
	default:
		return nil, false, fmt.Errorf("unsupported candidate type %T", candidate)
	}

	return keys, positional, err
}

// anyValues converts a JSON-decoded array of JWKs.
func anyValues(in any) ([]jwk.Value, error) {
	switch v := in.(type) {
	case []jwk.Value:
		return v, nil
	case []any:
		out := make([]jwk.Value, 0, len(v))
		for i, elem := range v {
			value, ok := elem.(jwk.Value)
			if !ok || value == nil {
				return nil, fmt.Errorf("key %d is %T, not a JWK object", i, elem)
			}
			out = append(out, value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("keys is %T, not an array", in)
	}
}

// match returns the first key whose "kid" equals kid, or when kid is empty
// the first key whose "use" is "sig".
func match(keys []candidateKey, kid string) (candidateKey, bool) {
	for _, key := range keys {
		if kid != "" && key.keyID() == kid {
			return key, true
		}
		if kid == "" && key.use() == jwk.UseSignature {
			return key, true
		}
	}
	return candidateKey{}, false
}

// ResolveKeys attaches keys from candidate to the signatures of t.
//
// candidate is a single key (*jwk.Key or a raw jwk.Value), a slice of keys
// ([]*jwk.Key, []jwk.Value, or a JSON-decoded []any of objects), or a key
// set (jwk.KeySet, *jwk.KeySet, jwk.Set, *jwk.Set, or a JSON-decoded
// object with a "keys" member). Raw JWKs are imported through the codec's registry
// with the signature's "alg". Any other candidate fails with a
// KindKeyResolution Error.
//
// Each signature gets the first key whose "kid" equals the signature's
// "kid", or without a "kid" the first key whose "use" is "sig". A slice
// candidate on a token with several signatures is mapped by position
// instead. Signatures using "none" need no key.
//
// It reports whether every signature has a key afterwards. Signatures with
// no match keep whatever key they had.
func (c *Codec) ResolveKeys(ctx context.Context, t *Token, candidate any) (bool, error) {
	keys, positional, err := candidates(candidate)
	if err != nil {
		return false, keyResolutionError(MessageInvalidJWKArgument, err)
	}

	if t == nil || len(t.Signatures) == 0 {
		return false, nil
	}

	positional = positional && len(t.Signatures) > 1

	for i, sig := range t.Signatures {
		if sig == nil {
			return false, validationErrorf("signature %d is nil", i)
		}

		alg, _ := sig.Algorithm()
		if alg == jwa.None {
			continue
		}

		var (
			key candidateKey
			ok  bool
		)
		if positional {
			if i < len(keys) {
				key, ok = keys[i], true
			}
		} else {
			key, ok = match(keys, sig.KeyID())
		}

		if !ok {
			continue
		}

		handle := key.handle
		if handle == nil || handle.Handle == nil {
			handle, err = c.registry.ImportKeyFor(ctx, alg, key.value)
			if err != nil {
				return false, keyResolutionError("failed to import key", fmt.Errorf("signature %d: %w", i, err))
			}
		}

		sig.Key = handle.Handle
		sig.resetResult()
	}

	for _, sig := range t.Signatures {
		if alg, _ := sig.Algorithm(); alg != jwa.None && sig.Key == nil {
			return false, nil
		}
	}

	return true, nil
}
