package jwk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// ErrKeyNotFound is returned when no key in a set matches a lookup.
var ErrKeyNotFound = errors.New("jwk: key not found")

// Set is a JWK set as defined in RFC 7517.
//
// https://datatracker.ietf.org/doc/html/rfc7517#section-5
type Set struct {
	// Keys is a list of JWK values.
	//
	// https://datatracker.ietf.org/doc/html/rfc7517#section-5.1
	Keys []Value `json:"keys"`
}

// ParseSet decodes a JWK set JSON document.
func ParseSet(data []byte) (*Set, error) {
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode JWK set: %w", err)
	}
	if set.Keys == nil {
		return nil, fmt.Errorf("JWK set has no %q member", "keys")
	}
	return &set, nil
}

// Validate validates the JWK set, returning an error if any
// of the keys are invalid.
func (s *Set) Validate() error {
	if len(s.Keys) == 0 {
		return fmt.Errorf("no key values in JWK set")
	}

	for i, key := range s.Keys {
		if err := Validate(key); err != nil {
			return fmt.Errorf("key set validation error at index %d: %w", i, err)
		}
	}

	return nil
}

// Get returns the key that matches the given key id.
func (s *Set) Get(keyID string) (Value, error) {
	for _, key := range s.Keys {
		if StringParam(key, KeyID) == keyID {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, keyID)
}

// Key is a JWK together with the provider key handle it was imported into.
//
// Only the JWK members are serialized; the handle is runtime-only state.
type Key struct {
	Value  Value
	Handle *provider.CryptoKey
}

// NewKey pairs a JWK with its handle. The JWK is cloned.
func NewKey(value Value, handle *provider.CryptoKey) *Key {
	return &Key{Value: Clone(value), Handle: handle}
}

// KeyID returns the "kid" member, if any.
func (k *Key) KeyID() string {
	return StringParam(k.Value, KeyID)
}

// Use returns the "use" member, if any.
func (k *Key) Use() string {
	return StringParam(k.Value, PublicKeyUse)
}

// Algorithm returns the "alg" member, if any.
func (k *Key) Algorithm() string {
	return StringParam(k.Value, Algorithm)
}

// MarshalJSON emits the JWK members only.
func (k *Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Value)
}

// KeySet is a JWK set whose keys have been imported.
type KeySet struct {
	Keys []*Key
}

// MarshalJSON emits {"keys":[...]} without key handles.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	values := make([]Value, 0, len(s.Keys))
	for _, key := range s.Keys {
		values = append(values, key.Value)
	}
	return json.Marshal(Set{Keys: values})
}

// Get returns the imported key with the given key id.
func (s *KeySet) Get(keyID string) (*Key, error) {
	for _, key := range s.Keys {
		if key.KeyID() == keyID {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, keyID)
}

// Importer turns a JWK into an imported Key. The JWA registry is the
// usual implementation, picking the algorithm adapter from the JWK "alg".
type Importer interface {
	ImportKey(ctx context.Context, value Value) (*Key, error)
}

// Import imports every key of the set, in order.
func (s *Set) Import(ctx context.Context, importer Importer) (*KeySet, error) {
	out := &KeySet{Keys: make([]*Key, 0, len(s.Keys))}
	for i, value := range s.Keys {
		key, err := importer.ImportKey(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("failed to import key at index %d: %w", i, err)
		}
		out.Keys = append(out.Keys, key)
	}
	return out, nil
}
