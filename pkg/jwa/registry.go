package jwa

import (
	"context"
	"fmt"
	"sort"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

type entry struct {
	op  Operation
	alg Algorithm
}

// Registry maps (operation, algorithm) pairs to adapters.
//
// A registry is populated with Define and then sealed. Define is not safe
// for concurrent use; once sealed the registry is read-only and every
// method may be called concurrently.
type Registry struct {
	adapters map[entry]Adapter
	sealed   bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[entry]Adapter)}
}

// Define registers adapter for alg under op.
func (r *Registry) Define(alg Algorithm, op Operation, adapter Adapter) error {
	if r.sealed {
		return ErrSealed
	}
	if !op.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, op)
	}
	if alg == "" || adapter == nil {
		return fmt.Errorf("jwa: define requires an algorithm and an adapter")
	}

	key := entry{op: op, alg: alg}
	if _, ok := r.adapters[key]; ok {
		return fmt.Errorf("%w: %s for %s", ErrAlreadyDefined, alg, op)
	}
	r.adapters[key] = adapter
	return nil
}

// DefineAll registers adapter for alg under each of ops.
func (r *Registry) DefineAll(alg Algorithm, adapter Adapter, ops ...Operation) error {
	for _, op := range ops {
		if err := r.Define(alg, op, adapter); err != nil {
			return err
		}
	}
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Normalize returns the adapter registered for alg under op.
//
// An op outside the five recognized operations fails with
// ErrInvalidOperation; an unregistered alg fails with a *NotSupportedError.
func (r *Registry) Normalize(op Operation, alg Algorithm) (Adapter, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, op)
	}

	adapter, ok := r.adapters[entry{op: op, alg: alg}]
	if !ok {
		return nil, &NotSupportedError{Operation: op, Algorithm: alg}
	}
	return adapter, nil
}

// Algorithms returns the algorithms registered for op, sorted.
func (r *Registry) Algorithms(op Operation) []Algorithm {
	var algs []Algorithm
	for key := range r.adapters {
		if key.op == op {
			algs = append(algs, key.alg)
		}
	}
	sort.Strings(algs)
	return algs
}

// Sign signs data with the adapter registered for alg.
func (r *Registry) Sign(ctx context.Context, alg Algorithm, key *provider.CryptoKey, data []byte) (string, error) {
	adapter, err := r.Normalize(OperationSign, alg)
	if err != nil {
		return "", err
	}
	return adapter.Sign(ctx, key, data)
}

// Verify verifies a base64url signature over data with the adapter
// registered for alg.
func (r *Registry) Verify(ctx context.Context, alg Algorithm, key *provider.CryptoKey, signature string, data []byte) (bool, error) {
	adapter, err := r.Normalize(OperationVerify, alg)
	if err != nil {
		return false, err
	}
	return adapter.Verify(ctx, key, signature, data)
}

// Encrypt encrypts plaintext with the adapter registered for alg.
func (r *Registry) Encrypt(ctx context.Context, alg Algorithm, key *provider.CryptoKey, plaintext, aad []byte) (*Ciphertext, error) {
	adapter, err := r.Normalize(OperationEncrypt, alg)
	if err != nil {
		return nil, err
	}
	return adapter.Encrypt(ctx, key, plaintext, aad)
}

// Decrypt decrypts ciphertext with the adapter registered for alg.
func (r *Registry) Decrypt(ctx context.Context, alg Algorithm, key *provider.CryptoKey, ciphertext *Ciphertext, aad []byte) ([]byte, error) {
	adapter, err := r.Normalize(OperationDecrypt, alg)
	if err != nil {
		return nil, err
	}
	return adapter.Decrypt(ctx, key, ciphertext, aad)
}

// ImportKeyFor imports value with the adapter registered for alg.
func (r *Registry) ImportKeyFor(ctx context.Context, alg Algorithm, value jwk.Value) (*jwk.Key, error) {
	adapter, err := r.Normalize(OperationImportKey, alg)
	if err != nil {
		return nil, err
	}
	return adapter.ImportKey(ctx, value)
}

// ImportKey imports value with the adapter named by its "alg" member. It
// makes a Registry a jwk.Importer.
func (r *Registry) ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error) {
	alg := jwk.StringParam(value, jwk.Algorithm)
	if alg == "" {
		return nil, ErrMissingAlgorithm
	}
	return r.ImportKeyFor(ctx, alg, value)
}

var _ jwk.Importer = (*Registry)(nil)
