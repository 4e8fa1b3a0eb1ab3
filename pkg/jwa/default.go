package jwa

import (
	"context"
	"crypto"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
	"github.com/anvilresearch/jose-sub000/pkg/provider/software"
)

// Default is the sealed registry over the software provider.
var Default = MustNewDefaultRegistry(software.New())

var signVerifyImport = []Operation{OperationSign, OperationVerify, OperationImportKey}

// RegisterDefaults defines every algorithm this package implements on r,
// bound to p.
func RegisterDefaults(r *Registry, p provider.Provider) error {
	hashes := []struct {
		hash  crypto.Hash
		hs    Algorithm
		rs    Algorithm
		ps    Algorithm
		es    Algorithm
		curve string
	}{
		{crypto.SHA256, HS256, RS256, PS256, ES256, "P-256"},
		{crypto.SHA384, HS384, RS384, PS384, ES384, "P-384"},
		{crypto.SHA512, HS512, RS512, PS512, ES512, "P-521"},
	}

	for _, h := range hashes {
		if err := r.DefineAll(h.hs, NewHMAC(h.hs, h.hash, p), signVerifyImport...); err != nil {
			return err
		}
		if err := r.DefineAll(h.rs, NewRSASSAPKCS1v15(h.rs, h.hash, p), signVerifyImport...); err != nil {
			return err
		}
		if err := r.DefineAll(h.ps, NewRSAPSS(h.ps, h.hash, p), signVerifyImport...); err != nil {
			return err
		}
		if err := r.DefineAll(h.es, NewECDSA(h.es, h.hash, h.curve, p), signVerifyImport...); err != nil {
			return err
		}
	}

	if err := r.DefineAll(EdDSA, NewEdDSA(p), signVerifyImport...); err != nil {
		return err
	}

	if err := r.DefineAll(None, NewNone(), OperationSign, OperationVerify); err != nil {
		return err
	}

	for alg, bits := range map[Algorithm]int{A128GCM: 128, A192GCM: 192, A256GCM: 256} {
		if err := r.DefineAll(alg, NewAESGCM(alg, bits, p), OperationEncrypt, OperationDecrypt, OperationImportKey); err != nil {
			return err
		}
	}

	return nil
}

// NewDefaultRegistry returns a sealed registry with every algorithm this
// package implements, bound to p.
func NewDefaultRegistry(p provider.Provider) (*Registry, error) {
	r := NewRegistry()
	if err := RegisterDefaults(r, p); err != nil {
		return nil, err
	}
	r.Seal()
	return r, nil
}

// MustNewDefaultRegistry is like NewDefaultRegistry but panics on error.
func MustNewDefaultRegistry(p provider.Provider) *Registry {
	r, err := NewDefaultRegistry(p)
	if err != nil {
		panic(err)
	}
	return r
}

// Sign signs data with alg using the Default registry.
func Sign(ctx context.Context, alg Algorithm, key *provider.CryptoKey, data []byte) (string, error) {
	return Default.Sign(ctx, alg, key, data)
}

// Verify verifies signature over data with alg using the Default registry.
func Verify(ctx context.Context, alg Algorithm, key *provider.CryptoKey, signature string, data []byte) (bool, error) {
	return Default.Verify(ctx, alg, key, signature, data)
}

// Encrypt encrypts plaintext with alg using the Default registry.
func Encrypt(ctx context.Context, alg Algorithm, key *provider.CryptoKey, plaintext, aad []byte) (*Ciphertext, error) {
	return Default.Encrypt(ctx, alg, key, plaintext, aad)
}

// Decrypt decrypts ciphertext with alg using the Default registry.
func Decrypt(ctx context.Context, alg Algorithm, key *provider.CryptoKey, ciphertext *Ciphertext, aad []byte) ([]byte, error) {
	return Default.Decrypt(ctx, alg, key, ciphertext, aad)
}

// ImportKey imports value using the Default registry, choosing the adapter
// from the JWK "alg" member.
func ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error) {
	return Default.ImportKey(ctx, value)
}
