package jwa

import (
	"context"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

const (
	gcmIVSize  = 12
	gcmTagSize = 16
)

type aesGCMAdapter struct {
	unsupported
	importer keyImporter
}

// NewAESGCM returns the adapter for A128GCM, A192GCM, or A256GCM. bits is
// the key size.
func NewAESGCM(alg Algorithm, bits int, p provider.Provider) Adapter {
	return &aesGCMAdapter{
		unsupported: unsupported{family: FamilyAESGCM},
		importer: keyImporter{
			alg:      alg,
			provider: p,
			params:   provider.Params{Name: provider.AESGCM, Length: bits},
			purpose:  encryptionPurpose,
		},
	}
}

func (a *aesGCMAdapter) params(iv, aad []byte) provider.Params {
	return provider.Params{
		Name:           provider.AESGCM,
		IV:             iv,
		AdditionalData: aad,
		TagLength:      gcmTagSize * 8,
	}
}

// Encrypt draws a fresh IV from the provider for every call.
func (a *aesGCMAdapter) Encrypt(ctx context.Context, key *provider.CryptoKey, plaintext, aad []byte) (*Ciphertext, error) {
	iv := make([]byte, gcmIVSize)
	if err := a.importer.provider.RandomValues(ctx, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed, err := a.importer.provider.Encrypt(ctx, a.params(iv, aad), key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt with %s: %w", a.importer.alg, err)
	}
	if len(sealed) < gcmTagSize {
		return nil, fmt.Errorf("failed to encrypt with %s: short output", a.importer.alg)
	}

	split := len(sealed) - gcmTagSize
	return &Ciphertext{
		IV:         iv,
		Ciphertext: sealed[:split:split],
		Tag:        sealed[split:],
	}, nil
}

func (a *aesGCMAdapter) Decrypt(ctx context.Context, key *provider.CryptoKey, ciphertext *Ciphertext, aad []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, fmt.Errorf("failed to decrypt with %s: no ciphertext", a.importer.alg)
	}

	sealed := make([]byte, 0, len(ciphertext.Ciphertext)+len(ciphertext.Tag))
	sealed = append(sealed, ciphertext.Ciphertext...)
	sealed = append(sealed, ciphertext.Tag...)

	plaintext, err := a.importer.provider.Decrypt(ctx, a.params(ciphertext.IV, aad), key, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt with %s: %w", a.importer.alg, err)
	}
	return plaintext, nil
}

func (a *aesGCMAdapter) ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error) {
	return a.importer.ImportKey(ctx, value)
}
