package jwa

import (
	"context"
	"crypto"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// Family names.
const (
	FamilyHMAC           = "HMAC"
	FamilyRSASSAPKCS1v15 = "RSASSA-PKCS1-v1_5"
	FamilyRSAPSS         = "RSASSA-PSS"
	FamilyECDSA          = "ECDSA"
	FamilyEdDSA          = "EdDSA"
	FamilyNone           = "none"
	FamilyAESGCM         = "AES-GCM"
)

// signatureAdapter serves every family whose signature is a single
// provider call: HMAC, RSASSA-PKCS1-v1_5, RSASSA-PSS, ECDSA, and EdDSA.
type signatureAdapter struct {
	unsupported
	importer keyImporter
}

func newSignatureAdapter(family string, alg Algorithm, p provider.Provider, params provider.Params) *signatureAdapter {
	return &signatureAdapter{
		unsupported: unsupported{family: family},
		importer: keyImporter{
			alg:      alg,
			provider: p,
			params:   params,
			purpose:  signaturePurpose,
		},
	}
}

// NewHMAC returns the adapter for HS256, HS384, or HS512.
func NewHMAC(alg Algorithm, h crypto.Hash, p provider.Provider) Adapter {
	return newSignatureAdapter(FamilyHMAC, alg, p, provider.Params{Name: provider.HMAC, Hash: h})
}

// NewRSASSAPKCS1v15 returns the adapter for RS256, RS384, or RS512.
func NewRSASSAPKCS1v15(alg Algorithm, h crypto.Hash, p provider.Provider) Adapter {
	return newSignatureAdapter(FamilyRSASSAPKCS1v15, alg, p, provider.Params{Name: provider.RSASSAPKCS1v15, Hash: h})
}

// NewRSAPSS returns the adapter for PS256, PS384, or PS512.
func NewRSAPSS(alg Algorithm, h crypto.Hash, p provider.Provider) Adapter {
	return newSignatureAdapter(FamilyRSAPSS, alg, p, provider.Params{Name: provider.RSAPSS, Hash: h, SaltLength: h.Size()})
}

// NewECDSA returns the adapter for ES256, ES384, or ES512.
func NewECDSA(alg Algorithm, h crypto.Hash, curve string, p provider.Provider) Adapter {
	return newSignatureAdapter(FamilyECDSA, alg, p, provider.Params{Name: provider.ECDSA, Hash: h, NamedCurve: curve})
}

// NewEdDSA returns the adapter for EdDSA over Ed25519.
func NewEdDSA(p provider.Provider) Adapter {
	return newSignatureAdapter(FamilyEdDSA, EdDSA, p, provider.Params{Name: provider.Ed25519})
}

func (a *signatureAdapter) Sign(ctx context.Context, key *provider.CryptoKey, data []byte) (string, error) {
	sig, err := a.importer.provider.Sign(ctx, a.importer.params, key, data)
	if err != nil {
		return "", fmt.Errorf("failed to sign with %s: %w", a.importer.alg, err)
	}
	return base64.Encode(sig), nil
}

func (a *signatureAdapter) Verify(ctx context.Context, key *provider.CryptoKey, signature string, data []byte) (bool, error) {
	sig, err := base64.Decode(signature)
	if err != nil {
		// A signature that is not base64url cannot match.
		return false, nil
	}

	ok, err := a.importer.provider.Verify(ctx, a.importer.params, key, sig, data)
	if err != nil {
		return false, fmt.Errorf("failed to verify with %s: %w", a.importer.alg, err)
	}
	return ok, nil
}

func (a *signatureAdapter) ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error) {
	return a.importer.ImportKey(ctx, value)
}

// noneAdapter implements the "none" algorithm: the signature is always the
// empty string and every signature verifies.
//
// https://datatracker.ietf.org/doc/html/rfc7518#section-3.6
type noneAdapter struct {
	unsupported
}

// NewNone returns the adapter for "none".
func NewNone() Adapter {
	return noneAdapter{unsupported: unsupported{family: FamilyNone}}
}

func (noneAdapter) Sign(ctx context.Context, _ *provider.CryptoKey, _ []byte) (string, error) {
	return "", ctx.Err()
}

func (noneAdapter) Verify(ctx context.Context, _ *provider.CryptoKey, _ string, _ []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}
