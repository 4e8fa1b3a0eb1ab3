// Package provider defines the boundary between the JOSE engine and the
// cryptographic primitive provider that actually signs, verifies, encrypts,
// decrypts, and imports keys.
//
// The shape follows the Web Cryptography API: algorithms are described by
// Params, keys are opaque CryptoKey handles that carry their permitted
// usages, and every primitive may block (hardware, OS key stores, remote
// services such as a Vault Transit engine), so every call takes a
// context.Context.
//
// https://www.w3.org/TR/WebCryptoAPI/
package provider

import (
	"context"
	"crypto"

	"golang.org/x/exp/slices"
)

// Provider is a capability-based cryptographic primitive provider.
type Provider interface {
	// Sign returns the raw signature (or MAC) of data.
	Sign(ctx context.Context, params Params, key *CryptoKey, data []byte) ([]byte, error)

	// Verify reports whether signature is valid for data. A mismatch is
	// (false, nil); an error means the check could not be performed.
	Verify(ctx context.Context, params Params, key *CryptoKey, signature, data []byte) (bool, error)

	// Encrypt returns ciphertext||tag for authenticated ciphers.
	Encrypt(ctx context.Context, params Params, key *CryptoKey, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(ctx context.Context, params Params, key *CryptoKey, ciphertext []byte) ([]byte, error)

	// ImportKey builds a key handle from key material in the given format.
	ImportKey(ctx context.Context, format Format, keyData map[string]any, params Params, extractable bool, usages []Usage) (*CryptoKey, error)

	// RandomValues fills buf with cryptographically secure random bytes.
	RandomValues(ctx context.Context, buf []byte) error
}

// Algorithm names, as used by the Web Cryptography API.
const (
	HMAC           = "HMAC"
	RSASSAPKCS1v15 = "RSASSA-PKCS1-v1_5"
	RSAPSS         = "RSA-PSS"
	ECDSA          = "ECDSA"
	Ed25519        = "Ed25519"
	AESGCM         = "AES-GCM"
)

// Params describes an algorithm and its parameters for one operation.
// Fields that do not apply to Name are ignored.
type Params struct {
	Name string

	// Hash is the digest used by HMAC, RSASSA-PKCS1-v1_5, RSA-PSS, and ECDSA.
	Hash crypto.Hash

	// NamedCurve is the ECDSA curve: "P-256", "P-384", or "P-521".
	NamedCurve string

	// SaltLength is the RSA-PSS salt length in bytes.
	SaltLength int

	// IV, AdditionalData, and TagLength (bits) apply to AES-GCM.
	IV             []byte
	AdditionalData []byte
	TagLength      int

	// Length is the AES key length in bits.
	Length int
}

// Usage is a permitted key operation.
type Usage string

const (
	UsageSign    Usage = "sign"
	UsageVerify  Usage = "verify"
	UsageEncrypt Usage = "encrypt"
	UsageDecrypt Usage = "decrypt"
)

// KeyType classifies a key handle.
type KeyType string

const (
	KeyTypeSecret  KeyType = "secret"
	KeyTypePublic  KeyType = "public"
	KeyTypePrivate KeyType = "private"
)

// Format names the encoding of key material handed to ImportKey.
type Format string

const (
	FormatJWK Format = "jwk"
	FormatRaw Format = "raw"
)

// CryptoKey is an opaque handle to key material owned by a provider.
//
// It is never serialized: JOSE structures carry it as a runtime-only field.
type CryptoKey struct {
	typ         KeyType
	algorithm   Params
	extractable bool
	usages      []Usage
	material    any
}

// NewCryptoKey is used by providers to wrap their key material.
func NewCryptoKey(typ KeyType, algorithm Params, extractable bool, usages []Usage, material any) *CryptoKey {
	return &CryptoKey{
		typ:         typ,
		algorithm:   algorithm,
		extractable: extractable,
		usages:      slices.Clone(usages),
		material:    material,
	}
}

func (k *CryptoKey) Type() KeyType { return k.typ }

func (k *CryptoKey) Algorithm() Params { return k.algorithm }

func (k *CryptoKey) Extractable() bool { return k.extractable }

func (k *CryptoKey) Usages() []Usage { return slices.Clone(k.usages) }

// Material returns the provider-specific key material. Only the provider
// that created the key knows what it is.
func (k *CryptoKey) Material() any { return k.material }

// Permits reports whether the key may be used for u.
func (k *CryptoKey) Permits(u Usage) bool {
	return k != nil && slices.Contains(k.usages, u)
}

// String never prints key material.
func (k *CryptoKey) String() string {
	if k == nil {
		return "CryptoKey(nil)"
	}
	return "CryptoKey(" + string(k.typ) + ", " + k.algorithm.Name + ")"
}

// Check returns an error unless key is present and permits u.
func Check(key *CryptoKey, u Usage) error {
	if key == nil {
		return ErrNoKey
	}
	if !key.Permits(u) {
		return &UsageError{Usage: u, Usages: key.Usages()}
	}
	return nil
}
