// Package software implements provider.Provider with Go's crypto packages.
package software

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"io"
	"math/big"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// RawKey is the keyData member holding the octets of a FormatRaw import.
const RawKey = "raw"

// Provider is the in-process crypto provider.
type Provider struct {
	rand io.Reader
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider backed by crypto/rand.
func New() *Provider {
	return &Provider{rand: rand.Reader}
}

// NewWithRand returns a provider that draws randomness from r. It is meant
// for deterministic tests.
func NewWithRand(r io.Reader) *Provider {
	return &Provider{rand: r}
}

func digest(h crypto.Hash, data []byte) ([]byte, error) {
	if h == 0 || !h.Available() {
		return nil, fmt.Errorf("%w: hash %v", provider.ErrUnsupportedAlgorithm, h)
	}
	hash := h.New()
	hash.Write(data)
	return hash.Sum(nil), nil
}

func (p *Provider) Sign(ctx context.Context, params provider.Params, key *provider.CryptoKey, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := provider.Check(key, provider.UsageSign); err != nil {
		return nil, err
	}

	switch params.Name {
	case provider.HMAC:
		secret, ok := key.Material().([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: HMAC requires a secret key", provider.ErrInvalidKeyData)
		}
		return mac(params.Hash, secret, data)
	case provider.RSASSAPKCS1v15:
		priv, ok := key.Material().(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires an RSA private key", provider.ErrInvalidKeyData, params.Name)
		}
		d, err := digest(params.Hash, data)
		if err != nil {
			return nil, err
		}
		return rsa.SignPKCS1v15(p.rand, priv, params.Hash, d)
	case provider.RSAPSS:
		priv, ok := key.Material().(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires an RSA private key", provider.ErrInvalidKeyData, params.Name)
		}
		d, err := digest(params.Hash, data)
		if err != nil {
			return nil, err
		}
		return rsa.SignPSS(p.rand, priv, params.Hash, d, pssOptions(params))
	case provider.ECDSA:
		priv, ok := key.Material().(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: ECDSA requires an EC private key", provider.ErrInvalidKeyData)
		}
		d, err := digest(params.Hash, data)
		if err != nil {
			return nil, err
		}
		r, s, err := ecdsa.Sign(p.rand, priv, d)
		if err != nil {
			return nil, fmt.Errorf("failed to sign with ECDSA: %w", err)
		}
		// JWS uses the fixed-width R || S form, not ASN.1.
		//
		// https://datatracker.ietf.org/doc/html/rfc7518#section-3.4
		size := curveBytes(priv.Curve.Params().BitSize)
		out := make([]byte, 2*size)
		r.FillBytes(out[:size])
		s.FillBytes(out[size:])
		return out, nil
	case provider.Ed25519:
		priv, ok := key.Material().(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: Ed25519 requires an Ed25519 private key", provider.ErrInvalidKeyData)
		}
		return ed25519.Sign(priv, data), nil
	default:
		return nil, fmt.Errorf("%w: %q cannot sign", provider.ErrUnsupportedAlgorithm, params.Name)
	}
}

func (p *Provider) Verify(ctx context.Context, params provider.Params, key *provider.CryptoKey, signature, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := provider.Check(key, provider.UsageVerify); err != nil {
		return false, err
	}

	switch params.Name {
	case provider.HMAC:
		secret, ok := key.Material().([]byte)
		if !ok {
			return false, fmt.Errorf("%w: HMAC requires a secret key", provider.ErrInvalidKeyData)
		}
		expected, err := mac(params.Hash, secret, data)
		if err != nil {
			return false, err
		}
		return hmac.Equal(expected, signature), nil
	case provider.RSASSAPKCS1v15, provider.RSAPSS:
		pub, err := rsaPublic(key)
		if err != nil {
			return false, err
		}
		d, err := digest(params.Hash, data)
		if err != nil {
			return false, err
		}
		if params.Name == provider.RSAPSS {
			return rsa.VerifyPSS(pub, params.Hash, d, signature, pssOptions(params)) == nil, nil
		}
		return rsa.VerifyPKCS1v15(pub, params.Hash, d, signature) == nil, nil
	case provider.ECDSA:
		pub, err := ecdsaPublic(key)
		if err != nil {
			return false, err
		}
		size := curveBytes(pub.Curve.Params().BitSize)
		if len(signature) != 2*size {
			return false, nil
		}
		d, err := digest(params.Hash, data)
		if err != nil {
			return false, err
		}
		r := new(big.Int).SetBytes(signature[:size])
		s := new(big.Int).SetBytes(signature[size:])
		return ecdsa.Verify(pub, d, r, s), nil
	case provider.Ed25519:
		var pub ed25519.PublicKey
		switch material := key.Material().(type) {
		case ed25519.PublicKey:
			pub = material
		case ed25519.PrivateKey:
			pub = material.Public().(ed25519.PublicKey)
		default:
			return false, fmt.Errorf("%w: Ed25519 requires an Ed25519 key", provider.ErrInvalidKeyData)
		}
		return ed25519.Verify(pub, data, signature), nil
	default:
		return false, fmt.Errorf("%w: %q cannot verify", provider.ErrUnsupportedAlgorithm, params.Name)
	}
}

func (p *Provider) Encrypt(ctx context.Context, params provider.Params, key *provider.CryptoKey, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := provider.Check(key, provider.UsageEncrypt); err != nil {
		return nil, err
	}

	aead, err := gcm(params, key)
	if err != nil {
		return nil, err
	}
	if len(params.IV) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: AES-GCM IV must be %d bytes, got %d", provider.ErrInvalidKeyData, aead.NonceSize(), len(params.IV))
	}

	return aead.Seal(nil, params.IV, plaintext, params.AdditionalData), nil
}

func (p *Provider) Decrypt(ctx context.Context, params provider.Params, key *provider.CryptoKey, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := provider.Check(key, provider.UsageDecrypt); err != nil {
		return nil, err
	}

	aead, err := gcm(params, key)
	if err != nil {
		return nil, err
	}
	if len(params.IV) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: AES-GCM IV must be %d bytes, got %d", provider.ErrInvalidKeyData, aead.NonceSize(), len(params.IV))
	}

	plaintext, err := aead.Open(nil, params.IV, ciphertext, params.AdditionalData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt with AES-GCM: %w", err)
	}
	return plaintext, nil
}

func (p *Provider) RandomValues(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.ReadFull(p.rand, buf); err != nil {
		return fmt.Errorf("failed to read random values: %w", err)
	}
	return nil
}

func mac(h crypto.Hash, secret, data []byte) ([]byte, error) {
	if h == 0 || !h.Available() {
		return nil, fmt.Errorf("%w: hash %v", provider.ErrUnsupportedAlgorithm, h)
	}
	m := hmac.New(h.New, secret)
	m.Write(data)
	return m.Sum(nil), nil
}

func pssOptions(params provider.Params) *rsa.PSSOptions {
	if params.SaltLength > 0 {
		return &rsa.PSSOptions{SaltLength: params.SaltLength, Hash: params.Hash}
	}
	return &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: params.Hash}
}

func curveBytes(bitSize int) int {
	return (bitSize + 7) / 8
}

func rsaPublic(key *provider.CryptoKey) (*rsa.PublicKey, error) {
	switch material := key.Material().(type) {
	case *rsa.PublicKey:
		return material, nil
	case *rsa.PrivateKey:
		return &material.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: RSA algorithms require an RSA key", provider.ErrInvalidKeyData)
	}
}

func ecdsaPublic(key *provider.CryptoKey) (*ecdsa.PublicKey, error) {
	switch material := key.Material().(type) {
	case *ecdsa.PublicKey:
		return material, nil
	case *ecdsa.PrivateKey:
		return &material.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: ECDSA requires an EC key", provider.ErrInvalidKeyData)
	}
}

func gcm(params provider.Params, key *provider.CryptoKey) (cipher.AEAD, error) {
	if params.Name != provider.AESGCM {
		return nil, fmt.Errorf("%w: %q cannot encrypt", provider.ErrUnsupportedAlgorithm, params.Name)
	}

	secret, ok := key.Material().([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: AES-GCM requires a secret key", provider.ErrInvalidKeyData)
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrInvalidKeyData, err)
	}

	tagSize := 16
	if params.TagLength != 0 {
		tagSize = params.TagLength / 8
	}

	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrUnsupportedAlgorithm, err)
	}
	return aead, nil
}

// jwkMaterial extracts the Go key held by a JWK for the given algorithm.
func jwkMaterial(value jwk.Value, params provider.Params) (any, provider.KeyType, error) {
	private := jwk.IsPrivate(value)

	switch params.Name {
	case provider.HMAC, provider.AESGCM:
		secret, err := jwk.SymmetricKey(value)
		if err != nil {
			return nil, "", err
		}
		return secret, provider.KeyTypeSecret, nil
	case provider.RSASSAPKCS1v15, provider.RSAPSS:
		if private {
			key, err := jwk.RSAPrivateKey(value)
			return key, provider.KeyTypePrivate, err
		}
		key, err := jwk.RSAPublicKey(value)
		return key, provider.KeyTypePublic, err
	case provider.ECDSA:
		if crv := jwk.StringParam(value, jwk.Curve); params.NamedCurve != "" && crv != params.NamedCurve {
			return nil, "", fmt.Errorf("JWK curve %q does not match %q", crv, params.NamedCurve)
		}
		if private {
			key, err := jwk.ECDSAPrivateKey(value)
			return key, provider.KeyTypePrivate, err
		}
		key, err := jwk.ECDSAPublicKey(value)
		return key, provider.KeyTypePublic, err
	case provider.Ed25519:
		if private {
			key, err := jwk.Ed25519PrivateKey(value)
			return key, provider.KeyTypePrivate, err
		}
		key, err := jwk.Ed25519PublicKey(value)
		return key, provider.KeyTypePublic, err
	default:
		return nil, "", fmt.Errorf("%w: %q", provider.ErrUnsupportedAlgorithm, params.Name)
	}
}

// allowedUsages lists what each key type may be imported for.
var allowedUsages = map[string]map[provider.KeyType][]provider.Usage{
	provider.HMAC: {
		provider.KeyTypeSecret: {provider.UsageSign, provider.UsageVerify},
	},
	provider.AESGCM: {
		provider.KeyTypeSecret: {provider.UsageEncrypt, provider.UsageDecrypt},
	},
}

func permitted(name string, typ provider.KeyType, usage provider.Usage) bool {
	if byType, ok := allowedUsages[name]; ok {
		for _, u := range byType[typ] {
			if u == usage {
				return true
			}
		}
		return false
	}

	// Asymmetric signature algorithms.
	switch typ {
	case provider.KeyTypePrivate:
		return usage == provider.UsageSign || usage == provider.UsageVerify
	case provider.KeyTypePublic:
		return usage == provider.UsageVerify
	default:
		return false
	}
}

func (p *Provider) ImportKey(ctx context.Context, format provider.Format, keyData map[string]any, params provider.Params, extractable bool, usages []provider.Usage) (*provider.CryptoKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		material any
		typ      provider.KeyType
	)

	switch format {
	case provider.FormatJWK:
		var err error
		material, typ, err = jwkMaterial(keyData, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", provider.ErrInvalidKeyData, err)
		}
	case provider.FormatRaw:
		if params.Name != provider.HMAC && params.Name != provider.AESGCM {
			return nil, fmt.Errorf("%w: raw import of %q", provider.ErrUnsupportedFormat, params.Name)
		}
		raw, ok := keyData[RawKey].([]byte)
		if !ok || len(raw) == 0 {
			return nil, fmt.Errorf("%w: missing %q octets", provider.ErrInvalidKeyData, RawKey)
		}
		material, typ = append([]byte(nil), raw...), provider.KeyTypeSecret
	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedFormat, format)
	}

	if params.Name == provider.AESGCM {
		secret := material.([]byte)
		switch len(secret) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: AES key must be 128, 192, or 256 bits", provider.ErrInvalidKeyData)
		}
		if params.Length != 0 && params.Length != len(secret)*8 {
			return nil, fmt.Errorf("%w: AES key is %d bits, want %d", provider.ErrInvalidKeyData, len(secret)*8, params.Length)
		}
	}

	for _, usage := range usages {
		if !permitted(params.Name, typ, usage) {
			return nil, fmt.Errorf("%w: %s key cannot be used to %s", provider.ErrUsageNotPermitted, typ, usage)
		}
	}

	return provider.NewCryptoKey(typ, params, extractable, usages, material), nil
}
