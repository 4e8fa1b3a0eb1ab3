package software

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// DefaultRSABits is the modulus size used when Params.Length is unset.
const DefaultRSABits = 2048

// GenerateJWK creates a new key for params and returns it as a private
// (or symmetric) JWK.
//
// Params.Length is the RSA modulus size, or the HMAC and AES key size, in bits.
func (p *Provider) GenerateJWK(ctx context.Context, params provider.Params) (jwk.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch params.Name {
	case provider.HMAC:
		bits := params.Length
		if bits == 0 {
			bits = params.Hash.Size() * 8
		}
		if bits <= 0 || bits%8 != 0 {
			return nil, fmt.Errorf("%w: invalid HMAC key length %d", provider.ErrInvalidKeyData, bits)
		}
		return p.secret(ctx, bits)
	case provider.AESGCM:
		switch params.Length {
		case 128, 192, 256:
		default:
			return nil, fmt.Errorf("%w: invalid AES key length %d", provider.ErrInvalidKeyData, params.Length)
		}
		return p.secret(ctx, params.Length)
	case provider.RSASSAPKCS1v15, provider.RSAPSS:
		bits := params.Length
		if bits == 0 {
			bits = DefaultRSABits
		}
		key, err := rsa.GenerateKey(p.rand, bits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		return jwk.ValueFromPrivateKey(key)
	case provider.ECDSA:
		var curve elliptic.Curve
		switch params.NamedCurve {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("%w: curve %q", provider.ErrUnsupportedAlgorithm, params.NamedCurve)
		}
		key, err := ecdsa.GenerateKey(curve, p.rand)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		return jwk.ValueFromPrivateKey(key)
	case provider.Ed25519:
		_, key, err := ed25519.GenerateKey(p.rand)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}
		return jwk.ValueFromPrivateKey(key)
	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedAlgorithm, params.Name)
	}
}

func (p *Provider) secret(ctx context.Context, bits int) (jwk.Value, error) {
	buf := make([]byte, bits/8)
	if err := p.RandomValues(ctx, buf); err != nil {
		return nil, err
	}
	return jwk.ValueFromPrivateKey(buf)
}
