// Package keyutil generates keys and moves them between PEM and JWK.
package keyutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"strings"

	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
)

// SymmetricKeysEqual checks if the given keys are the same.
func SymmetricKeysEqual(key1 []byte, key2 []byte) bool {
	return subtle.ConstantTimeCompare(key1, key2) == 1
}

// NewSymmetricKey generates a new symmetric key of the given size.
func NewSymmetricKey(size int) ([]byte, error) {
	key := make([]byte, size)

	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new symmetic key: %w", err)
	}

	return key, nil
}

// NewRSAKeyPair returns a new RSA key pair, or an error if one occurs.
func NewRSAKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new RSA key pair: %w", err)
	}

	return &privateKey.PublicKey, privateKey, nil
}

// NewECDSAKeyPair returns a new P-256 ECDSA key pair, or an error if one occurs.
func NewECDSAKeyPair() (*ecdsa.PublicKey, *ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new ECDSA key pair: %w", err)
	}

	return &privateKey.PublicKey, privateKey, nil
}

// NewEdDSAKeyPair returns a new EdDSA key pair, or an error if one occurs.
func NewEdDSAKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new EdDSA key pair: %w", err)
	}

	return publicKey, privateKey, nil
}

// GenerateKey returns a new private key suited to alg: a []byte for HMAC
// and AES GCM, or an *rsa.PrivateKey, *ecdsa.PrivateKey, or
// ed25519.PrivateKey for signatures.
func GenerateKey(alg jwa.Algorithm) (any, error) {
	switch alg {
	case jwa.HS256, jwa.A256GCM:
		return NewSymmetricKey(32)
	case jwa.HS384:
		return NewSymmetricKey(48)
	case jwa.HS512:
		return NewSymmetricKey(64)
	case jwa.A128GCM:
		return NewSymmetricKey(16)
	case jwa.A192GCM:
		return NewSymmetricKey(24)
	case jwa.RS256, jwa.RS384, jwa.RS512, jwa.PS256, jwa.PS384, jwa.PS512:
		_, key, err := NewRSAKeyPair()
		return key, err
	case jwa.ES256:
		_, key, err := NewECDSAKeyPair()
		return key, err
	case jwa.ES384:
		return newECDSAKey(elliptic.P384())
	case jwa.ES512:
		return newECDSAKey(elliptic.P521())
	case jwa.EdDSA:
		_, key, err := NewEdDSAKeyPair()
		return key, err
	default:
		return nil, fmt.Errorf("cannot generate a key for algorithm %q", alg)
	}
}

func newECDSAKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new ECDSA key: %w", err)
	}
	return key, nil
}

// decodeBlock reads r and returns its first PEM block.
func decodeBlock(r io.Reader) (*pem.Block, error) {
	keyBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read key from reader: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode key PEM block")
	}

	return block, nil
}

// ParsePrivateKey parses a PEM encoded PKCS #1, PKCS #8, or SEC 1 private
// key from the given reader.
func ParsePrivateKey(r io.Reader) (any, error) {
	block, err := decodeBlock(r)
	if err != nil {
		return nil, err
	}
	return parsePrivateBlock(block)
}

func parsePrivateBlock(block *pem.Block) (any, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("failed to parse private key, unknown type %q", block.Type)
}

// ParsePublicKey parses a PEM encoded PKIX or PKCS #1 public key, or the
// public key of a certificate, from the given reader.
func ParsePublicKey(r io.Reader) (any, error) {
	block, err := decodeBlock(r)
	if err != nil {
		return nil, err
	}
	return parsePublicBlock(block)
}

func parsePublicBlock(block *pem.Block) (any, error) {
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return key, nil
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		return cert.PublicKey, nil
	}

	return nil, fmt.Errorf("failed to parse public key, unknown type %q", block.Type)
}

// ParseRSAPrivateKey parses the PEM encoded RSA private key from the given reader.
func ParseRSAPrivateKey(r io.Reader) (*rsa.PrivateKey, error) {
	return parseAs[*rsa.PrivateKey](r, ParsePrivateKey)
}

// ParseECDSAPrivateKey parses the PEM encoded ECDSA private key from the given reader.
func ParseECDSAPrivateKey(r io.Reader) (*ecdsa.PrivateKey, error) {
	return parseAs[*ecdsa.PrivateKey](r, ParsePrivateKey)
}

// ParseEdDSAPrivateKey parses the PEM encoded Ed25519 private key from the given reader.
func ParseEdDSAPrivateKey(r io.Reader) (ed25519.PrivateKey, error) {
	return parseAs[ed25519.PrivateKey](r, ParsePrivateKey)
}

// ParseRSAPublicKey parses the PEM encoded RSA public key from the given reader.
func ParseRSAPublicKey(r io.Reader) (*rsa.PublicKey, error) {
	return parseAs[*rsa.PublicKey](r, ParsePublicKey)
}

// ParseECDSAPublicKey parses the PEM encoded ECDSA public key from the given reader.
func ParseECDSAPublicKey(r io.Reader) (*ecdsa.PublicKey, error) {
	return parseAs[*ecdsa.PublicKey](r, ParsePublicKey)
}

// ParseEdDSAPublicKey parses the PEM encoded Ed25519 public key from the given reader.
func ParseEdDSAPublicKey(r io.Reader) (ed25519.PublicKey, error) {
	return parseAs[ed25519.PublicKey](r, ParsePublicKey)
}

func parseAs[K any](r io.Reader, parse func(io.Reader) (any, error)) (K, error) {
	var zero K

	key, err := parse(r)
	if err != nil {
		return zero, err
	}

	typed, ok := key.(K)
	if !ok {
		return zero, fmt.Errorf("invalid key type %T, want %T", key, zero)
	}

	return typed, nil
}

// MarshalPrivateKey encodes a private key as a PKCS #8 PEM block.
func MarshalPrivateKey(key any) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// MarshalPublicKey encodes a public key as a PKIX PEM block.
func MarshalPublicKey(key any) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ValueFromPEM reads a PEM encoded private or public key and returns it as
// a JWK. A non-empty alg is recorded in the JWK "alg" member.
func ValueFromPEM(r io.Reader, alg jwa.Algorithm) (jwk.Value, error) {
	block, err := decodeBlock(r)
	if err != nil {
		return nil, err
	}

	var value jwk.Value
	if strings.Contains(block.Type, "PRIVATE") {
		key, err := parsePrivateBlock(block)
		if err != nil {
			return nil, err
		}
		value, err = jwk.ValueFromPrivateKey(key)
		if err != nil {
			return nil, err
		}
	} else {
		key, err := parsePublicBlock(block)
		if err != nil {
			return nil, err
		}
		value, err = jwk.ValueFromPublicKey(key)
		if err != nil {
			return nil, err
		}
	}

	if alg != "" {
		value[jwk.Algorithm] = alg
	}
	return value, nil
}

// ImportPEM reads a PEM encoded key and imports it for alg. A nil registry
// selects jwa.Default.
func ImportPEM(ctx context.Context, registry *jwa.Registry, r io.Reader, alg jwa.Algorithm) (*jwk.Key, error) {
	value, err := ValueFromPEM(r, alg)
	if err != nil {
		return nil, err
	}

	if registry == nil {
		registry = jwa.Default
	}

	return registry.ImportKeyFor(ctx, alg, value)
}
