// Package thumbprint computes JWK Thumbprints.
//
// https://datatracker.ietf.org/doc/html/rfc7638
package thumbprint

import (
	"crypto"
	_ "crypto/sha256"
	"errors"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
)

var (
	ErrInvalidKey = errors.New("thumbprint: invalid key")
)

// required lists the members hashed for each key type.
//
// https://datatracker.ietf.org/doc/html/rfc7638#section-3.2
// https://datatracker.ietf.org/doc/html/rfc8037#section-2
var required = map[string][]string{
	jwk.KeyTypeRSA:       {jwk.E, jwk.KeyType, jwk.N},
	jwk.KeyTypeEC:        {jwk.Curve, jwk.KeyType, jwk.X, jwk.Y},
	jwk.KeyTypeOctetPair: {jwk.Curve, jwk.KeyType, jwk.X},
	jwk.KeyTypeOctet:     {jwk.K, jwk.KeyType},
}

// Generate returns the JWK Thumbprint for the given JWK following
// the steps defined in RFC 7638. A zero hash selects SHA-256.
func Generate(value jwk.Value, h crypto.Hash) ([]byte, error) {
	kty := jwk.StringParam(value, jwk.KeyType)

	members, ok := required[kty]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %q", ErrInvalidKey, kty)
	}

	// 1. Construct a JSON object containing only the required members,
	// with no whitespace and with the members ordered lexicographically.
	// encoding/json writes map keys in sorted order, which is exactly the
	// ordering RFC 7638 asks for.
	subset := make(map[string]string, len(members))
	for _, name := range members {
		s := jwk.StringParam(value, name)
		if s == "" {
			return nil, fmt.Errorf("%w: missing required member %q", ErrInvalidKey, name)
		}
		subset[name] = s
	}

	b, err := base64.MarshalJSON(subset)
	if err != nil {
		return nil, err
	}

	// 2. Hash the octets of the UTF-8 representation of this JSON object.
	if h == 0 {
		h = crypto.SHA256
	}
	if !h.Available() {
		return nil, fmt.Errorf("thumbprint: hash %v is not available", h)
	}

	hash := h.New()
	hash.Write(b)

	return hash.Sum(nil), nil
}

// GenerateString returns the base64url encoded JWK Thumbprint, the form
// commonly used as a "kid".
func GenerateString(value jwk.Value, h crypto.Hash) (string, error) {
	thumbprint, err := Generate(value, h)
	if err != nil {
		return "", err
	}

	return base64.Encode(thumbprint), nil
}
