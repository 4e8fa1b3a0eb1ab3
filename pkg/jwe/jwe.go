// Package jwe recognizes JSON Web Encryption input. Decryption is not
// implemented: both parse functions validate the outer shape and then
// return ErrNotImplemented, so callers can tell an encrypted token apart
// from garbage.
//
// https://datatracker.ietf.org/doc/html/rfc7516
package jwe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
)

type Header = header.Parameters

// Header parameter names used by JWE.
//
// https://datatracker.ietf.org/doc/html/rfc7516#section-4.1
const (
	Algorithm                       header.ParameterName = "alg"
	EncryptionAlgorithm             header.ParameterName = "enc"
	CompressionAlgorithm            header.ParameterName = "zip"
	JWKSetURL                       header.ParameterName = "jku"
	JSONWebKey                      header.ParameterName = "jwk"
	KeyID                           header.ParameterName = "kid"
	X509URL                         header.ParameterName = "x5u"
	X509CertificateChain            header.ParameterName = "x5c"
	X509CertificateSHA1Thumbprint   header.ParameterName = "x5t"
	X509CertificateSHA256Thumbprint header.ParameterName = "x5t#S256"
	Type                            header.ParameterName = "typ"
	ContentType                     header.ParameterName = "cty"
	Critical                        header.ParameterName = "crit"
)

var (
	// ErrNotImplemented is returned for any well-formed JWE input.
	ErrNotImplemented = errors.New("jwe: not implemented")

	// ErrMalformed is returned when the input is not a JWE at all.
	ErrMalformed = errors.New("jwe: malformed input")
)

// Token is the outer structure of a JWE in compact form.
//
// https://datatracker.ietf.org/doc/html/rfc7516#section-7.1
type Token struct {
	Protected    Header
	EncryptedKey string
	IV           string
	Ciphertext   string
	Tag          string
}

// ParseCompact parses the five dot separated segments of a compact JWE.
func ParseCompact(segments []string) (*Token, error) {
	if len(segments) != 5 {
		return nil, fmt.Errorf("%w: expected 5 segments, got %d", ErrMalformed, len(segments))
	}

	var h Header
	if err := base64.DecodeJSON(segments[0], &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	token := &Token{
		Protected:    h,
		EncryptedKey: segments[1],
		IV:           segments[2],
		Ciphertext:   segments[3],
		Tag:          segments[4],
	}

	return token, unsupported(h)
}

// ParseJSON parses the JSON serialization of a JWE.
//
// https://datatracker.ietf.org/doc/html/rfc7516#section-7.2
func ParseJSON(data []byte) (*Token, error) {
	var raw struct {
		Protected    string `json:"protected"`
		EncryptedKey string `json:"encrypted_key"`
		IV           string `json:"iv"`
		Ciphertext   string `json:"ciphertext"`
		Tag          string `json:"tag"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw.Ciphertext == "" {
		return nil, fmt.Errorf("%w: missing ciphertext", ErrMalformed)
	}

	var h Header
	if raw.Protected != "" {
		if err := base64.DecodeJSON(raw.Protected, &h); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	token := &Token{
		Protected:    h,
		EncryptedKey: raw.EncryptedKey,
		IV:           raw.IV,
		Ciphertext:   raw.Ciphertext,
		Tag:          raw.Tag,
	}

	return token, unsupported(h)
}

func unsupported(h Header) error {
	alg, _ := h[Algorithm].(string)
	enc, _ := h[EncryptionAlgorithm].(string)
	return fmt.Errorf("%w: alg %q enc %q", ErrNotImplemented, alg, enc)
}
