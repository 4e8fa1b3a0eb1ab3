package jws

import (
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/header"
)

// SigningInput returns the bytes a signature is computed over:
//
//	BASE64URL(UTF8(JSON(protected))) "." BASE64URL(UTF8(JSON(payload)))
//
// The payload is JSON encoded whatever its type. The result only depends on
// its arguments.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-5.1
func SigningInput(protected header.Parameters, payload any) ([]byte, error) {
	h, err := protected.Base64URLString()
	if err != nil {
		return nil, err
	}

	p, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	return signingInput(h, p), nil
}

// signingInput joins already encoded segments.
func signingInput(protected, payload string) []byte {
	out := make([]byte, 0, len(protected)+1+len(payload))
	out = append(out, protected...)
	out = append(out, '.')
	out = append(out, payload...)
	return out
}

// SigningInput returns the signing input of the signature at index i, using
// the exact header and payload bytes the token carries.
func (t *Token) SigningInput(i int) ([]byte, error) {
	if i < 0 || i >= len(t.Signatures) {
		return nil, fmt.Errorf("signature index %d out of range", i)
	}

	h, err := t.Signatures[i].encodedProtected()
	if err != nil {
		return nil, err
	}

	p, err := t.encodedPayload()
	if err != nil {
		return nil, err
	}

	return signingInput(h, p), nil
}
