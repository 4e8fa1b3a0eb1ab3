package jws

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToDocument returns a copy of t in the document form matching its
// signature layout: FlattenedDocument for a single-signature token,
// Document otherwise. Signatures carry over unchanged, so the payload must
// already be encoded as compact JSON.
func (t *Token) ToDocument() (*Token, error) {
	if t.Serialization.IsDocument() {
		return t.Clone(), nil
	}

	payload, err := t.encodedPayload()
	if err != nil {
		return nil, validationError(err)
	}

	b, err := t.payloadJSON()
	if err != nil {
		return nil, validationError(err)
	}
	if !json.Valid(b) {
		return nil, validationErrorf("payload is not JSON")
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, b); err != nil {
		return nil, validationError(err)
	}
	if !bytes.Equal(compacted.Bytes(), b) {
		return nil, validationErrorf("payload is not compact JSON")
	}

	out := t.Clone()
	out.bindPayload(payload)
	out.Serialization = Document
	if t.Serialization.single() {
		out.Serialization = FlattenedDocument
	}
	return out, nil
}

// ToJWS returns a copy of t in serialization s, which must be one of
// Compact, Flattened, or General. The payload bytes and signatures carry
// over unchanged.
func (t *Token) ToJWS(s Serialization) (*Token, error) {
	switch s {
	case Compact, Flattened, General:
	default:
		return nil, validationErrorf("%v is not a JWS serialization", s)
	}

	if s.single() && len(t.Signatures) != 1 {
		return nil, validationErrorf("%s serialization requires exactly one signature, got %d", s, len(t.Signatures))
	}

	if s == Compact {
		for _, sig := range t.Signatures {
			if len(sig.Header) > 0 {
				return nil, validationErrorf("compact serialization cannot carry an unprotected header")
			}
		}
	}

	payload, err := t.encodedPayload()
	if err != nil {
		return nil, validationError(fmt.Errorf("failed to encode payload: %w", err))
	}

	out := t.Clone()
	out.bindPayload(payload)
	out.Serialization = s
	return out, nil
}
