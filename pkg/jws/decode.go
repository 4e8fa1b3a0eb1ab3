package jws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwe"
)

// Decode reconstructs a token from any of the five serializations. It
// never verifies and never attaches keys.
//
// Input that is not a JSON object is split on ".": three segments are a
// compact JWS, five are a compact JWE, anything else is a structural
// error. A JSON object with a "signatures" member is a general form,
// otherwise it is a flattened form. Either is a document form when its
// "payload" is a JSON value other than a string.
//
// JWE input is handed to package jwe and the error it returns is passed
// through.
func Decode[T ~string | ~[]byte](input T) (*Token, error) {
	s := strings.TrimSpace(string(input))

	if strings.HasPrefix(s, "{") {
		return decodeJSON([]byte(s))
	}

	segments := strings.Split(s, ".")
	switch len(segments) {
	case 3:
		return decodeCompact(segments)
	case 5:
		if _, err := jwe.ParseCompact(segments); err != nil {
			return nil, err
		}
		return nil, jwe.ErrNotImplemented
	default:
		return nil, structuralError(MessageMalformedToken, fmt.Errorf("expected 3 or 5 segments, got %d", len(segments)))
	}
}

func decodeCompact(segments []string) (*Token, error) {
	protected, err := decodeProtected(segments[0])
	if err != nil {
		return nil, structuralError(MessageMalformedToken, err)
	}

	payload, err := decodePayload(segments[1])
	if err != nil {
		return nil, structuralError(MessageMalformedToken, err)
	}

	if _, err := base64.DecodeSegment(segments[2]); err != nil {
		return nil, structuralError(MessageMalformedToken, fmt.Errorf("invalid signature: %w", err))
	}

	sig := &Signature{
		Protected: protected,
		signature: segments[2],
		signed:    true,
	}
	sig.bindProtected(segments[0])

	token := &Token{
		Payload:       payload,
		Signatures:    []*Signature{sig},
		Serialization: Compact,
	}
	token.bindPayload(segments[1])
	return token, nil
}

// rawSignature is the wire form of one signature entry in the JSON
// serializations. Members are decoded separately so their types can be
// checked.
type rawSignature struct {
	Protected json.RawMessage `json:"protected"`
	Header    json.RawMessage `json:"header"`
	Signature json.RawMessage `json:"signature"`
}

func decodeJSON(data []byte) (*Token, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, structuralError(MessageMalformedToken, err)
	}

	if _, ok := members["ciphertext"]; ok {
		if _, err := jwe.ParseJSON(data); err != nil {
			return nil, err
		}
		return nil, jwe.ErrNotImplemented
	}

	rawPayload, ok := members["payload"]
	if !ok || isNull(rawPayload) {
		return nil, structuralError(MessageMalformedToken, fmt.Errorf("missing payload"))
	}

	var (
		token = &Token{}
		raws  []rawSignature
	)

	document := rawPayload[0] != '"'

	if rawSigs, ok := members["signatures"]; ok {
		if err := json.Unmarshal(rawSigs, &raws); err != nil {
			return nil, structuralError(invalidMessage(document), fmt.Errorf("signatures must be an array of objects: %w", err))
		}
		token.Serialization = General
		if document {
			token.Serialization = Document
		}
	} else {
		var single rawSignature
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, structuralError(invalidMessage(document), err)
		}
		raws = []rawSignature{single}
		token.Serialization = Flattened
		if document {
			token.Serialization = FlattenedDocument
		}
	}

	if document {
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, rawPayload); err != nil {
			return nil, structuralError(MessageInvalidDocument, err)
		}
		payload, err := unmarshalJSON(compacted.Bytes())
		if err != nil {
			return nil, structuralError(MessageInvalidDocument, err)
		}
		token.Payload = payload
		token.bindPayload(base64.Encode(compacted.Bytes()))
	} else {
		var encoded string
		if err := json.Unmarshal(rawPayload, &encoded); err != nil {
			return nil, structuralError(MessageMalformedToken, err)
		}
		payload, err := decodePayload(encoded)
		if err != nil {
			return nil, structuralError(MessageMalformedToken, err)
		}
		token.Payload = payload
		token.bindPayload(encoded)
	}

	token.Signatures = make([]*Signature, len(raws))
	for i, raw := range raws {
		sig, err := decodeSignature(raw)
		if err != nil {
			return nil, structuralError(invalidMessage(document), fmt.Errorf("signature %d: %w", i, err))
		}
		token.Signatures[i] = sig
	}

	return token, nil
}

func decodeSignature(raw rawSignature) (*Signature, error) {
	sig := &Signature{}

	if len(raw.Protected) > 0 && !isNull(raw.Protected) {
		var encoded string
		if err := json.Unmarshal(raw.Protected, &encoded); err != nil {
			return nil, fmt.Errorf("protected must be a string: %w", err)
		}
		protected, err := decodeProtected(encoded)
		if err != nil {
			return nil, err
		}
		sig.Protected = protected
		sig.bindProtected(encoded)
	}

	if len(raw.Header) > 0 && !isNull(raw.Header) {
		var unprotected header.Parameters
		if err := json.Unmarshal(raw.Header, &unprotected); err != nil {
			return nil, fmt.Errorf("header must be an object: %w", err)
		}
		sig.Header = unprotected
	}

	if len(raw.Signature) > 0 && !isNull(raw.Signature) {
		var value string
		if err := json.Unmarshal(raw.Signature, &value); err != nil {
			return nil, fmt.Errorf("signature must be a string: %w", err)
		}
		if _, err := base64.DecodeSegment(value); err != nil {
			return nil, fmt.Errorf("invalid signature: %w", err)
		}
		sig.signature = value
		sig.signed = true
	}

	return sig, nil
}

// decodeProtected decodes a protected header segment, which must hold a
// JSON object.
func decodeProtected(segment string) (header.Parameters, error) {
	b, err := base64.DecodeSegment(segment)
	if err != nil {
		return nil, fmt.Errorf("invalid protected header: %w", err)
	}

	var h header.Parameters
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("invalid protected header: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("protected header is not a JSON object")
	}
	return h, nil
}

// decodePayload decodes a payload segment. JSON is unmarshaled, anything
// else is kept as raw bytes.
func decodePayload(segment string) (any, error) {
	b, err := base64.DecodeSegment(segment)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if len(b) == 0 || !json.Valid(b) {
		return b, nil
	}
	return unmarshalJSON(b)
}

func unmarshalJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalidMessage(document bool) string {
	if document {
		return MessageInvalidDocument
	}
	return MessageMalformedToken
}
