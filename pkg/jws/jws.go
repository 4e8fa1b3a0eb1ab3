package jws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// Header is a JSON object containing the parameters describing
// the cryptographic operations and parameters employed.
//
// The JOSE (JSON Object Signing and Encryption) Header is comprised
// of a set of Header Parameters.
type Header = header.Parameters

// Serialization is the wire shape of a token.
type Serialization uint8

const (
	// Compact is BASE64URL(header) "." BASE64URL(payload) "." signature.
	//
	// https://datatracker.ietf.org/doc/html/rfc7515#section-7.1
	Compact Serialization = iota + 1

	// Flattened is the flattened JWS JSON Serialization, with exactly one
	// signature.
	//
	// https://datatracker.ietf.org/doc/html/rfc7515#section-7.2.2
	Flattened

	// General is the general JWS JSON Serialization, with one or more
	// signatures.
	//
	// https://datatracker.ietf.org/doc/html/rfc7515#section-7.2.1
	General

	// Document is the general JSON shape with the payload carried as a
	// plain JSON value instead of a base64url string (a JWD).
	Document

	// FlattenedDocument is the flattened JSON shape with a plain JSON
	// payload.
	FlattenedDocument
)

var serializationNames = [...]string{
	Compact:           "compact",
	Flattened:         "flattened",
	General:           "json",
	Document:          "document",
	FlattenedDocument: "flattened-document",
}

// Serializations lists every serialization.
func Serializations() []Serialization {
	return []Serialization{Compact, Flattened, General, Document, FlattenedDocument}
}

func (s Serialization) Valid() bool {
	return s >= Compact && s <= FlattenedDocument
}

func (s Serialization) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Serialization(%d)", uint8(s))
	}
	return serializationNames[s]
}

// IsDocument reports whether s carries its payload as plain JSON.
func (s Serialization) IsDocument() bool {
	return s == Document || s == FlattenedDocument
}

// single reports whether s carries exactly one signature.
func (s Serialization) single() bool {
	return s == Compact || s == Flattened || s == FlattenedDocument
}

// ParseSerialization returns the serialization with the given name.
func ParseSerialization(name string) (Serialization, error) {
	for _, s := range Serializations() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown serialization %q", name)
}

// Signature is one signing and verification unit of a token.
//
// Key is runtime-only: it is attached by the caller or by ResolveKeys and
// never appears in any serialization.
type Signature struct {
	// Protected is the integrity-protected half of the JOSE Header.
	Protected header.Parameters

	// Header is the unprotected half of the JOSE Header.
	Header header.Parameters

	// Key signs or verifies this signature.
	Key *provider.CryptoKey

	signature    string
	signed       bool
	rawProtected string

	// protectedSnapshot is the JSON of Protected when rawProtected was set.
	protectedSnapshot []byte

	checked  bool
	verified bool
	skipped  bool
}

// NewSignature returns an unsigned descriptor.
func NewSignature(protected, unprotected header.Parameters, key *provider.CryptoKey) *Signature {
	return &Signature{Protected: protected, Header: unprotected, Key: key}
}

// Value returns the base64url encoded signature. It is empty both before
// signing and for the "none" algorithm; use Signed to tell them apart.
func (s *Signature) Value() string {
	return s.signature
}

// Signed reports whether the descriptor carries a signature value.
func (s *Signature) Signed() bool {
	return s.signed
}

// SetValue sets a base64url signature computed elsewhere.
func (s *Signature) SetValue(signature string) {
	s.signature = signature
	s.signed = true
	s.resetResult()
}

func (s *Signature) resetResult() {
	s.checked = false
	s.verified = false
	s.skipped = false
}

// Verified reports whether the last Verify checked this signature with a
// key and found it valid.
func (s *Signature) Verified() bool {
	return s.checked && s.verified
}

// Skipped reports whether the last Verify passed over this signature
// because no key was attached.
func (s *Signature) Skipped() bool {
	return s.skipped
}

// Algorithm returns the "alg" of the protected header.
func (s *Signature) Algorithm() (string, error) {
	return s.Protected.Algorithm()
}

// KeyID returns the "kid" of the protected header, or of the unprotected
// header when the protected one has none.
func (s *Signature) KeyID() string {
	for _, h := range []header.Parameters{s.Protected, s.Header} {
		if kid, err := h.KeyID(); err == nil {
			return kid
		}
	}
	return ""
}

// bindProtected records segment as the encoding of the current Protected
// header.
func (s *Signature) bindProtected(segment string) {
	s.rawProtected = segment
	s.protectedSnapshot = snapshot(s.Protected)
}

// encodedProtected returns the protected header segment, reusing the
// received bytes while Protected is unchanged.
func (s *Signature) encodedProtected() (string, error) {
	if s.rawProtected != "" && unchanged(s.Protected, s.protectedSnapshot) {
		return s.rawProtected, nil
	}
	return s.Protected.Base64URLString()
}

func (s *Signature) clone() *Signature {
	out := *s
	out.Protected = s.Protected.Clone()
	out.Header = s.Header.Clone()
	return &out
}

// Token is a payload with one or more signatures, in one of the five
// serializations.
type Token struct {
	// Payload is any JSON value. A decoded token holds the decoded JSON
	// (objects as map[string]any, numbers as json.Number), or the raw
	// bytes when the payload is not JSON.
	Payload any

	Signatures []*Signature

	Serialization Serialization

	rawPayload string
	verified   bool

	// payloadSnapshot is the JSON of Payload when rawPayload was set.
	payloadSnapshot []byte
}

// New returns an unsigned token.
func New(serialization Serialization, payload any, signatures ...*Signature) *Token {
	return &Token{
		Payload:       payload,
		Signatures:    signatures,
		Serialization: serialization,
	}
}

// SetPayload replaces the payload. A decoded token otherwise re-encodes the
// payload bytes it was decoded from.
func (t *Token) SetPayload(payload any) {
	t.Payload = payload
	t.rawPayload = ""
	t.payloadSnapshot = nil
	t.verified = false
}

// Verified reports whether the last Verify succeeded.
func (t *Token) Verified() bool {
	return t.verified
}

// PayloadInto unmarshals the payload JSON into v.
func (t *Token) PayloadInto(v any) error {
	b, err := t.payloadJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// bindPayload records segment as the encoding of the current Payload.
func (t *Token) bindPayload(segment string) {
	t.rawPayload = segment
	t.payloadSnapshot = snapshot(t.Payload)
}

// cachedPayload reports whether the payload segment can be reused. A
// payload that was replaced or modified in place is encoded again.
func (t *Token) cachedPayload() bool {
	return t.rawPayload != "" && unchanged(t.Payload, t.payloadSnapshot)
}

// encodedPayload returns the payload segment, reusing the received bytes
// while Payload is unchanged.
func (t *Token) encodedPayload() (string, error) {
	if t.cachedPayload() {
		return t.rawPayload, nil
	}
	return encodePayload(t.Payload)
}

// payloadJSON returns the payload's JSON bytes.
func (t *Token) payloadJSON() ([]byte, error) {
	if t.cachedPayload() {
		return base64.Decode(t.rawPayload)
	}
	if raw, ok := t.Payload.([]byte); ok {
		return raw, nil
	}
	return base64.MarshalJSON(t.Payload)
}

// snapshot returns the JSON of v, or nil when v cannot be marshaled.
func snapshot(v any) []byte {
	b, err := base64.MarshalJSON(v)
	if err != nil {
		return nil
	}
	return b
}

// unchanged reports whether v still marshals to the snapshot taken of it.
func unchanged(v any, snap []byte) bool {
	return bytes.Equal(snapshot(v), snap)
}

// encodePayload is BASE64URL(UTF8(JSON(payload))). Raw bytes are taken as
// already serialized.
func encodePayload(payload any) (string, error) {
	if raw, ok := payload.([]byte); ok {
		return base64.Encode(raw), nil
	}
	s, err := base64.EncodeJSON(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return s, nil
}

// Clone returns a copy of t whose headers and descriptors can be changed
// without affecting t. Keys are shared.
func (t *Token) Clone() *Token {
	out := *t
	out.Signatures = make([]*Signature, len(t.Signatures))
	for i, sig := range t.Signatures {
		out.Signatures[i] = sig.clone()
	}
	return &out
}
