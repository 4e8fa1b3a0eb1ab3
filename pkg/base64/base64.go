package base64

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Decode returns the base64url decoded bytes from the given input.
// This function implements base64url decoding as defined in RFC 4648 Section 5,
// which is used in JWT and JWS specifications (RFC 7515).
//
// Padding is accepted and ignored, which suits JWK members produced by
// lenient encoders. Token segments go through DecodeSegment instead. An
// empty input decodes to an empty slice, which is how the "none"
// algorithm's signature travels on the wire.
func Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return []byte{}, nil
	}

	result, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(input, "="))
	if err != nil {
		return nil, fmt.Errorf("base64: invalid base64url input: %w", err)
	}
	return result, nil
}

// DecodeSegment decodes a JOSE token segment, which must be base64url
// without padding.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-2
func DecodeSegment(input string) ([]byte, error) {
	if strings.ContainsRune(input, '=') {
		return nil, fmt.Errorf("base64: segment must not be padded")
	}
	return Decode(input)
}

// Encode returns the base64url encoded string from the given input,
// without padding characters as required by RFC 7515 Section 2.
func Encode(input []byte) string {
	return base64.RawURLEncoding.EncodeToString(input)
}

// MarshalJSON returns the UTF-8 JSON encoding of v with HTML escaping
// disabled and no trailing newline, the form that gets base64url encoded
// into JOSE segments.
func MarshalJSON(v any) ([]byte, error) {
	buff := bytes.NewBuffer(nil)

	enc := json.NewEncoder(buff)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buff.Bytes(), []byte("\n")), nil
}

// EncodeJSON returns base64url(UTF8(JSON(v))).
func EncodeJSON(v any) (string, error) {
	b, err := MarshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("base64: failed to encode JSON: %w", err)
	}
	return Encode(b), nil
}

// DecodeJSON decodes a base64url segment and unmarshals the JSON it holds into v.
func DecodeJSON(input string, v any) error {
	b, err := Decode(input)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("base64: segment is not valid JSON: %w", err)
	}

	return nil
}
