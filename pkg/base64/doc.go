// Package base64 is the base64url transport encoding of JOSE: the URL-safe
// alphabet of RFC 4648 Section 5 with padding removed on output.
//
// Decode accepts input with or without padding. The JSON helpers marshal
// without HTML escaping, so the bytes that get signed are the bytes a
// reader of the header would expect.
//
// https://www.rfc-editor.org/rfc/rfc4648#section-5
// https://datatracker.ietf.org/doc/html/rfc7515#section-2
package base64
