// Package jws encodes, decodes, signs, and verifies JSON Web Signatures in
// the compact, flattened JSON, and general JSON serializations, and in the
// two document (JWD) forms that carry the payload as plain JSON.
//
// A Token is a payload plus an ordered list of Signature descriptors. Keys
// are attached to descriptors by the caller or by ResolveKeys and never
// appear in any serialization. A Codec dispatches every cryptographic
// operation through a jwa.Registry.
//
// https://datatracker.ietf.org/doc/html/rfc7515
package jws
