// Package jose is the root of a JSON Object Signing and Encryption (JOSE)
// toolkit built around one codec for JSON Web Signatures.
//
// The codec in package jws reads and writes every JWS serialization
// (compact, flattened JSON, general JSON) and the JWD document forms,
// which carry the payload as plain JSON. Algorithms live in a registry in
// package jwa, and keys are imported through a crypto provider, either
// in-process (package provider/software) or HashiCorp Vault Transit
// (package provider/vault). Package jwt layers claim validation on top.
//
// RFCs:
//   - RFC 7515 https://datatracker.ietf.org/doc/html/rfc7515 JWS
//   - RFC 7517 https://datatracker.ietf.org/doc/html/rfc7517 JWK
//   - RFC 7518 https://datatracker.ietf.org/doc/html/rfc7518 JWA
//   - RFC 7519 https://datatracker.ietf.org/doc/html/rfc7519 JWT
//   - RFC 7638 https://datatracker.ietf.org/doc/html/rfc7638 JWK Thumbprint
package jose
