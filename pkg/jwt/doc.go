// Package jwt provides a simple and easy-to-use interface
// for working with JSON Web Tokens (JWTs).
//
// Tokens are compact JWS values built and checked with package jws, so
// every algorithm and key source the codec supports works here too. On top
// of signature verification this package checks the allowed algorithms,
// issuers, audiences, and the "exp" and "nbf" claims.
//
// Unlike the jws codec, Verify never accepts a token that was not checked
// with a key: the "none" algorithm has to be enabled explicitly.
//
// https://datatracker.ietf.org/doc/html/rfc7519
package jwt
