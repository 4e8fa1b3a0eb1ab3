// Package jwa implements the JSON Web Algorithms registry: a dispatch table
// from (operation, algorithm) pairs to adapters that perform the operation
// through a provider.Provider.
//
// https://datatracker.ietf.org/doc/html/rfc7518
package jwa
