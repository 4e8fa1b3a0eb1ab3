package jws_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log"

	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
)

// Example signs a payload with an ECDSA key, decodes the result, and
// verifies it with the public half of the key.
func Example() {
	ctx := context.Background()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatal(err)
	}

	value, err := jwk.ValueFromPrivateKey(privateKey)
	if err != nil {
		log.Fatal(err)
	}
	value[jwk.Algorithm] = jwa.ES256
	value[jwk.KeyID] = "my-key-1"

	key, err := jwa.ImportKey(ctx, value)
	if err != nil {
		log.Fatal(err)
	}

	token := jws.New(jws.Compact, map[string]any{"message": "Hello, JWS World!"},
		jws.NewSignature(jws.Header{header.Algorithm: jwa.ES256, header.KeyID: "my-key-1"}, nil, key.Handle),
	)

	encoded, err := jws.Encode(ctx, token)
	if err != nil {
		log.Fatal(err)
	}

	decoded, err := jws.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}

	// Resolve against the public JWK set a verifier would publish.
	public := &jwk.Set{Keys: []jwk.Value{jwk.PublicValue(value)}}

	if ok, err := jws.ResolveKeys(ctx, decoded, public); err != nil || !ok {
		log.Fatal("no key for token")
	}

	ok, err := jws.Verify(ctx, decoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Payload:", decoded.Payload)
	fmt.Println("Verified:", ok)
	// Output:
	// Payload: map[message:Hello, JWS World!]
	// Verified: true
}

// ExampleNew_unsecured encodes a token with the "none" algorithm, which
// needs no key.
func ExampleNew_unsecured() {
	ctx := context.Background()

	token := jws.New(jws.Compact, []byte("This message has no signature"),
		jws.NewSignature(jws.Header{header.Algorithm: jwa.None}, nil, nil),
	)

	encoded, err := jws.Encode(ctx, token)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Unsecured JWS:", encoded)

	decoded, err := jws.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}

	ok, err := jws.Verify(ctx, decoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Verified:", ok)
	// Output:
	// Unsecured JWS: eyJhbGciOiJub25lIn0.VGhpcyBtZXNzYWdlIGhhcyBubyBzaWduYXR1cmU.
	// Verified: true
}

// ExampleToken_ToDocument re-serializes a signed token as a JWD, whose
// payload is readable JSON, without invalidating its signature.
func ExampleToken_ToDocument() {
	ctx := context.Background()

	value, err := jwk.ValueFromPrivateKey([]byte("my-secret-key-that-is-32-bytes!!"))
	if err != nil {
		log.Fatal(err)
	}
	value[jwk.Algorithm] = jwa.HS256

	key, err := jwa.ImportKey(ctx, value)
	if err != nil {
		log.Fatal(err)
	}

	token := jws.New(jws.Flattened, map[string]any{"sub": "alice"},
		jws.NewSignature(jws.Header{header.Algorithm: jwa.HS256}, nil, key.Handle),
	)

	if _, err := jws.Encode(ctx, token); err != nil {
		log.Fatal(err)
	}

	document, err := token.ToDocument()
	if err != nil {
		log.Fatal(err)
	}

	encoded, err := jws.Encode(ctx, document)
	if err != nil {
		log.Fatal(err)
	}

	decoded, err := jws.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}
	decoded.Signatures[0].Key = key.Handle

	ok, err := jws.Verify(ctx, decoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(decoded.Serialization, ok)
	// Output:
	// flattened-document true
}
