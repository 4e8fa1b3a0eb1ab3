package jwt_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"github.com/anvilresearch/jose-sub000/pkg/jwt"
	"github.com/anvilresearch/jose-sub000/pkg/keyutil"
	golangjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// signRaw signs claims with the jws codec directly, without any of the
// checks jwt.New applies.
func signRaw(t *testing.T, protected header.Parameters, claims map[string]any, key *jwk.Key) string {
	t.Helper()

	token := jws.New(jws.Compact, claims, jws.NewSignature(protected, nil, key.Handle))

	encoded, err := jws.Encode(context.Background(), token)
	require.NoError(t, err)
	return encoded
}

// noneToken returns an unsecured token with the given header.
func noneToken(params header.Parameters) *jwt.Token {
	params[header.Algorithm] = jwa.None
	params[header.Type] = jwt.Type

	return &jwt.Token{
		Header:    params,
		Claims:    jwt.ClaimsSet{jwt.Subject: "test"},
		Signature: []byte{},
	}
}

func TestSecurityVulnerabilities(t *testing.T) {
	ctx := context.Background()

	t.Run("algorithm confusion", func(t *testing.T) {
		rsaKeyPair := testNewKeyPair(t, jwa.RS256)

		rsaPublic, err := jwk.RSAPublicKey(rsaKeyPair.public.Value)
		require.NoError(t, err)

		// The attacker uses the published RSA public key as an HMAC secret.
		pemBytes, err := keyutil.MarshalPublicKey(rsaPublic)
		require.NoError(t, err)

		forged := testToken(t,
			header.Parameters{header.Algorithm: jwa.HS256},
			jwt.ClaimsSet{jwt.Subject: "admin"},
			testImportKeyPair(t, jwa.HS256, pemBytes).private,
		)

		_, err = jwt.ParseAndVerify(ctx, forged.String(), jwt.WithKey(rsaKeyPair.public))
		require.ErrorIs(t, err, jwt.ErrAlgorithmNotAllowed)

		_, err = jwt.ParseAndVerify(ctx, forged.String(),
			jwt.WithAllowedAlgorithms(jwa.HS256, jwa.RS256),
			jwt.WithKey(rsaKeyPair.public),
		)
		require.ErrorIs(t, err, jwt.ErrNoKey)
	})

	t.Run("weak HMAC key", func(t *testing.T) {
		value, err := jwk.ValueFromPrivateKey([]byte("weak"))
		require.NoError(t, err)
		value[jwk.Algorithm] = jwa.HS256

		weak, err := jwa.ImportKey(ctx, value)
		require.NoError(t, err)

		_, err = jwt.New(ctx, header.Parameters{header.Algorithm: jwa.HS256}, jwt.ClaimsSet{jwt.Subject: "test"}, weak)
		require.ErrorIs(t, err, jwt.ErrKeyTooSmall)
		require.Contains(t, err.Error(), "HMAC key must be at least 32 bytes")

		// A token signed elsewhere with the weak key does not verify either.
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256}, map[string]any{"sub": "test"}, weak)

		_, err = jwt.ParseAndVerify(ctx, raw, jwt.WithAllowedAlgorithms(jwa.HS256), jwt.WithKey(weak))
		require.ErrorIs(t, err, jwt.ErrKeyTooSmall)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.New(ctx, header.Parameters{header.Algorithm: jwa.None}, jwt.ClaimsSet{jwt.Subject: "test"}, nil)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(token.String(), "."))
		require.Empty(t, token.Signature)

		tests := []struct {
			name string
			opts []jwt.VerifyOption
			err  error
		}{
			{
				name: "default",
				err:  jwt.ErrAlgorithmNotAllowed,
			},
			{
				name: "insecure flag only",
				opts: []jwt.VerifyOption{jwt.WithAllowInsecureNoneAlgorithm(true)},
				err:  jwt.ErrAlgorithmNotAllowed,
			},
			{
				name: "allowed algorithm only",
				opts: []jwt.VerifyOption{jwt.WithAllowedAlgorithms(jwa.None)},
				err:  jwt.ErrAlgorithmNotAllowed,
			},
			{
				name: "both",
				opts: []jwt.VerifyOption{jwt.WithAllowInsecureNoneAlgorithm(true), jwt.WithAllowedAlgorithms(jwa.None)},
			},
		}

		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				_, err := jwt.ParseAndVerify(ctx, token.String(), test.opts...)
				if test.err != nil {
					require.ErrorIs(t, err, test.err)
				} else {
					require.NoError(t, err)
				}
			})
		}

		t.Run("with a signature", func(t *testing.T) {
			forged := noneToken(header.Parameters{})
			forged.Signature = []byte{1, 2, 3}

			err := forged.Verify(ctx, jwt.WithAllowInsecureNoneAlgorithm(true), jwt.WithAllowedAlgorithms(jwa.None))
			require.ErrorIs(t, err, jwt.ErrInvalidSignature)
		})
	})

	t.Run("missing algorithm header", func(t *testing.T) {
		token := &jwt.Token{
			Header: header.Parameters{header.Type: jwt.Type},
			Claims: jwt.ClaimsSet{jwt.Subject: "test"},
		}
		require.Error(t, token.Verify(ctx))
	})

	t.Run("empty algorithm header", func(t *testing.T) {
		token := &jwt.Token{
			Header: header.Parameters{header.Type: jwt.Type, header.Algorithm: ""},
			Claims: jwt.ClaimsSet{jwt.Subject: "test"},
		}
		require.Error(t, token.Verify(ctx))
	})

	t.Run("tampered signature", func(t *testing.T) {
		keyPair := testNewKeyPair(t, jwa.ES256)
		token := testToken(t, header.Parameters{header.Algorithm: jwa.ES256}, jwt.ClaimsSet{jwt.Subject: "test"}, keyPair.private)

		segments := strings.Split(token.String(), ".")
		sig := []byte(segments[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		segments[2] = string(sig)

		_, err := jwt.ParseAndVerify(ctx, strings.Join(segments, "."), jwt.WithKey(keyPair.public))
		require.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("tampered claims", func(t *testing.T) {
		keyPair := testNewKeyPair(t, jwa.EdDSA)
		token := testToken(t, header.Parameters{header.Algorithm: jwa.EdDSA}, jwt.ClaimsSet{jwt.Subject: "user"}, keyPair.private)

		segments := strings.Split(token.String(), ".")
		segments[1] = base64.Encode([]byte(`{"sub":"admin"}`))

		_, err := jwt.ParseAndVerify(ctx, strings.Join(segments, "."), jwt.WithKey(keyPair.public))
		require.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("header type", func(t *testing.T) {
		keyPair := testImportKeyPair(t, jwa.HS256, testHMACSecretKey)
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256, header.Type: "at+jwt"}, map[string]any{"sub": "test"}, keyPair.private)

		_, err := jwt.ParseAndVerify(ctx, raw, jwt.WithAllowedAlgorithms(jwa.HS256), jwt.WithKey(keyPair.public))
		require.ErrorContains(t, err, `header type "at+jwt" is not supported`)
	})
}

func TestCriticalHeaderValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		header    header.Parameters
		supported []string
		wantErr   bool
	}{
		{
			name:   "no critical header",
			header: header.Parameters{},
		},
		{
			name: "valid critical header",
			header: header.Parameters{
				header.Critical: []any{"custom-ext", "another-ext"},
				"custom-ext":    "some-value",
				"another-ext":   "another-value",
			},
			supported: []string{"custom-ext", "another-ext"},
		},
		{
			name: "unsupported critical header",
			header: header.Parameters{
				header.Critical: []any{"custom-ext"},
				"custom-ext":    "some-value",
			},
			wantErr: true,
		},
		{
			name: "critical header not present",
			header: header.Parameters{
				header.Critical: []any{"custom-ext"},
			},
			supported: []string{"custom-ext"},
			wantErr:   true,
		},
		{
			name: "empty critical header array",
			header: header.Parameters{
				header.Critical: []any{},
			},
			wantErr: true,
		},
		{
			name: "critical header wrong type",
			header: header.Parameters{
				header.Critical: "custom-ext",
				"custom-ext":    "some-value",
			},
			supported: []string{"custom-ext"},
			wantErr:   true,
		},
		{
			name: "critical header non-string elements",
			header: header.Parameters{
				header.Critical: []any{"custom-ext", 42},
				"custom-ext":    "some-value",
			},
			supported: []string{"custom-ext"},
			wantErr:   true,
		},
		{
			name: "registered header in critical list",
			header: header.Parameters{
				header.Critical: []any{header.Algorithm},
			},
			supported: []string{header.Algorithm},
			wantErr:   true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			token := noneToken(test.header)

			err := token.Verify(ctx,
				jwt.WithAllowInsecureNoneAlgorithm(true),
				jwt.WithAllowedAlgorithms(jwa.None),
				jwt.WithSupportedCriticalHeaders(test.supported...),
			)
			if test.wantErr {
				require.ErrorIs(t, err, jws.ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRSAKeySizeValidation(t *testing.T) {
	ctx := context.Background()

	rsaKey := func(t *testing.T, bits int) *rsa.PrivateKey {
		t.Helper()
		key, err := rsa.GenerateKey(rand.Reader, bits)
		require.NoError(t, err)
		return key
	}

	weak := rsaKey(t, 1024)
	strong := rsaKey(t, 2048)

	for _, alg := range []jwa.Algorithm{jwa.RS256, jwa.PS256} {
		t.Run(alg, func(t *testing.T) {
			weakPair := testImportKeyPair(t, alg, weak)
			strongPair := testImportKeyPair(t, alg, strong)

			t.Run("signing with 1024-bit key fails", func(t *testing.T) {
				_, err := jwt.New(ctx, header.Parameters{header.Algorithm: alg}, jwt.ClaimsSet{jwt.Subject: "test"}, weakPair.private)
				require.ErrorIs(t, err, jwt.ErrKeyTooSmall)
				require.Contains(t, err.Error(), "RSA key size 128 bytes (1024 bits) is below minimum required 256 bytes (2048 bits)")
			})

			t.Run("signing with 2048-bit key succeeds", func(t *testing.T) {
				token := testToken(t, header.Parameters{header.Algorithm: alg}, jwt.ClaimsSet{jwt.Subject: "test"}, strongPair.private)
				require.NoError(t, token.Verify(ctx, jwt.WithKey(strongPair.public)))
			})

			t.Run("verification with 1024-bit key fails", func(t *testing.T) {
				raw := signRaw(t, header.Parameters{header.Algorithm: alg}, map[string]any{"sub": "test"}, weakPair.private)

				_, err := jwt.ParseAndVerify(ctx, raw, jwt.WithKey(weakPair.public))
				require.ErrorIs(t, err, jwt.ErrKeyTooSmall)
				require.Contains(t, err.Error(), "RSA key size 128 bytes (1024 bits)")
			})
		})
	}
}

func TestClockSkewTolerance(t *testing.T) {
	ctx := context.Background()
	keyPair := testNewKeyPair(t, jwa.ES256)

	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	expired := testToken(t, header.Parameters{header.Algorithm: jwa.ES256},
		jwt.ClaimsSet{jwt.ExpirationTime: now.Add(-30 * time.Second)}, keyPair.private)

	early := testToken(t, header.Parameters{header.Algorithm: jwa.ES256},
		jwt.ClaimsSet{jwt.NotBefore: now.Add(30 * time.Second)}, keyPair.private)

	t.Run("expiration", func(t *testing.T) {
		err := expired.Verify(ctx, jwt.WithKey(keyPair.public), jwt.WithClock(clock))
		require.ErrorIs(t, err, jwt.ErrExpired)

		err = expired.Verify(ctx, jwt.WithKey(keyPair.public), jwt.WithClock(clock), jwt.WithClockSkewTolerance(time.Minute))
		require.NoError(t, err)

		isExpired, err := expired.Expired(clock)
		require.NoError(t, err)
		require.True(t, isExpired)
	})

	t.Run("not before", func(t *testing.T) {
		err := early.Verify(ctx, jwt.WithKey(keyPair.public), jwt.WithClock(clock))
		require.ErrorIs(t, err, jwt.ErrNotYetValid)
		require.Contains(t, err.Error(), "unable to be used before")

		err = early.Verify(ctx, jwt.WithKey(keyPair.public), jwt.WithClock(clock), jwt.WithClockSkewTolerance(time.Minute))
		require.NoError(t, err)
	})

	t.Run("negative tolerance", func(t *testing.T) {
		err := early.Verify(ctx, jwt.WithKey(keyPair.public), jwt.WithClockSkewTolerance(-time.Second))
		require.ErrorContains(t, err, "must not be negative")
	})
}

func TestParsingVulnerabilities(t *testing.T) {
	encode := func(s string) string {
		return base64.Encode([]byte(s))
	}

	h := encode(`{"alg":"HS256","typ":"JWT"}`)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"one dot", "."},
		{"two dots", ".."},
		{"two segments", "a.b"},
		{"four segments", "a.b.c.d"},
		{"five segments", "a.b.c.d.e"},
		{"invalid base64 header", "!!!." + encode(`{}`) + "."},
		{"invalid JSON header", encode(`{not json}`) + "." + encode(`{}`) + "."},
		{"header array", encode(`[1]`) + "." + encode(`{}`) + "."},
		{"claims not JSON", h + "." + encode(`not json`) + "."},
		{"claims array", h + "." + encode(`[1,2]`) + "."},
		{"claims string", h + "." + encode(`"sub"`) + "."},
		{"invalid time claim", h + "." + encode(`{"exp":"soon"}`) + "."},
		{"invalid base64 signature", h + "." + encode(`{}`) + ".!!!"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			token, err := jwt.Parse(test.input)
			require.Error(t, err)
			require.Nil(t, token)
		})
	}
}

func TestAudienceValidation(t *testing.T) {
	ctx := context.Background()
	keyPair := testImportKeyPair(t, jwa.HS256, testHMACSecretKey)

	verify := func(raw string) error {
		_, err := jwt.ParseAndVerify(ctx, raw,
			jwt.WithAllowedAlgorithms(jwa.HS256),
			jwt.WithKey(keyPair.public),
			jwt.WithAllowedAudiences("api"),
		)
		return err
	}

	t.Run("string audience", func(t *testing.T) {
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256}, map[string]any{"aud": "api"}, keyPair.private)
		require.NoError(t, verify(raw))
	})

	t.Run("array audience", func(t *testing.T) {
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256}, map[string]any{"aud": []string{"web", "api"}}, keyPair.private)
		require.NoError(t, verify(raw))
	})

	t.Run("missing audience", func(t *testing.T) {
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256}, map[string]any{"sub": "test"}, keyPair.private)
		require.ErrorIs(t, verify(raw), jwt.ErrAudienceNotAllowed)
	})

	t.Run("invalid audience type", func(t *testing.T) {
		raw := signRaw(t, header.Parameters{header.Algorithm: jwa.HS256}, map[string]any{"aud": 42}, keyPair.private)

		var typeErr *jwt.ErrInvalidType
		require.ErrorAs(t, verify(raw), &typeErr)
	})
}

func TestGolangJWTInterop(t *testing.T) {
	ctx := context.Background()

	t.Run("parse golang-jwt token", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Unix()

		signed, err := golangjwt.NewWithClaims(golangjwt.SigningMethodHS256, golangjwt.MapClaims{
			"sub": "alice",
			"exp": exp,
		}).SignedString(testHMACSecretKey)
		require.NoError(t, err)

		keyPair := testImportKeyPair(t, jwa.HS256, testHMACSecretKey)

		token, err := jwt.ParseAndVerify(ctx, signed, jwt.WithAllowedAlgorithms(jwa.HS256), jwt.WithKey(keyPair.public))
		require.NoError(t, err)
		require.Equal(t, "alice", token.Claims[jwt.Subject])
		require.Equal(t, exp, token.Claims[jwt.ExpirationTime])
	})

	t.Run("golang-jwt parses our token", func(t *testing.T) {
		key, err := keyutil.GenerateKey(jwa.RS256)
		require.NoError(t, err)
		keyPair := testImportKeyPair(t, jwa.RS256, key)

		token := testToken(t, header.Parameters{header.Algorithm: jwa.RS256},
			jwt.ClaimsSet{jwt.Subject: "bob", jwt.ExpirationTime: time.Now().Add(time.Hour)},
			keyPair.private,
		)

		parsed, err := golangjwt.Parse(token.String(), func(*golangjwt.Token) (any, error) {
			return &key.(*rsa.PrivateKey).PublicKey, nil
		}, golangjwt.WithValidMethods([]string{"RS256"}), golangjwt.WithExpirationRequired())
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		sub, err := parsed.Claims.GetSubject()
		require.NoError(t, err)
		require.Equal(t, "bob", sub)
	})
}
