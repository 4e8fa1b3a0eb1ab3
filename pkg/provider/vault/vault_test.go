package vault

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
	"github.com/anvilresearch/jose-sub000/pkg/provider/software"
	"github.com/stretchr/testify/require"
)

// fakeTransit serves the subset of the transit API the provider uses.
type fakeTransit struct {
	t      *testing.T
	secret []byte
	ec     *ecdsa.PrivateKey
}

func (f *fakeTransit) reply(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func (f *fakeTransit) mac(input string) []byte {
	raw, err := base64.StdEncoding.DecodeString(input)
	require.NoError(f.t, err)
	m := hmac.New(sha256.New, f.secret)
	m.Write(raw)
	return m.Sum(nil)
}

func (f *fakeTransit) digest(input string) []byte {
	raw, err := base64.StdEncoding.DecodeString(input)
	require.NoError(f.t, err)
	d := sha256.Sum256(raw)
	return d[:]
}

func (f *fakeTransit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch r.URL.Path {
	case "/v1/transit/keys/hs", "/v1/transit/keys/es":
		f.reply(w, map[string]any{"latest_version": 2})
	case "/v1/transit/hmac/hs/sha2-256":
		f.reply(w, map[string]any{"hmac": "vault:v2:" + base64.StdEncoding.EncodeToString(f.mac(body["input"].(string)))})
	case "/v1/transit/verify/hs/sha2-256":
		value := strings.TrimPrefix(body["hmac"].(string), "vault:v2:")
		got, _ := base64.StdEncoding.DecodeString(value)
		f.reply(w, map[string]any{"valid": hmac.Equal(got, f.mac(body["input"].(string)))})
	case "/v1/transit/sign/es/sha2-256":
		require.Equal(f.t, "jws", body["marshaling_algorithm"])
		r, s, err := ecdsa.Sign(rand.Reader, f.ec, f.digest(body["input"].(string)))
		require.NoError(f.t, err)
		sig := make([]byte, 64)
		r.FillBytes(sig[:32])
		s.FillBytes(sig[32:])
		f.reply(w, map[string]any{"signature": "vault:v2:" + base64.RawURLEncoding.EncodeToString(sig)})
	case "/v1/transit/verify/es/sha2-256":
		value := strings.TrimPrefix(body["signature"].(string), "vault:v2:")
		sig, err := base64.RawURLEncoding.DecodeString(value)
		if err != nil || len(sig) != 64 {
			f.reply(w, map[string]any{"valid": false})
			return
		}
		valid := ecdsa.Verify(&f.ec.PublicKey, f.digest(body["input"].(string)), new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:]))
		f.reply(w, map[string]any{"valid": valid})
	default:
		http.NotFound(w, r)
	}
}

func newTestProvider(t *testing.T) (*Provider, *fakeTransit) {
	t.Helper()

	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	fake := &fakeTransit{t: t, secret: []byte("transit-secret"), ec: ec}

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	p, err := New(Config{Address: server.URL, Token: "test-token"}, software.New())
	require.NoError(t, err)

	return p, fake
}

func TestHMAC(t *testing.T) {
	p, fake := newTestProvider(t)
	ctx := t.Context()
	params := provider.Params{Name: provider.HMAC, Hash: crypto.SHA256}

	key, err := p.ImportKey(ctx, provider.FormatJWK, jwk.Value{"kty": "oct", "kid": "hs"}, params, true, []provider.Usage{provider.UsageSign, provider.UsageVerify})
	require.NoError(t, err)
	require.Equal(t, Key{Name: "hs", Version: 2}, key.Material())
	require.False(t, key.Extractable())

	sig, err := p.Sign(ctx, params, key, []byte("data"))
	require.NoError(t, err)
	require.Equal(t, fake.mac(base64.StdEncoding.EncodeToString([]byte("data"))), sig)

	ok, err := p.Verify(ctx, params, key, sig, []byte("data"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Verify(ctx, params, key, sig, []byte("other"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestECDSA(t *testing.T) {
	p, fake := newTestProvider(t)
	ctx := t.Context()
	params := provider.Params{Name: provider.ECDSA, Hash: crypto.SHA256, NamedCurve: "P-256"}

	key, err := p.ImportKey(ctx, provider.FormatJWK, jwk.Value{"kty": "EC", "kid": "es"}, params, false, []provider.Usage{provider.UsageSign, provider.UsageVerify})
	require.NoError(t, err)

	sig, err := p.Sign(ctx, params, key, []byte("data"))
	require.NoError(t, err)
	require.Len(t, sig, 64)

	ok, err := p.Verify(ctx, params, key, sig, []byte("data"))
	require.NoError(t, err)
	require.True(t, ok)

	// The transit signature verifies locally against the public key.
	public, err := jwk.ValueFromPublicKey(&fake.ec.PublicKey)
	require.NoError(t, err)

	local := software.New()
	verifier, err := local.ImportKey(ctx, provider.FormatJWK, public, params, true, []provider.Usage{provider.UsageVerify})
	require.NoError(t, err)

	ok, err = local.Verify(ctx, params, verifier, sig, []byte("data"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestImportKeyErrors(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := t.Context()
	params := provider.Params{Name: provider.HMAC, Hash: crypto.SHA256}

	_, err := p.ImportKey(ctx, provider.FormatJWK, jwk.Value{"kty": "oct"}, params, false, nil)
	require.ErrorIs(t, err, ErrMissingKeyName)

	_, err = p.ImportKey(ctx, provider.FormatJWK, jwk.Value{"kty": "oct", "kid": "missing"}, params, false, nil)
	require.Error(t, err)

	_, err = p.ImportKey(ctx, provider.FormatRaw, map[string]any{"raw": []byte("k")}, params, false, nil)
	require.ErrorIs(t, err, provider.ErrUnsupportedFormat)
}

func TestFallback(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := t.Context()

	params := provider.Params{Name: provider.AESGCM, Length: 128}
	key, err := p.ImportKey(ctx, provider.FormatRaw, map[string]any{software.RawKey: make([]byte, 16)}, params, false, []provider.Usage{provider.UsageEncrypt, provider.UsageDecrypt})
	require.NoError(t, err)

	iv := make([]byte, 12)
	require.NoError(t, p.RandomValues(ctx, iv))

	op := provider.Params{Name: provider.AESGCM, IV: iv}
	ciphertext, err := p.Encrypt(ctx, op, key, []byte("hello"))
	require.NoError(t, err)

	plaintext, err := p.Decrypt(ctx, op, key, ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), plaintext)

	noFallback := NewWithClient(p.client, "", nil)
	require.ErrorIs(t, noFallback.RandomValues(ctx, iv), ErrNoFallback)
}

func TestSignatureEncoding(t *testing.T) {
	for _, name := range []string{provider.HMAC, provider.ECDSA} {
		params := provider.Params{Name: name}
		encoded := encodeSignature(params, 3, []byte{0xfb, 0xff})
		require.True(t, strings.HasPrefix(encoded, "vault:v3:"), encoded)

		decoded, err := decodeSignature(params, encoded)
		require.NoError(t, err)
		require.Equal(t, []byte{0xfb, 0xff}, decoded, fmt.Sprint(name))
	}

	_, err := decodeSignature(provider.Params{Name: provider.HMAC}, "not-a-vault-signature")
	require.ErrorIs(t, err, ErrInvalidResponse)
}
