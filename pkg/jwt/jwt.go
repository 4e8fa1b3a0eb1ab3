package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/header"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/jws"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Type "JWT" is the media type used by JSON Web Token (JWT).
//
// # Example
//
//	header := header.Parameters{
//		header.Type:      jwt.Type,
//		header.Algorithm: jwa.HS256,
//	}
//
// https://www.rfc-editor.org/rfc/rfc7515.html#section-3.3
const Type = header.TypeJWT

// MinimumRSAKeySize is the smallest RSA modulus, in bytes, accepted for the
// RS and PS algorithms.
//
// https://datatracker.ietf.org/doc/html/rfc7518#section-3.3
const MinimumRSAKeySize = 256

// Token is a decoded JSON Web Token, a string representing a
// set of claims as a JSON object that is encoded in a JWS or
// JWE, enabling the claims to be digitally signed or MACed
// and/or encrypted.
//
// At this time, only JWS JWTs are supported. In other words,
// these tokens are only signed, not encrypted.
//
// JWTs contain three parts, separated by dots (".") which are:
//
//  1. Header
//  2. Claims (Payload)
//  3. Signature
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-1
type Token struct {
	// Header is the set of parameters that are used to describe
	// the cryptographic operations applied to the JWT claims set.
	Header header.Parameters

	// Claims is the set of claims that are asserted by the JWT.
	//
	// This is sometimes referred to as the "payload".
	Claims ClaimsSet

	// Signature is the cryptographic signature or MAC value
	// that is used to validate the JWT.
	Signature []byte

	// token is the underlying JWS, holding the received segments.
	token *jws.Token

	// raw is the (original) string representation of the JWT.
	raw string
}

// New creates a signed Token with the default codec. See NewWithCodec.
func New(ctx context.Context, params header.Parameters, claims ClaimsSet, key *jwk.Key) (*Token, error) {
	return NewWithCodec(ctx, nil, params, claims, key)
}

// NewWithCodec creates a signed Token. If this fails for any reason, an
// error is returned with a nil token.
//
// The "typ" header parameter is set to "JWT" when absent and must be "JWT"
// when present. The claims set must not be empty. Registered time claims
// may be given as time.Time and are stored as NumericDate seconds.
//
// The key must have been imported for the header's "alg"; it may be nil
// only for "none". A nil codec selects the default one.
func NewWithCodec(ctx context.Context, codec *jws.Codec, params header.Parameters, claims ClaimsSet, key *jwk.Key) (*Token, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("cannot create token with empty header parameters")
	}

	if len(claims) == 0 {
		return nil, ErrNoClaimSet
	}

	if err := claims.normalize(); err != nil {
		return nil, err
	}

	params = params.Clone()
	if _, ok := params[header.Type]; !ok {
		params[header.Type] = Type
	} else if params[header.Type] != Type {
		return nil, fmt.Errorf("header type %q is not supported", params[header.Type])
	}

	alg, err := params.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("missing JWT header algorithm: %w", err)
	}

	sig := jws.NewSignature(params, nil, nil)
	if key != nil {
		if err := validateKeySize(alg, key.Value); err != nil {
			return nil, NewSigningError(err)
		}
		if kid := key.KeyID(); kid != "" {
			if _, ok := params[header.KeyID]; !ok {
				params[header.KeyID] = kid
			}
		}
		sig.Key = key.Handle
	}

	token := jws.New(jws.Compact, map[string]any(claims), sig)

	if codec == nil {
		codec = jws.NewCodec()
	}

	raw, err := codec.Encode(ctx, token)
	if err != nil {
		return nil, NewSigningError(err)
	}

	signature, err := base64.Decode(sig.Value())
	if err != nil {
		return nil, NewSigningError(err)
	}

	return &Token{
		Header:    params,
		Claims:    claims,
		Signature: signature,
		token:     token,
		raw:       raw,
	}, nil
}

// String returns the string representation of the token, which is
// the raw JWT string of three base64url encoded parts, separated
// by a period.
func (t *Token) String() string {
	return t.raw
}

// Parseable is a type that can be parsed into a JWT,
// either a string or byte slice.
type Parseable interface {
	~string | ~[]byte
}

// Parse parses a given JWT, and returns a Token or an error
// if the JWT fails to parse.
//
// # Warning
//
// This is a low-level function that does not verify the
// signature of the token. Use ParseAndVerify to parse
// and verify the signature of a token in one step.
func Parse[T Parseable](input T) (*Token, error) {
	token, err := jws.Decode(input)
	if err != nil {
		return nil, err
	}

	if token.Serialization != jws.Compact {
		return nil, ErrNotCompact
	}

	object, ok := token.Payload.(map[string]any)
	if !ok {
		return nil, NewInvalidTypeError(fmt.Errorf("claims set is %T, not a JSON object", token.Payload))
	}

	// The signed payload stays as received; only the copy is normalized.
	claims := ClaimsSet(maps.Clone(object))
	for _, name := range []ClaimName{IssuedAt, ExpirationTime, NotBefore} {
		value, ok := claims[name]
		if !ok {
			continue
		}
		seconds, err := numericDate(name, value)
		if err != nil {
			return nil, err
		}
		claims[name] = seconds
	}

	sig := token.Signatures[0]

	signature, err := base64.Decode(sig.Value())
	if err != nil {
		return nil, err
	}

	return &Token{
		Header:    sig.Protected,
		Claims:    claims,
		Signature: signature,
		token:     token,
		raw:       strings.TrimSpace(string(input)),
	}, nil
}

// ParseAndVerify parses a given JWT, and verifies the signature
// using the given verification configuration options.
func ParseAndVerify[T Parseable](ctx context.Context, input T, verifyOptions ...VerifyOption) (*Token, error) {
	token, err := Parse(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if err := token.Verify(ctx, verifyOptions...); err != nil {
		return nil, fmt.Errorf("failed to verify JWT: %w", err)
	}

	return token, nil
}

// VerifyConfig is a configuration type for verifying JWTs.
type VerifyConfig struct {
	// InsecureAllowNone allows the "none" algorithm to be used, which
	// is considered insecure, dangerous, and disabled by default. It must be
	// set in addition to being enabled in the allowed algorithms.
	InsecureAllowNone bool

	// AllowedAlgorithms is the set of allowed algorithms for the JWT.
	//
	// If not set, then jwa.DefaultAllowedAlgorithms will be used.
	AllowedAlgorithms jwa.AllowedAlgorithms

	// AllowedIssuers is a set of allowed issuers for the JWT.
	//
	// If not set, then any issuers are allowed.
	AllowedIssuers []string

	// AllowedAudiences is a set of allowed audiences for the JWT.
	//
	// If not set, then any audiences are allowed.
	AllowedAudiences []string

	// Keys are imported keys that may verify the JWT.
	Keys []*jwk.Key

	// KeySets are JWK sets whose keys may verify the JWT. Keys are
	// imported for the token's algorithm as needed.
	KeySets []*jwk.Set

	// KeySetCache and KeySetURL name a remote JWK set to verify with.
	KeySetCache *jwk.SetCache
	KeySetURL   string

	// CriticalHeaders are the "crit" extensions this verifier understands.
	CriticalHeaders []string

	// Registry dispatches the cryptographic operations. If not set,
	// jwa.Default is used.
	Registry *jwa.Registry

	// Clock is a function that returns the current time.
	//
	// This is used to verify the "exp" and "nbf" claims.
	//
	// If not set, then time.Now will be used.
	Clock Clock

	// ClockSkewTolerance is the leeway applied to "exp" and "nbf".
	ClockSkewTolerance time.Duration
}

// VerifyOption is a functional option type used to configure
// the verification requirements for JWTs.
type VerifyOption func(*VerifyConfig) error

// WithAllowInsecureNoneAlgorithm allows the "none" algorithm to be used.
// Users must explicitly enable this option, as it is
// considered insecure, dangerous, and disabled by default.
//
// # WARNING
//
// This is not recommended, and should only be used
// for testing purposes.
func WithAllowInsecureNoneAlgorithm(value bool) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.InsecureAllowNone = value
		return nil
	}
}

// WithAllowedIssuers sets the allowed issuers for the JWT.
func WithAllowedIssuers(issuers ...string) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedIssuers = issuers
		return nil
	}
}

// WithAllowedAudiences sets the allowed audiences for the JWT.
func WithAllowedAudiences(audiences ...string) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedAudiences = audiences
		return nil
	}
}

// WithAllowedAlgorithms sets the allowed algorithms for the JWT.
func WithAllowedAlgorithms(algs ...jwa.Algorithm) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedAlgorithms = jwa.NewAllowedAlgorithms(algs...)
		return nil
	}
}

// WithKey appends a key to the set of allowed keys for the JWT.
func WithKey(key *jwk.Key) VerifyOption {
	return func(vc *VerifyConfig) error {
		if key == nil || key.Handle == nil {
			return fmt.Errorf("key has not been imported")
		}
		vc.Keys = append(vc.Keys, key)
		return nil
	}
}

// WithKeys appends keys to the set of allowed keys for the JWT.
func WithKeys(keys ...*jwk.Key) VerifyOption {
	return func(vc *VerifyConfig) error {
		for _, key := range keys {
			if err := WithKey(key)(vc); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithKeySet appends a JWK set to verify with.
func WithKeySet(set *jwk.Set) VerifyOption {
	return func(vc *VerifyConfig) error {
		if set == nil {
			return fmt.Errorf("nil key set")
		}
		vc.KeySets = append(vc.KeySets, set)
		return nil
	}
}

// WithKeySetURL verifies with the JWK set at url, fetched through cache.
func WithKeySetURL(cache *jwk.SetCache, url string) VerifyOption {
	return func(vc *VerifyConfig) error {
		if cache == nil || url == "" {
			return fmt.Errorf("key set URL requires a cache and a URL")
		}
		vc.KeySetCache = cache
		vc.KeySetURL = url
		return nil
	}
}

// WithSupportedCriticalHeaders sets the "crit" extensions this verifier
// understands.
func WithSupportedCriticalHeaders(names ...string) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.CriticalHeaders = append(vc.CriticalHeaders, names...)
		return nil
	}
}

// WithRegistry sets the algorithm registry.
func WithRegistry(r *jwa.Registry) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.Registry = r
		return nil
	}
}

// WithClock sets the clock function for verifying the JWT.
func WithClock(clock Clock) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.Clock = clock
		return nil
	}
}

// WithDefaultClock sets the clock function for verifying the JWT
// to time.Now.
func WithDefaultClock() VerifyOption {
	return WithClock(time.Now)
}

// WithClockSkewTolerance allows "exp" and "nbf" to be off by d.
func WithClockSkewTolerance(d time.Duration) VerifyOption {
	return func(vc *VerifyConfig) error {
		if d < 0 {
			return fmt.Errorf("clock skew tolerance must not be negative")
		}
		vc.ClockSkewTolerance = d
		return nil
	}
}

// Clock is type used to represent a function that returns the current time.
type Clock func() time.Time

// Expired returns true if the token is expired, false otherwise.
// If an error occurs while checking expiration, it is returned.
//
// Only use the boolean value if error is nil.
func (t *Token) Expired(clock Clock) (bool, error) {
	exp, ok, err := t.Claims.Time(ExpirationTime)
	if err != nil || !ok {
		return false, err
	}
	return exp.Before(clock()), nil
}

// Expires returns true if the token has an expiration time claim,
// false otherwise. If an error occurs while checking expiration,
// it is returned.
//
// Only use the boolean value if error is nil.
func (t *Token) Expires() (bool, error) {
	_, ok, err := t.Claims.Time(ExpirationTime)
	return ok, err
}

// jwsToken returns the underlying JWS, rebuilding it from the exported fields
// for a Token that was not parsed or created by this package.
func (t *Token) jwsToken() *jws.Token {
	if t.token != nil {
		return t.token
	}

	sig := jws.NewSignature(t.Header, nil, nil)
	sig.SetValue(base64.Encode(t.Signature))

	t.token = jws.New(jws.Compact, map[string]any(t.Claims), sig)
	return t.token
}

// Verify is used to verify a signed Token object with the given config options.
// If this fails for any reason, an error is returned.
func (t *Token) Verify(ctx context.Context, opts ...VerifyOption) error {
	config := &VerifyConfig{
		AllowedAlgorithms: jwa.DefaultAllowedAlgorithms(),
		Registry:          jwa.Default,
		Clock:             time.Now,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return fmt.Errorf("verify option error: %w", err)
		}
	}

	if err := t.VerifySignature(ctx, config); err != nil {
		return fmt.Errorf("failed to validate token signature: %w", err)
	}

	return t.VerifyClaims(config)
}

// VerifySignature checks the algorithm against the allowed set and the
// signature against the configured keys.
//
// # Warning
//
// This only verifies the signature, and does not verify any
// other claims, such as expiration time, issuer, audience, etc.
func (t *Token) VerifySignature(ctx context.Context, config *VerifyConfig) error {
	alg, err := t.Header.Algorithm()
	if err != nil {
		return fmt.Errorf("failed to verify alg: %w", err)
	}

	if typ, err := t.Header.Type(); err == nil && typ != Type {
		return fmt.Errorf("header type %q is not supported", typ)
	}

	if !config.AllowedAlgorithms.Allowed(alg) {
		return fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, alg)
	}

	codec := jws.NewCodec(jws.WithRegistry(config.Registry), jws.WithCriticalHeaders(config.CriticalHeaders...))

	token := t.jwsToken()
	sig := token.Signatures[0]
	sig.Key = nil

	if alg == jwa.None {
		if !config.InsecureAllowNone {
			return fmt.Errorf("%w: %q must be enabled explicitly", ErrAlgorithmNotAllowed, alg)
		}
		// https://datatracker.ietf.org/doc/html/rfc7518#section-3.6
		if len(t.Signature) != 0 {
			return fmt.Errorf("%w: %q requires an empty signature", ErrInvalidSignature, alg)
		}
		ok, err := codec.Verify(ctx, token)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidSignature
		}
		return nil
	}

	keys, err := config.keys(ctx, alg)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w using algorithm %q", ErrNoKey, alg)
	}

	// A "kid" narrows the keys to the one it names. Otherwise every key is
	// tried in turn.
	candidates := keys
	if kid := sig.KeyID(); kid != "" {
		ok, err := codec.ResolveKeys(ctx, token, jwk.KeySet{Keys: keys})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w with key id %q", ErrNoKey, kid)
		}
		for _, key := range keys {
			if key.Handle == sig.Key {
				candidates = []*jwk.Key{key}
				break
			}
		}
	}

	var keyErrs error
	for _, key := range candidates {
		if err := validateKeySize(alg, key.Value); err != nil {
			return err
		}

		sig.Key = key.Handle

		ok, err := codec.Verify(ctx, token)
		if errors.Is(err, jws.ErrValidation) || errors.Is(err, jws.ErrMissingSignature) {
			return err
		}
		if err != nil {
			keyErrs = errors.Join(keyErrs, err)
			continue
		}
		if ok {
			return nil
		}
	}

	sig.Key = nil
	return errors.Join(ErrInvalidSignature, keyErrs)
}

// keys returns every configured key usable with alg, importing JWK set
// members for alg as needed. Keys declaring another "alg" are left out.
func (vc *VerifyConfig) keys(ctx context.Context, alg jwa.Algorithm) ([]*jwk.Key, error) {
	compatible := func(value jwk.Value) bool {
		declared := jwk.StringParam(value, jwk.Algorithm)
		return declared == "" || declared == alg
	}

	var out []*jwk.Key
	for _, key := range vc.Keys {
		if compatible(key.Value) {
			out = append(out, key)
		}
	}

	sets := vc.KeySets
	if vc.KeySetCache != nil {
		set, err := vc.KeySetCache.Get(ctx, vc.KeySetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get key set: %w", err)
		}
		sets = append(slices.Clone(sets), set)
	}

	var importErr error
	for _, set := range sets {
		for _, value := range set.Keys {
			if !compatible(value) {
				continue
			}
			key, err := vc.Registry.ImportKeyFor(ctx, alg, value)
			if err != nil {
				importErr = errors.Join(importErr, err)
				continue
			}
			out = append(out, key)
		}
	}

	if len(out) == 0 && importErr != nil {
		return nil, fmt.Errorf("failed to import keys: %w", importErr)
	}

	return out, nil
}

// validateKeySize rejects RSA keys below MinimumRSAKeySize for the RS and
// PS algorithms, and HMAC keys shorter than the hash output.
//
// https://datatracker.ietf.org/doc/html/rfc7518#section-3.2
func validateKeySize(alg jwa.Algorithm, value jwk.Value) error {
	switch kty := jwk.StringParam(value, jwk.KeyType); {
	case kty == jwk.KeyTypeOctet && strings.HasPrefix(alg, "HS"):
		secret, err := jwk.SymmetricKey(value)
		if err != nil {
			return err
		}
		size := hmacKeySizes[alg]
		if len(secret) < size {
			return fmt.Errorf("%w: HMAC key must be at least %d bytes for %s, got %d",
				ErrKeyTooSmall, size, alg, len(secret))
		}
	case kty == jwk.KeyTypeRSA && (strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS")):
		pub, err := jwk.RSAPublicKey(value)
		if err != nil {
			return err
		}
		if size := pub.Size(); size < MinimumRSAKeySize {
			return fmt.Errorf("%w: RSA key size %d bytes (%d bits) is below minimum required %d bytes (%d bits)",
				ErrKeyTooSmall, size, size*8, MinimumRSAKeySize, MinimumRSAKeySize*8)
		}
	}
	return nil
}

var hmacKeySizes = map[jwa.Algorithm]int{
	jwa.HS256: 32,
	jwa.HS384: 48,
	jwa.HS512: 64,
}

// VerifyClaims checks the issuer, audience, "exp", and "nbf" claims.
func (t *Token) VerifyClaims(config *VerifyConfig) error {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()

	// If the allowed issuers is empty, then any issuer is allowed.
	if config.AllowedIssuers != nil {
		issuer, _ := t.Claims.StringClaim(Issuer)
		if !slices.Contains(config.AllowedIssuers, issuer) {
			return fmt.Errorf("%w: %q", ErrIssuerNotAllowed, issuer)
		}
	}

	// If the allowed audiences is empty, then any audience is allowed.
	// Otherwise one of the token's audiences must be allowed.
	if config.AllowedAudiences != nil {
		audiences, err := t.Claims.Audiences()
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(audiences, func(aud string) bool {
			return slices.Contains(config.AllowedAudiences, aud)
		}) {
			return fmt.Errorf("%w: %q", ErrAudienceNotAllowed, audiences)
		}
	}

	exp, ok, err := t.Claims.Time(ExpirationTime)
	if err != nil {
		return fmt.Errorf("failed to validate token expiration: %w", err)
	}
	if ok && exp.Add(config.ClockSkewTolerance).Before(now) {
		return ErrExpired
	}

	nbf, ok, err := t.Claims.Time(NotBefore)
	if err != nil {
		return fmt.Errorf("failed to validate token not before: %w", err)
	}
	if ok && now.Add(config.ClockSkewTolerance).Before(nbf) {
		return fmt.Errorf("%w: unable to be used before %v", ErrNotYetValid, nbf)
	}

	if _, _, err := t.Claims.Time(IssuedAt); err != nil {
		return fmt.Errorf("failed to validate token issued at: %w", err)
	}

	return nil
}

// FromHTTPAuthorizationHeader extracts a JWT string from the Authorization header of an HTTP request.
// If the Authorization header is not set, then an error is returned.
//
// # Warning
//
// This value needs to be parsed and verified before it can be used safely.
func FromHTTPAuthorizationHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}

// HTTPHeaderValue is a type that can be used as a value when setting
// an HTTP request header.
type HTTPHeaderValue interface {
	string | *Token
}

// SetHTTPAuthorizationHeader sets the Authorization header of an HTTP request
// to the given JWT. The JWT is prefixed with "Bearer ", as required by the
// HTTP Authorization header specification.
//
// https://tools.ietf.org/html/rfc6750#section-2.1
func SetHTTPAuthorizationHeader[T HTTPHeaderValue](r *http.Request, jwt T) {
	r.Header.Set("Authorization", fmt.Sprintf("Bearer %s", jwt))
}
