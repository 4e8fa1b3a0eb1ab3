package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
)

// https://datatracker.ietf.org/doc/html/rfc7517#section-4
type (
	ParameterName = string

	RSA       = ParameterName
	ECDSA     = ParameterName
	Symmetric = ParameterName
)

const (
	KeyType              ParameterName = "kty"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.1
	PublicKeyUse         ParameterName = "use"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.2
	KeyOperations        ParameterName = "key_ops"  // https://datatracker.ietf.org/doc/html/rfc7517#section-4.3
	Algorithm            ParameterName = "alg"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.4
	KeyID                ParameterName = "kid"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.5
	X509URL              ParameterName = "x5u"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.6
	X509CertificateChain ParameterName = "x5c"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.7
	X509SHA1Thumbprint   ParameterName = "x5t"      // https://datatracker.ietf.org/doc/html/rfc7517#section-4.8
	X509SHA256Thumbprint ParameterName = "x5t#S256" // https://datatracker.ietf.org/doc/html/rfc7517#section-4.9
	Extractable          ParameterName = "ext"

	// K is the symmetric key value within a JWK.
	// https://datatracker.ietf.org/doc/html/rfc7518#section-6.4
	K Symmetric = "k"

	// Curve is the curve value within an ECDSA JWK, such as "P-256".
	// https://datatracker.ietf.org/doc/html/rfc7518#section-6.2
	Curve ECDSA = "crv"
	X     ECDSA = "x" // X is the x-coordinate for the elliptic curve point.
	Y     ECDSA = "y" // Y is the y-coordinate for the elliptic curve point.

	// https://datatracker.ietf.org/doc/html/rfc7518#section-6.3
	N   RSA = "n"   // N is the RSA public modulus value.
	E   RSA = "e"   // E is the RSA public exponent value.
	D   RSA = "d"   // D is the RSA private exponent value (also the EC/OKP private key).
	P   RSA = "p"   // P is the first prime factor.
	Q   RSA = "q"   // Q is the second prime factor.
	DP  RSA = "dp"  // DP is the first factor CRT exponent.
	DQ  RSA = "dq"  // DQ is the second factor CRT exponent.
	QI  RSA = "qi"  // QI is the first CRT coefficient.
	Oth RSA = "oth" // Oth is the other primes info.
)

// Key types.
const (
	KeyTypeEC        = "EC"
	KeyTypeRSA       = "RSA"
	KeyTypeOctet     = "oct"
	KeyTypeOctetPair = "OKP"
)

// Public key uses.
const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

// Value is a JSON object that represents a cryptographic key.
//
// https://datatracker.ietf.org/doc/html/rfc7517#section-4
type Value = map[ParameterName]any

// Clone returns a deep enough copy of v that mutating top level members,
// or the "key_ops" list, of the copy leaves v untouched.
func Clone(v Value) Value {
	out := make(Value, len(v))
	for name, value := range v {
		switch typed := value.(type) {
		case []any:
			out[name] = append([]any(nil), typed...)
		case []string:
			out[name] = append([]string(nil), typed...)
		default:
			out[name] = value
		}
	}
	return out
}

// Parse decodes a single JWK JSON object.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode JWK: %w", err)
	}
	if v == nil {
		return nil, fmt.Errorf("JWK must be a JSON object")
	}
	return v, nil
}

func stringParam(v Value, name ParameterName) (string, bool) {
	s, ok := v[name].(string)
	return s, ok && s != ""
}

// StringParam returns the named string member of v, or "" when it is
// missing or not a string.
func StringParam(v Value, name ParameterName) string {
	s, _ := stringParam(v, name)
	return s
}

// KeyOps returns the "key_ops" member as a list of strings.
func KeyOps(v Value) ([]string, error) {
	value, ok := v[KeyOperations]
	if !ok {
		return nil, nil
	}
	switch ops := value.(type) {
	case []string:
		return ops, nil
	case []any:
		out := make([]string, 0, len(ops))
		for _, op := range ops {
			s, ok := op.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %q member type %T", KeyOperations, op)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid %q type %T", KeyOperations, value)
	}
}

// IsPrivate reports whether v carries private key material.
func IsPrivate(v Value) bool {
	_, ok := stringParam(v, D)
	return ok
}

func decodeParam(v Value, name ParameterName) ([]byte, error) {
	s, ok := stringParam(v, name)
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	b, err := base64.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding for %q: %w", name, err)
	}
	return b, nil
}

func decodeBigInt(v Value, name ParameterName) (*big.Int, error) {
	b, err := decodeParam(v, name)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// Validate checks that the required parameters are present for
// the given key type, and that the values are valid.
func Validate(v Value) error {
	kty, ok := stringParam(v, KeyType)
	if !ok {
		return fmt.Errorf("missing required parameter %q", KeyType)
	}

	if _, err := KeyOps(v); err != nil {
		return err
	}

	var required []ParameterName

	switch kty {
	case KeyTypeEC:
		switch crv := StringParam(v, Curve); crv {
		case "P-256", "P-384", "P-521":
		default:
			return fmt.Errorf("invalid curve %q", crv)
		}
		required = []ParameterName{X, Y}
	case KeyTypeRSA:
		required = []ParameterName{N, E}
	case KeyTypeOctet:
		required = []ParameterName{K}
	case KeyTypeOctetPair:
		if crv := StringParam(v, Curve); crv != "Ed25519" {
			return fmt.Errorf("invalid curve %q", crv)
		}
		required = []ParameterName{X}
	default:
		return fmt.Errorf("unknown key type %q", kty)
	}

	for _, name := range required {
		if _, err := decodeParam(v, name); err != nil {
			return err
		}
	}

	if _, ok := v[D]; ok {
		if _, err := decodeParam(v, D); err != nil {
			return err
		}
	}

	return nil
}

// SymmetricKey returns the raw octets of an "oct" key.
func SymmetricKey(v Value) ([]byte, error) {
	if kty := StringParam(v, KeyType); kty != KeyTypeOctet {
		return nil, fmt.Errorf("JWK key type %q is not %q", kty, KeyTypeOctet)
	}
	return decodeParam(v, K)
}

// RSAPublicKey returns the RSA public key held by v.
func RSAPublicKey(v Value) (*rsa.PublicKey, error) {
	if kty := StringParam(v, KeyType); kty != KeyTypeRSA {
		return nil, fmt.Errorf("JWK key type %q is not %q", kty, KeyTypeRSA)
	}

	n, err := decodeBigInt(v, N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode RSA public key: %w", err)
	}

	e, err := decodeBigInt(v, E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode RSA public key: %w", err)
	}

	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("invalid RSA public exponent")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// RSAPrivateKey returns the RSA private key held by v. The CRT values are
// recomputed from the primes rather than trusted.
func RSAPrivateKey(v Value) (*rsa.PrivateKey, error) {
	pub, err := RSAPublicKey(v)
	if err != nil {
		return nil, err
	}

	d, err := decodeBigInt(v, D)
	if err != nil {
		return nil, fmt.Errorf("failed to decode RSA private key: %w", err)
	}

	key := &rsa.PrivateKey{PublicKey: *pub, D: d}

	if _, ok := v[P]; ok {
		p, err := decodeBigInt(v, P)
		if err != nil {
			return nil, fmt.Errorf("failed to decode RSA private key: %w", err)
		}
		q, err := decodeBigInt(v, Q)
		if err != nil {
			return nil, fmt.Errorf("failed to decode RSA private key: %w", err)
		}
		key.Primes = []*big.Int{p, q}
	}

	if _, ok := v[Oth]; ok {
		return nil, fmt.Errorf("multi-prime RSA keys (%q) are not supported", Oth)
	}

	if len(key.Primes) == 0 {
		return nil, fmt.Errorf("RSA private key without prime factors is not supported")
	}

	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid RSA private key: %w", err)
	}

	key.Precompute()

	return key, nil
}

func curveByName(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("invalid curve %q", crv)
	}
}

// CurveName returns the JWK "crv" value for curve.
func CurveName(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return "P-256", nil
	case elliptic.P384():
		return "P-384", nil
	case elliptic.P521():
		return "P-521", nil
	default:
		return "", fmt.Errorf("invalid curve %v used for JWK value", curve.Params().Name)
	}
}

// ECDSAPublicKey returns the ECDSA public key held by v.
func ECDSAPublicKey(v Value) (*ecdsa.PublicKey, error) {
	if kty := StringParam(v, KeyType); kty != KeyTypeEC {
		return nil, fmt.Errorf("JWK key type %q is not %q", kty, KeyTypeEC)
	}

	curve, err := curveByName(StringParam(v, Curve))
	if err != nil {
		return nil, err
	}

	x, err := decodeBigInt(v, X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ECDSA public key: %w", err)
	}

	y, err := decodeBigInt(v, Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ECDSA public key: %w", err)
	}

	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("ECDSA public key point is not on curve %s", curve.Params().Name)
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// ECDSAPrivateKey returns the ECDSA private key held by v.
func ECDSAPrivateKey(v Value) (*ecdsa.PrivateKey, error) {
	pub, err := ECDSAPublicKey(v)
	if err != nil {
		return nil, err
	}

	d, err := decodeBigInt(v, D)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ECDSA private key: %w", err)
	}

	return &ecdsa.PrivateKey{PublicKey: *pub, D: d}, nil
}

// Ed25519PublicKey returns the Ed25519 public key held by v.
func Ed25519PublicKey(v Value) (ed25519.PublicKey, error) {
	if kty := StringParam(v, KeyType); kty != KeyTypeOctetPair {
		return nil, fmt.Errorf("JWK key type %q is not %q", kty, KeyTypeOctetPair)
	}
	if crv := StringParam(v, Curve); crv != "Ed25519" {
		return nil, fmt.Errorf("JWK curve %q is not Ed25519", crv)
	}

	x, err := decodeParam(v, X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ed25519 public key: %w", err)
	}

	if len(x) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid Ed25519 public key X length: %d", len(x))
	}

	return ed25519.PublicKey(x), nil
}

// Ed25519PrivateKey returns the Ed25519 private key held by v.
func Ed25519PrivateKey(v Value) (ed25519.PrivateKey, error) {
	pub, err := Ed25519PublicKey(v)
	if err != nil {
		return nil, err
	}

	seed, err := decodeParam(v, D)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ed25519 private key: %w", err)
	}

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid Ed25519 private key D length: %d", len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	if !pub.Equal(priv.Public()) {
		return nil, fmt.Errorf("Ed25519 private key does not match public key")
	}

	return priv, nil
}

func padded(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// ValueFromPublicKey returns a JWK value from the given public key.
func ValueFromPublicKey(pubKey any) (Value, error) {
	switch pubKey := pubKey.(type) {
	case *rsa.PublicKey:
		return Value{
			KeyType:      KeyTypeRSA,
			PublicKeyUse: UseSignature,
			N:            base64.Encode(pubKey.N.Bytes()),
			E:            base64.Encode(big.NewInt(int64(pubKey.E)).Bytes()),
		}, nil
	case *ecdsa.PublicKey:
		crv, err := CurveName(pubKey.Curve)
		if err != nil {
			return nil, err
		}
		size := (pubKey.Curve.Params().BitSize + 7) / 8
		return Value{
			KeyType:      KeyTypeEC,
			PublicKeyUse: UseSignature,
			Curve:        crv,
			X:            base64.Encode(padded(pubKey.X.Bytes(), size)),
			Y:            base64.Encode(padded(pubKey.Y.Bytes(), size)),
		}, nil
	case ed25519.PublicKey:
		return Value{
			KeyType:      KeyTypeOctetPair,
			PublicKeyUse: UseSignature,
			Curve:        "Ed25519",
			X:            base64.Encode(pubKey),
		}, nil
	default:
		return nil, fmt.Errorf("invalid type %T used for JWK value", pubKey)
	}
}

// ValueFromPrivateKey returns a JWK value, including private members, from
// the given private or symmetric key.
func ValueFromPrivateKey(privKey any) (Value, error) {
	switch privKey := privKey.(type) {
	case *rsa.PrivateKey:
		value, err := ValueFromPublicKey(&privKey.PublicKey)
		if err != nil {
			return nil, err
		}
		if len(privKey.Primes) != 2 {
			return nil, fmt.Errorf("multi-prime RSA keys are not supported")
		}
		privKey.Precompute()
		value[D] = base64.Encode(privKey.D.Bytes())
		value[P] = base64.Encode(privKey.Primes[0].Bytes())
		value[Q] = base64.Encode(privKey.Primes[1].Bytes())
		value[DP] = base64.Encode(privKey.Precomputed.Dp.Bytes())
		value[DQ] = base64.Encode(privKey.Precomputed.Dq.Bytes())
		value[QI] = base64.Encode(privKey.Precomputed.Qinv.Bytes())
		return value, nil
	case *ecdsa.PrivateKey:
		value, err := ValueFromPublicKey(&privKey.PublicKey)
		if err != nil {
			return nil, err
		}
		size := (privKey.Curve.Params().BitSize + 7) / 8
		value[D] = base64.Encode(padded(privKey.D.Bytes(), size))
		return value, nil
	case ed25519.PrivateKey:
		value, err := ValueFromPublicKey(privKey.Public())
		if err != nil {
			return nil, err
		}
		value[D] = base64.Encode(privKey.Seed())
		return value, nil
	case []byte:
		if len(privKey) == 0 {
			return nil, fmt.Errorf("symmetric key must not be empty")
		}
		return Value{
			KeyType: KeyTypeOctet,
			K:       base64.Encode(privKey),
		}, nil
	default:
		return nil, fmt.Errorf("invalid type %T used for JWK value", privKey)
	}
}

// PublicValue strips the private members from v.
func PublicValue(v Value) Value {
	out := Clone(v)
	for _, name := range []ParameterName{D, P, Q, DP, DQ, QI, Oth, K} {
		delete(out, name)
	}
	return out
}
