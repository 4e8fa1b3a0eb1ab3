package header

import (
	"fmt"
	"sort"

	"github.com/anvilresearch/jose-sub000/pkg/base64"
	"github.com/anvilresearch/jose-sub000/pkg/jwa"
)

// There are three classes of Header Parameter names: Registered Header
// Parameter names, Public Header Parameter names, and Private Header
// Parameter names.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4
type (
	ParameterName = string

	Registered = ParameterName
	Public     = ParameterName
	Private    = ParameterName
)

// Registered Header Parameter Names
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4.1
const (
	Type                            Registered = "typ"
	Algorithm                       Registered = "alg"
	JWKSetURL                       Registered = "jku"
	JSONWebKey                      Registered = "jwk"
	X509URL                         Registered = "x5u"
	X509CertificateChain            Registered = "x5c"
	X509CertificateSHA1Thumbprint   Registered = "x5t"
	X509CertificateSHA256Thumbprint Registered = "x5t#S256"
	ContentType                     Registered = "cty"
	Critical                        Registered = "crit"
	KeyID                           Registered = "kid"

	// https://www.rfc-editor.org/rfc/rfc7516.html#section-4.1.2
	Encryption Registered = "enc"

	// https://www.rfc-editor.org/rfc/rfc7516.html#section-4.1.3
	Zip Registered = "zip"
)

const (
	TypeJWT = "JWT"
	TypeJWS = "JWS"
)

var registered = map[ParameterName]struct{}{
	Type: {}, Algorithm: {}, JWKSetURL: {}, JSONWebKey: {}, X509URL: {},
	X509CertificateChain: {}, X509CertificateSHA1Thumbprint: {},
	X509CertificateSHA256Thumbprint: {}, ContentType: {}, Critical: {},
	KeyID: {}, Encryption: {}, Zip: {},
}

// IsRegistered reports whether name is one of the registered JOSE header
// parameter names.
func IsRegistered(name ParameterName) bool {
	_, ok := registered[name]
	return ok
}

// Parameters is a JSON object containing the parameters describing
// the cryptographic operations and parameters employed.
//
// The JOSE (JSON Object Signing and Encryption) Header is comprised
// of a set of Header Parameters. A signature carries two of them: the
// protected half, which is covered by the signature, and the unprotected
// half, which travels in the clear.
type Parameters map[ParameterName]any

// Base64URLString returns BASE64URL(UTF8(JSON(h))).
func (h Parameters) Base64URLString() (string, error) {
	s, err := base64.EncodeJSON(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode JOSE header base64 URL string: %w", err)
	}
	return s, nil
}

// Clone returns a shallow copy of h. A nil receiver yields nil.
func (h Parameters) Clone() Parameters {
	if h == nil {
		return nil
	}
	out := make(Parameters, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func (h Parameters) stringParam(name ParameterName) (string, error) {
	value, ok := h[name]
	if !ok {
		return "", fmt.Errorf("header does not contain a %q parameter", name)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("header parameter %q is not a string, is %T", name, value)
	}
	return strValue, nil
}

func (h Parameters) Type() (string, error) {
	return h.stringParam(Type)
}

func (h Parameters) KeyID() (string, error) {
	return h.stringParam(KeyID)
}

func (h Parameters) Algorithm() (jwa.Algorithm, error) {
	alg, err := h.stringParam(Algorithm)
	if err != nil {
		return "", err
	}
	if alg == "" {
		return "", fmt.Errorf("header parameter %q is empty", Algorithm)
	}
	return alg, nil
}

// Critical returns the names listed in the "crit" parameter. A header
// without "crit" yields a nil slice and no error.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4.1.11
func (h Parameters) Critical() ([]string, error) {
	value, ok := h[Critical]
	if !ok {
		return nil, nil
	}

	var names []string
	switch v := value.(type) {
	case []string:
		names = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("header parameter %q contains non-string value %T", Critical, item)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("header parameter %q is not an array, is %T", Critical, value)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("header parameter %q must not be empty", Critical)
	}

	return names, nil
}

func (h Parameters) Get(param ParameterName) (any, error) {
	value, ok := h[param]
	if !ok {
		return nil, fmt.Errorf("header does not contain a %q parameter", param)
	}
	return value, nil
}

// Names returns the parameter names in lexical order.
func (h Parameters) Names() []ParameterName {
	names := make([]ParameterName, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Disjoint checks that no parameter name appears in both the protected and
// the unprotected half of a signature's JOSE header.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-7.2.1
func Disjoint(protected, unprotected Parameters) error {
	for _, name := range unprotected.Names() {
		if _, dup := protected[name]; dup {
			return fmt.Errorf("header parameter %q is present in both protected and unprotected headers", name)
		}
	}
	return nil
}

// Merge returns the union of the protected and unprotected halves, which
// is the JOSE Header a signature is processed with. The halves must be
// disjoint.
func Merge(protected, unprotected Parameters) (Parameters, error) {
	if err := Disjoint(protected, unprotected); err != nil {
		return nil, err
	}
	out := make(Parameters, len(protected)+len(unprotected))
	for k, v := range protected {
		out[k] = v
	}
	for k, v := range unprotected {
		out[k] = v
	}
	return out, nil
}
