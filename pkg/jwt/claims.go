package jwt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// There are three classes of JWT Claim Names:
// 1. Registered Claim Names
// 2. Public Claim Names
// 3. Private Claim Names
type (
	ClaimName = string

	Registered = ClaimName
	Public     = ClaimName
	Private    = ClaimName
)

// ClaimValue is a piece of information asserted about a subject, represented
// as a name/value pair consisting of a ClaimName and a ClaimValue.
type ClaimValue = any

// Registered Claim Names
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-4.1
const (
	Issuer         Registered = "iss"
	Subject        Registered = "sub"
	Audience       Registered = "aud"
	ExpirationTime Registered = "exp"
	NotBefore      Registered = "nbf"
	IssuedAt       Registered = "iat"
	JWTID          Registered = "jti"
)

// ClaimsSet is a JSON object that contains the claims conveyed by the JWT.
//
// A claim is a piece of information asserted about a subject, represented
// as a name/value pair consisting of a Claim Name and a Claim Value.
type ClaimsSet map[ClaimName]ClaimValue

func (claims ClaimsSet) Get(name ClaimName) (ClaimValue, error) {
	value, ok := claims[name]
	if !ok {
		return nil, fmt.Errorf("claim %q not found in claims set", name)
	}
	return value, nil
}

func (claims ClaimsSet) Set(name ClaimName, value ClaimValue) {
	claims[name] = value
}

// Names returns the claim names in lexical order.
func (claims ClaimsSet) Names() []ClaimName {
	names := make([]ClaimName, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StringClaim returns the claim as a string, if it is one.
func (claims ClaimsSet) StringClaim(name ClaimName) (string, bool) {
	s, ok := claims[name].(string)
	return s, ok
}

// Audiences returns the "aud" claim, which is either a single string or an
// array of strings.
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-4.1.3
func (claims ClaimsSet) Audiences() ([]string, error) {
	value, ok := claims[Audience]
	if !ok {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, NewInvalidTypeError(fmt.Errorf("claim %q contains %T", Audience, item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, NewInvalidTypeError(fmt.Errorf("claim %q is %T", Audience, value))
	}
}

// Time returns a NumericDate claim such as "exp". ok is false when the claim
// is absent.
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-2
func (claims ClaimsSet) Time(name ClaimName) (t time.Time, ok bool, err error) {
	value, ok := claims[name]
	if !ok {
		return time.Time{}, false, nil
	}

	seconds, err := numericDate(name, value)
	if err != nil {
		return time.Time{}, true, err
	}
	return time.Unix(seconds, 0), true, nil
}

// numericDate converts the types a NumericDate can arrive as to seconds.
func numericDate(name ClaimName, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, NewInvalidTypeError(fmt.Errorf("claim %q is not a number: %w", name, err))
		}
		return int64(f), nil
	case time.Time:
		return v.Unix(), nil
	default:
		return 0, NewInvalidTypeError(fmt.Errorf("cannot use %T with %q", value, name))
	}
}

// normalize rewrites registered claims to their wire types: NumericDate
// claims to int64 seconds, and string claims from fmt.Stringer values.
func (claims ClaimsSet) normalize() error {
	for name, value := range claims {
		switch name {
		case ExpirationTime, NotBefore, IssuedAt:
			seconds, err := numericDate(name, value)
			if err != nil {
				return err
			}
			claims[name] = seconds
		case Issuer, Subject, JWTID:
			switch v := value.(type) {
			case string:
			case fmt.Stringer:
				claims[name] = v.String()
			default:
				return NewInvalidTypeError(fmt.Errorf("cannot use %T with %q", v, name))
			}
		case Audience:
			if _, err := claims.Audiences(); err != nil {
				return err
			}
		}
	}
	return nil
}
