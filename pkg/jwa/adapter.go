package jwa

import (
	"context"
	"fmt"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
)

// Adapter is the uniform capability interface every algorithm family
// implements over a crypto provider. Adapters are stateless: the algorithm
// parameters and the provider are bound when the adapter is built.
//
// Operations an adapter's family does not have return an
// *UnsupportedOperationError.
type Adapter interface {
	// Family names the algorithm family, such as "HMAC".
	Family() string

	// Sign returns the base64url encoded signature of data.
	Sign(ctx context.Context, key *provider.CryptoKey, data []byte) (string, error)

	// Verify reports whether the base64url encoded signature is valid for
	// data. A mismatch is (false, nil), never an error.
	Verify(ctx context.Context, key *provider.CryptoKey, signature string, data []byte) (bool, error)

	// Encrypt encrypts plaintext with additional authenticated data.
	Encrypt(ctx context.Context, key *provider.CryptoKey, plaintext, aad []byte) (*Ciphertext, error)

	// Decrypt reverses Encrypt.
	Decrypt(ctx context.Context, key *provider.CryptoKey, ciphertext *Ciphertext, aad []byte) ([]byte, error)

	// ImportKey clones value and attaches a provider key handle to the clone.
	ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error)
}

// Ciphertext is the output of an authenticated encryption.
type Ciphertext struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// unsupported implements every Adapter operation as an
// UnsupportedOperationError. Families embed it and override what they have.
type unsupported struct {
	family string
}

func (u unsupported) Family() string { return u.family }

func (u unsupported) Sign(context.Context, *provider.CryptoKey, []byte) (string, error) {
	return "", &UnsupportedOperationError{Family: u.family, Operation: OperationSign}
}

func (u unsupported) Verify(context.Context, *provider.CryptoKey, string, []byte) (bool, error) {
	return false, &UnsupportedOperationError{Family: u.family, Operation: OperationVerify}
}

func (u unsupported) Encrypt(context.Context, *provider.CryptoKey, []byte, []byte) (*Ciphertext, error) {
	return nil, &UnsupportedOperationError{Family: u.family, Operation: OperationEncrypt}
}

func (u unsupported) Decrypt(context.Context, *provider.CryptoKey, *Ciphertext, []byte) ([]byte, error) {
	return nil, &UnsupportedOperationError{Family: u.family, Operation: OperationDecrypt}
}

func (u unsupported) ImportKey(context.Context, jwk.Value) (*jwk.Key, error) {
	return nil, &UnsupportedOperationError{Family: u.family, Operation: OperationImportKey}
}

// keyImporter is the importKey half shared by the families that have one.
type keyImporter struct {
	alg      Algorithm
	provider provider.Provider
	params   provider.Params

	// purpose is the usage pair keys default to: sign/verify or
	// encrypt/decrypt.
	purpose [2]provider.Usage
}

func (k keyImporter) ImportKey(ctx context.Context, value jwk.Value) (*jwk.Key, error) {
	if alg := jwk.StringParam(value, jwk.Algorithm); alg != "" && alg != k.alg {
		return nil, fmt.Errorf("%w: key is for %q, not %q", ErrAlgorithmMismatch, alg, k.alg)
	}

	usages, err := Usages(value, k.purpose)
	if err != nil {
		return nil, err
	}

	clone := jwk.Clone(value)

	extractable := true
	if ext, ok := clone[jwk.Extractable].(bool); ok {
		extractable = ext
	}

	handle, err := k.provider.ImportKey(ctx, provider.FormatJWK, clone, k.params, extractable, usages)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s key: %w", k.alg, err)
	}

	return &jwk.Key{Value: clone, Handle: handle}, nil
}

var (
	signaturePurpose  = [2]provider.Usage{provider.UsageSign, provider.UsageVerify}
	encryptionPurpose = [2]provider.Usage{provider.UsageEncrypt, provider.UsageDecrypt}
)

// Usages derives the usages a JWK is imported with.
//
// "key_ops" wins when present; operations without a provider usage, such as
// "wrapKey", are dropped. Otherwise "use":"sig" grants verify, plus sign when
// the key is private or symmetric, and "use":"enc" grants encrypt and
// decrypt. A key with neither gets the purpose pair, less the first (private)
// half for public keys.
//
// https://datatracker.ietf.org/doc/html/rfc7517#section-4.3
func Usages(value jwk.Value, purpose [2]provider.Usage) ([]provider.Usage, error) {
	ops, err := jwk.KeyOps(value)
	if err != nil {
		return nil, err
	}

	if ops != nil {
		usages := make([]provider.Usage, 0, len(ops))
		for _, op := range ops {
			switch usage := provider.Usage(op); usage {
			case provider.UsageSign, provider.UsageVerify, provider.UsageEncrypt, provider.UsageDecrypt:
				usages = append(usages, usage)
			}
		}
		return usages, nil
	}

	secret := jwk.IsPrivate(value) || jwk.StringParam(value, jwk.KeyType) == jwk.KeyTypeOctet

	switch jwk.StringParam(value, jwk.PublicKeyUse) {
	case jwk.UseSignature:
		if secret {
			return []provider.Usage{provider.UsageSign, provider.UsageVerify}, nil
		}
		return []provider.Usage{provider.UsageVerify}, nil
	case jwk.UseEncryption:
		return []provider.Usage{provider.UsageEncrypt, provider.UsageDecrypt}, nil
	}

	if secret {
		return []provider.Usage{purpose[0], purpose[1]}, nil
	}
	return []provider.Usage{purpose[1]}, nil
}
