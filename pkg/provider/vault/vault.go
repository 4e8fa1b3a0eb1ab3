package vault

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anvilresearch/jose-sub000/pkg/jwk"
	"github.com/anvilresearch/jose-sub000/pkg/provider"
	"github.com/hashicorp/vault/api"
)

// DefaultMount is the default mount path of the transit engine.
const DefaultMount = "transit"

var (
	ErrKeyNotFound     = errors.New("vault: transit key not found")
	ErrInvalidResponse = errors.New("vault: invalid transit response")
	ErrMissingKeyName  = errors.New("vault: JWK has no \"kid\" naming a transit key")
	ErrNoFallback      = errors.New("vault: operation requires a fallback provider")
)

// Config holds configuration for the Vault provider.
type Config struct {
	// Address is the Vault server address.
	Address string

	// Token is the authentication token.
	Token string

	// Mount is the mount path of the transit engine. Defaults to "transit".
	Mount string
}

// Provider signs and verifies with Vault transit keys.
type Provider struct {
	client   *api.Client
	mount    string
	fallback provider.Provider
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Vault client from config. fallback serves the operations
// the transit engine does not back, and may be nil.
func New(config Config, fallback provider.Provider) (*Provider, error) {
	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if config.Token != "" {
		client.SetToken(config.Token)
	}

	return NewWithClient(client, config.Mount, fallback), nil
}

// NewWithClient wraps an existing Vault API client.
func NewWithClient(client *api.Client, mount string, fallback provider.Provider) *Provider {
	if mount == "" {
		mount = DefaultMount
	}
	return &Provider{
		client:   client,
		mount:    strings.Trim(mount, "/"),
		fallback: fallback,
	}
}

// Key is the material of a handle returned by ImportKey.
type Key struct {
	Name    string
	Version int64
}

func (p *Provider) path(parts ...string) string {
	return p.mount + "/" + strings.Join(parts, "/")
}

// LatestVersion returns the latest version of the named transit key.
func (p *Provider) LatestVersion(ctx context.Context, name string) (int64, error) {
	secret, err := p.client.Logical().ReadWithContext(ctx, p.path("keys", name))
	if err != nil {
		return 0, fmt.Errorf("failed to read key info: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return 0, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
	}

	latestVersion, ok := secret.Data["latest_version"].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: invalid version format", ErrInvalidResponse)
	}

	version, err := latestVersion.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse version: %w", ErrInvalidResponse, err)
	}

	return version, nil
}

func hashName(h crypto.Hash) (string, error) {
	switch h {
	case crypto.SHA256:
		return "sha2-256", nil
	case crypto.SHA384:
		return "sha2-384", nil
	case crypto.SHA512:
		return "sha2-512", nil
	default:
		return "", fmt.Errorf("%w: hash %v", provider.ErrUnsupportedAlgorithm, h)
	}
}

// request returns the endpoint suffix and body shared by sign and verify.
func request(params provider.Params, key Key, data []byte) (string, map[string]any, error) {
	body := map[string]any{
		"input":       base64.StdEncoding.EncodeToString(data),
		"key_version": key.Version,
	}

	switch params.Name {
	case provider.HMAC, provider.RSASSAPKCS1v15, provider.RSAPSS, provider.ECDSA:
	case provider.Ed25519:
		return key.Name, body, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedAlgorithm, params.Name)
	}

	hash, err := hashName(params.Hash)
	if err != nil {
		return "", nil, err
	}

	switch params.Name {
	case provider.RSASSAPKCS1v15:
		body["signature_algorithm"] = "pkcs1v15"
	case provider.RSAPSS:
		body["signature_algorithm"] = "pss"
		body["salt_length"] = "hash"
	case provider.ECDSA:
		body["marshaling_algorithm"] = "jws"
	}

	return key.Name + "/" + hash, body, nil
}

func transitKey(key *provider.CryptoKey) (Key, bool) {
	k, ok := key.Material().(Key)
	return k, ok
}

// encodeSignature renders raw signature bytes in transit's
// "vault:v<version>:<base64>" form.
func encodeSignature(params provider.Params, version int64, sig []byte) string {
	enc := base64.StdEncoding.EncodeToString(sig)
	if params.Name == provider.ECDSA {
		enc = base64.RawURLEncoding.EncodeToString(sig)
	}
	return fmt.Sprintf("vault:v%d:%s", version, enc)
}

func decodeSignature(params provider.Params, value string) ([]byte, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" {
		return nil, fmt.Errorf("%w: unexpected signature format", ErrInvalidResponse)
	}

	enc := base64.StdEncoding
	if params.Name == provider.ECDSA {
		// The JWS marshaling is base64url without padding.
		enc = base64.RawURLEncoding
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return sig, nil
}

func (p *Provider) Sign(ctx context.Context, params provider.Params, key *provider.CryptoKey, data []byte) ([]byte, error) {
	if err := provider.Check(key, provider.UsageSign); err != nil {
		return nil, err
	}

	ref, ok := transitKey(key)
	if !ok {
		if p.fallback == nil {
			return nil, ErrNoFallback
		}
		return p.fallback.Sign(ctx, params, key, data)
	}

	suffix, body, err := request(params, ref, data)
	if err != nil {
		return nil, err
	}

	endpoint, field := "sign", "signature"
	if params.Name == provider.HMAC {
		endpoint, field = "hmac", "hmac"
	}

	secret, err := p.client.Logical().WriteWithContext(ctx, p.path(endpoint, suffix), body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data: %w", err)
	}

	if secret == nil {
		return nil, fmt.Errorf("%w: no signature returned", ErrInvalidResponse)
	}

	signature, ok := secret.Data[field].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid signature format", ErrInvalidResponse)
	}

	return decodeSignature(params, signature)
}

func (p *Provider) Verify(ctx context.Context, params provider.Params, key *provider.CryptoKey, signature, data []byte) (bool, error) {
	if err := provider.Check(key, provider.UsageVerify); err != nil {
		return false, err
	}

	ref, ok := transitKey(key)
	if !ok {
		if p.fallback == nil {
			return false, ErrNoFallback
		}
		return p.fallback.Verify(ctx, params, key, signature, data)
	}

	suffix, body, err := request(params, ref, data)
	if err != nil {
		return false, err
	}
	delete(body, "key_version")

	if params.Name == provider.HMAC {
		body["hmac"] = encodeSignature(params, ref.Version, signature)
	} else {
		body["signature"] = encodeSignature(params, ref.Version, signature)
	}

	secret, err := p.client.Logical().WriteWithContext(ctx, p.path("verify", suffix), body)
	if err != nil {
		return false, fmt.Errorf("failed to verify signature: %w", err)
	}

	if secret == nil {
		return false, fmt.Errorf("%w: no verification result returned", ErrInvalidResponse)
	}

	valid, ok := secret.Data["valid"].(bool)
	if !ok {
		return false, fmt.Errorf("%w: invalid verification result", ErrInvalidResponse)
	}

	return valid, nil
}

func (p *Provider) Encrypt(ctx context.Context, params provider.Params, key *provider.CryptoKey, plaintext []byte) ([]byte, error) {
	if p.fallback == nil {
		return nil, ErrNoFallback
	}
	return p.fallback.Encrypt(ctx, params, key, plaintext)
}

func (p *Provider) Decrypt(ctx context.Context, params provider.Params, key *provider.CryptoKey, ciphertext []byte) ([]byte, error) {
	if p.fallback == nil {
		return nil, ErrNoFallback
	}
	return p.fallback.Decrypt(ctx, params, key, ciphertext)
}

func (p *Provider) RandomValues(ctx context.Context, buf []byte) error {
	if p.fallback == nil {
		return ErrNoFallback
	}
	return p.fallback.RandomValues(ctx, buf)
}

// ImportKey binds a handle to the transit key named by the JWK "kid".
// The JWK members other than "kid" are not sent to Vault. AES-GCM keys
// are imported by the fallback provider.
func (p *Provider) ImportKey(ctx context.Context, format provider.Format, keyData map[string]any, params provider.Params, extractable bool, usages []provider.Usage) (*provider.CryptoKey, error) {
	if params.Name == provider.AESGCM {
		if p.fallback == nil {
			return nil, ErrNoFallback
		}
		return p.fallback.ImportKey(ctx, format, keyData, params, extractable, usages)
	}

	if format != provider.FormatJWK {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedFormat, format)
	}

	name := jwk.StringParam(keyData, jwk.KeyID)
	if name == "" {
		return nil, ErrMissingKeyName
	}

	version, err := p.LatestVersion(ctx, name)
	if err != nil {
		return nil, err
	}

	typ := provider.KeyTypePrivate
	if params.Name == provider.HMAC {
		typ = provider.KeyTypeSecret
	}

	// Transit keys are never exportable through this provider.
	return provider.NewCryptoKey(typ, params, false, usages, Key{Name: name, Version: version}), nil
}
