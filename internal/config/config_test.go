package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, ProviderSoftware, cfg.Provider)
	require.Equal(t, "transit", cfg.VaultMount)
	require.Equal(t, 15*time.Minute, cfg.JWKSRefresh)
	require.Equal(t, time.Hour, cfg.JWKSTTL)
	require.Empty(t, cfg.CriticalHeaders)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JOSE_LOG_LEVEL", "debug")
	t.Setenv("JOSE_LOG_FORMAT", "json")
	t.Setenv("JOSE_PROVIDER", "vault")
	t.Setenv("VAULT_ADDR", "http://127.0.0.1:8200")
	t.Setenv("JOSE_JWKS_TTL", "30s")
	t.Setenv("JOSE_CRITICAL_HEADERS", "b64,exp")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, ProviderVault, cfg.Provider)
	require.Equal(t, 30*time.Second, cfg.JWKSTTL)
	require.Equal(t, []string{"b64", "exp"}, cfg.CriticalHeaders)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "software",
			cfg:  Config{Provider: ProviderSoftware, JWKSRefresh: time.Minute, JWKSTTL: time.Minute},
		},
		{
			name:    "vault without address",
			cfg:     Config{Provider: ProviderVault, JWKSRefresh: time.Minute, JWKSTTL: time.Minute},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "hsm", JWKSRefresh: time.Minute, JWKSTTL: time.Minute},
			wantErr: true,
		},
		{
			name:    "zero ttl",
			cfg:     Config{Provider: ProviderSoftware, JWKSRefresh: time.Minute},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("JOSE_JWKS_REFRESH", "soon")
	_, err := Load()
	require.Error(t, err)

	require.Panics(t, func() { MustLoad() })
}
