package provider

import (
	"crypto"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCryptoKey(t *testing.T) {
	usages := []Usage{UsageSign}
	key := NewCryptoKey(KeyTypeSecret, Params{Name: HMAC, Hash: crypto.SHA256}, false, usages, []byte("secret"))

	usages[0] = UsageDecrypt
	require.True(t, key.Permits(UsageSign), "usages must be copied on construction")
	require.False(t, key.Permits(UsageVerify))
	require.Equal(t, KeyTypeSecret, key.Type())
	require.Equal(t, HMAC, key.Algorithm().Name)
	require.False(t, key.Extractable())
	require.Equal(t, "CryptoKey(secret, HMAC)", key.String())
	require.NotContains(t, key.String(), "secret\"")

	var nilKey *CryptoKey
	require.False(t, nilKey.Permits(UsageSign))
	require.Equal(t, "CryptoKey(nil)", nilKey.String())
}

func TestCheck(t *testing.T) {
	require.ErrorIs(t, Check(nil, UsageSign), ErrNoKey)

	key := NewCryptoKey(KeyTypePublic, Params{Name: ECDSA}, true, []Usage{UsageVerify}, nil)
	require.NoError(t, Check(key, UsageVerify))

	err := Check(key, UsageSign)
	require.ErrorIs(t, err, ErrUsageNotPermitted)

	var usageErr *UsageError
	require.True(t, errors.As(err, &usageErr))
	require.Equal(t, UsageSign, usageErr.Usage)
}
