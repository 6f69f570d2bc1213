package keys

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handcert/handcert/acme"
)

func TestNewSigner(t *testing.T) {
	ecdsaKey, err := NewSigner("ecdsa")
	require.NoError(t, err)
	require.IsType(t, &ecdsa.PrivateKey{}, ecdsaKey)

	rsaKey, err := NewSigner("rsa")
	require.NoError(t, err)
	require.IsType(t, &rsa.PrivateKey{}, rsaKey)

	_, err = NewSigner("dsa")
	require.Error(t, err)
	var cryptoErr *acme.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestNewSignerFreshKeys(t *testing.T) {
	a, err := NewSigner("ecdsa")
	require.NoError(t, err)
	b, err := NewSigner("ecdsa")
	require.NoError(t, err)

	assert.NotEqual(t, JWKThumbprint(a), JWKThumbprint(b),
		"each invocation must produce an independent keypair")
}

func TestJWKThumbprint(t *testing.T) {
	signer, err := NewSigner("ecdsa")
	require.NoError(t, err)

	thumb := JWKThumbprint(signer)
	// base64url without padding over a SHA-256 digest.
	assert.Len(t, thumb, 43)
	assert.NotContains(t, thumb, "=")
	assert.Equal(t, thumb, JWKThumbprint(signer), "thumbprint must be stable")
}

func TestKeyAuth(t *testing.T) {
	signer, err := NewSigner("ecdsa")
	require.NoError(t, err)

	keyAuth := KeyAuth(signer, "token-value")
	parts := strings.SplitN(keyAuth, ".", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "token-value", parts[0])
	assert.Equal(t, JWKThumbprint(signer), parts[1])
}

func TestSignerToPEM(t *testing.T) {
	for _, keyType := range []string{"ecdsa", "rsa"} {
		t.Run(keyType, func(t *testing.T) {
			signer, err := NewSigner(keyType)
			require.NoError(t, err)

			pemStr, err := SignerToPEM(signer)
			require.NoError(t, err)

			block, rest := pem.Decode([]byte(pemStr))
			require.NotNil(t, block)
			assert.Empty(t, rest)
			assert.Contains(t, block.Type, "PRIVATE KEY")
		})
	}
}
