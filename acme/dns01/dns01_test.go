package dns01

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handcert/handcert/acme/keys"
)

func TestRecordName(t *testing.T) {
	testCases := []struct {
		name     string
		domain   string
		expected string
	}{
		{
			name:     "plain domain",
			domain:   "example.com",
			expected: "_acme-challenge.example.com",
		},
		{
			name:     "wildcard domain",
			domain:   "*.example.com",
			expected: "_acme-challenge.example.com",
		},
		{
			name:     "only one wildcard marker is stripped",
			domain:   "*.*.example.com",
			expected: "_acme-challenge.*.example.com",
		},
		{
			name:     "asterisk elsewhere is preserved",
			domain:   "*.weird.*.example.com",
			expected: "_acme-challenge.weird.*.example.com",
		},
		{
			name:     "subdomain",
			domain:   "www.example.com",
			expected: "_acme-challenge.www.example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RecordName(tc.domain))
		})
	}
}

func TestRecordValueDeterministic(t *testing.T) {
	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	first := RecordValue(signer, "evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ-PCt92wr-oA")
	second := RecordValue(signer, "evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ-PCt92wr-oA")
	assert.Equal(t, first, second, "identical inputs must yield identical record values")

	other := RecordValue(signer, "another-token")
	assert.NotEqual(t, first, other, "different tokens must yield different record values")

	otherKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	assert.NotEqual(t, first, RecordValue(otherKey, "evaGxfADs6pSRb2LAv9IZf17Dt3juxGJ-PCt92wr-oA"),
		"different keys must yield different record values")
}

func TestRecordValueConstruction(t *testing.T) {
	signer, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	token := "some-token"
	keyAuth := keys.KeyAuth(signer, token)
	digest := sha256.Sum256([]byte(keyAuth))
	expected := base64.RawURLEncoding.EncodeToString(digest[:])

	assert.Equal(t, expected, RecordValue(signer, token))
	// base64url without padding, 32 byte digest.
	assert.Len(t, RecordValue(signer, token), 43)
	assert.NotContains(t, RecordValue(signer, token), "=")
}
