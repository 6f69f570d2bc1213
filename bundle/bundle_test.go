package bundle

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/keys"
)

// selfSigned builds a minimal certificate for the given key and common
// name, standing in for what the CA would issue.
func selfSigned(t *testing.T, signer crypto.Signer, commonName string, serial int64) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{commonName},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func chainPEM(certs ...*x509.Certificate) []byte {
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})...)
	}
	return out
}

func TestEncodeWithoutPassword(t *testing.T) {
	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	issuerKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	leaf := selfSigned(t, certKey, "example.com", 1)
	issuer := selfSigned(t, issuerKey, "Fake Intermediate", 2)

	artifacts, err := Encode(chainPEM(leaf, issuer), certKey, "")
	require.NoError(t, err)

	assert.Nil(t, artifacts.PFX, "no password means no PFX artifact")
	require.NotEmpty(t, artifacts.CABundle)
	require.NotEmpty(t, artifacts.Certificate)
	require.NotEmpty(t, artifacts.PrivateKey)

	// The leaf artifact holds exactly the leaf.
	block, _ := pem.Decode(artifacts.Certificate)
	require.NotNil(t, block)
	parsed, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "example.com", parsed.Subject.CommonName)

	// The CA bundle holds the issuer chain only.
	block, _ = pem.Decode(artifacts.CABundle)
	require.NotNil(t, block)
	parsed, err = x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "Fake Intermediate", parsed.Subject.CommonName)

	// The private key artifact round-trips to the certificate key.
	block, _ = pem.Decode(artifacts.PrivateKey)
	require.NotNil(t, block)
	parsedKey, err := x509.ParseECPrivateKey(block.Bytes)
	require.NoError(t, err)
	assert.True(t, parsedKey.PublicKey.Equal(certKey.Public()))
}

func TestEncodePFXRoundTrip(t *testing.T) {
	certKey, err := keys.NewSigner("rsa")
	require.NoError(t, err)
	issuerKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	leaf := selfSigned(t, certKey, "example.com", 3)
	issuer := selfSigned(t, issuerKey, "Fake Intermediate", 4)

	artifacts, err := Encode(chainPEM(leaf, issuer), certKey, "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, artifacts.PFX)

	decodedKey, decodedCert, caCerts, err := pkcs12.DecodeChain(artifacts.PFX, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, leaf.Raw, decodedCert.Raw, "PFX leaf must match the issued certificate")
	require.Len(t, caCerts, 1)
	assert.Equal(t, issuer.Raw, caCerts[0].Raw)

	decodedSigner, ok := decodedKey.(crypto.Signer)
	require.True(t, ok)
	pub, ok := decodedSigner.Public().(interface{ Equal(crypto.PublicKey) bool })
	require.True(t, ok)
	assert.True(t, pub.Equal(certKey.Public()), "PFX key must match the certificate key")

	// The wrong password must not open the bundle.
	_, _, err = pkcs12.Decode(artifacts.PFX, "wrong")
	assert.Error(t, err)
}

func TestEncodeKeyMismatch(t *testing.T) {
	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	otherKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	leaf := selfSigned(t, certKey, "example.com", 5)

	_, err = Encode(chainPEM(leaf), otherKey, "")
	require.Error(t, err)
	var encErr *acme.EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestEncodeEmptyChain(t *testing.T) {
	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)

	_, err = Encode([]byte("not pem at all"), certKey, "")
	require.Error(t, err)
	var encErr *acme.EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestEncodeLeafOnlyChain(t *testing.T) {
	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	leaf := selfSigned(t, certKey, "example.com", 6)

	artifacts, err := Encode(chainPEM(leaf), certKey, "")
	require.NoError(t, err)
	assert.Empty(t, artifacts.CABundle, "no issuers means an empty CA bundle")
	assert.NotEmpty(t, artifacts.Certificate)
}
