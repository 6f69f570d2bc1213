// Package keys offers utility functions for working with
// crypto.Signers, JWS, JWKs and PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/handcert/handcert/acme"
)

// SigAlgForKey returns the JWS signature algorithm matching the
// signer's key type.
func SigAlgForKey(signer crypto.Signer) jose.SignatureAlgorithm {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return jose.ES256
	case *rsa.PrivateKey:
		return jose.RS256
	}
	return "unknown"
}

func algForKey(signer crypto.Signer) string {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return "ECDSA"
	case *rsa.PrivateKey:
		return "RSA"
	}
	return "unknown"
}

// JWKForSigner returns the public JWK for the given signer's keypair.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       signer.Public(),
		Algorithm: algForKey(signer),
	}
}

// SigningKeyForSigner wraps the signer in a jose.SigningKey carrying
// the given JWS key ID, for requests authenticated by account URL.
func SigningKeyForSigner(signer crypto.Signer, keyID string) jose.SigningKey {
	jwk := jose.JSONWebKey{
		Key:       signer,
		Algorithm: algForKey(signer),
		KeyID:     keyID,
	}
	return jose.SigningKey{
		Key:       jwk,
		Algorithm: SigAlgForKey(signer),
	}
}

// JWKThumbprintBytes returns the raw SHA-256 JWK thumbprint of the
// signer's public key. See RFC 7638.
func JWKThumbprintBytes(signer crypto.Signer) []byte {
	jwk := JWKForSigner(signer)
	thumbBytes, _ := jwk.Thumbprint(crypto.SHA256)
	return thumbBytes
}

// JWKThumbprint returns the base64url encoded SHA-256 JWK thumbprint of
// the signer's public key.
func JWKThumbprint(signer crypto.Signer) string {
	return base64.RawURLEncoding.EncodeToString(JWKThumbprintBytes(signer))
}

// KeyAuth constructs the key authorization binding a challenge token to
// the account keypair: token || "." || base64url(SHA-256 thumbprint).
//
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuth(signer crypto.Signer, token string) string {
	return fmt.Sprintf("%s.%s", token, JWKThumbprint(signer))
}

// SignerToPEM serializes the signer's private key in PEM form.
func SignerToPEM(signer crypto.Signer) (string, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = fmt.Errorf("unknown key type: %T", k)
	}
	if err != nil {
		return "", &acme.CryptoError{Op: "marshal private key", Err: err}
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}

// NewSigner generates a fresh random keypair of the given type ("ecdsa"
// for P-256 or "rsa" for 2048 bit). Each call produces an independent
// key; the account key and the certificate key must never be shared.
func NewSigner(keyType string) (crypto.Signer, error) {
	var randKey crypto.Signer
	var err error
	switch keyType {
	case "ecdsa":
		randKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "rsa":
		randKey, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		err = fmt.Errorf("unknown key type: %q", keyType)
	}
	if err != nil {
		return nil, &acme.CryptoError{Op: "generate " + keyType + " key", Err: err}
	}
	return randKey, nil
}
