// Package bundle encodes an issued certificate chain and private key
// into the output artifacts: CA bundle, leaf certificate, private key,
// and an optional password-protected PKCS#12 bundle.
package bundle

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/keys"
)

// Conventional artifact suffixes. The caller supplies the base name;
// the encoder only suggests the extensions.
const (
	CABundleSuffix   = ".ca-bundle"
	CertSuffix       = ".crt"
	PrivateKeySuffix = ".private.key"
	PFXSuffix        = ".pfx"
)

// Artifacts holds the encoded output blobs. PFX is nil unless
// a password was supplied.
type Artifacts struct {
	// CABundle is the issuer chain, PEM entries concatenated.
	CABundle []byte
	// Certificate is the PEM encoded leaf certificate.
	Certificate []byte
	// PrivateKey is the PEM encoded certificate private key.
	PrivateKey []byte
	// PFX is the password-protected PKCS#12 bundle of leaf, chain and
	// key, or nil when no password was supplied.
	PFX []byte
}

// Encode splits the PEM chain served by the CA (leaf first) into the
// output artifacts. The key must be the certificate private key; a leaf
// certificate whose public key does not correspond to it is rejected
// with an acme.EncodingError. A non-empty pfxPassword additionally
// produces the PKCS#12 bundle.
func Encode(chainPEM []byte, key crypto.Signer, pfxPassword string) (*Artifacts, error) {
	certs, err := parseChain(chainPEM)
	if err != nil {
		return nil, err
	}
	leaf, issuers := certs[0], certs[1:]

	if !publicKeysMatch(leaf, key) {
		return nil, &acme.EncodingError{
			Reason: "certificate public key does not match the private key",
		}
	}

	keyPEM, err := keys.SignerToPEM(key)
	if err != nil {
		return nil, &acme.EncodingError{Reason: err.Error()}
	}

	artifacts := &Artifacts{
		CABundle:    encodeCerts(issuers),
		Certificate: encodeCerts([]*x509.Certificate{leaf}),
		PrivateKey:  []byte(keyPEM),
	}

	if pfxPassword != "" {
		pfx, err := pkcs12.Encode(rand.Reader, key, leaf, issuers, pfxPassword)
		if err != nil {
			return nil, &acme.EncodingError{Reason: "PKCS#12: " + err.Error()}
		}
		artifacts.PFX = pfx
	}

	return artifacts, nil
}

// parseChain decodes every CERTIFICATE block from the PEM chain. The
// CA serves the leaf first, the issuer chain after.
func parseChain(chainPEM []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := chainPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &acme.EncodingError{Reason: fmt.Sprintf("parsing certificate chain: %s", err)}
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, &acme.EncodingError{Reason: "chain contains no certificates"}
	}
	return certs, nil
}

func encodeCerts(certs []*x509.Certificate) []byte {
	var out strings.Builder
	for _, cert := range certs {
		out.Write(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		}))
	}
	return []byte(out.String())
}

func publicKeysMatch(cert *x509.Certificate, key crypto.Signer) bool {
	certPub, ok := cert.PublicKey.(interface {
		Equal(crypto.PublicKey) bool
	})
	if !ok {
		return false
	}
	return certPub.Equal(key.Public())
}
