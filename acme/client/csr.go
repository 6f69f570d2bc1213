package client

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"

	"github.com/handcert/handcert/acme"
)

// Subject holds the distinguished name fields for a certificate
// signing request. Empty fields are omitted from the CSR.
type Subject struct {
	Country            string
	Province           string
	Locality           string
	Organization       string
	OrganizationalUnit string
	CommonName         string
}

func (s Subject) pkixName() pkix.Name {
	name := pkix.Name{CommonName: s.CommonName}
	if s.Country != "" {
		name.Country = []string{s.Country}
	}
	if s.Province != "" {
		name.Province = []string{s.Province}
	}
	if s.Locality != "" {
		name.Locality = []string{s.Locality}
	}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}
	if s.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{s.OrganizationalUnit}
	}
	return name
}

// CSR produces a certificate signing request for the given domain,
// signed by the certificate private key. The signer must be the
// certificate key, never the account key (see RFC 8555 section 11.1).
// It returns the DER encoding (what order finalization submits) and
// the PEM encoding (for operator inspection).
func CSR(subject Subject, domain string, signer crypto.Signer) ([]byte, string, error) {
	if domain == "" {
		return nil, "", fmt.Errorf("csr: no domain specified")
	}
	if subject.CommonName == "" {
		subject.CommonName = domain
	}

	template := x509.CertificateRequest{
		Subject:  subject.pkixName(),
		DNSNames: []string{domain},
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &template, signer)
	if err != nil {
		return nil, "", &acme.CryptoError{Op: "create CSR", Err: err}
	}

	csrPEM := pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE REQUEST", Bytes: csrDER,
	})

	return csrDER, string(csrPEM), nil
}
