package issuer

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handcert/handcert/acme"
	acmeclient "github.com/handcert/handcert/acme/client"
	"github.com/handcert/handcert/acme/resources"
)

// fakeClient scripts the ACME transport layer. It records the method
// call order and captures the CSR handed to finalization.
type fakeClient struct {
	calls []string

	challengeTypes []string
	token          string

	createAccountErr error
	createOrderErr   error
	pollErr          error
	finalizeErr      error

	chainPEM []byte
	csrDER   []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		challengeTypes: []string{"http-01", "dns-01"},
		token:          "test-token",
		chainPEM:       []byte("-----BEGIN CERTIFICATE-----\nfake\n-----END CERTIFICATE-----\n"),
	}
}

func (f *fakeClient) CreateAccount(_ context.Context, acct *resources.Account) error {
	f.calls = append(f.calls, "CreateAccount")
	if f.createAccountErr != nil {
		return f.createAccountErr
	}
	acct.ID = "https://ca.invalid/acct/1"
	return nil
}

func (f *fakeClient) CreateOrder(_ context.Context, order *resources.Order) error {
	f.calls = append(f.calls, "CreateOrder")
	if f.createOrderErr != nil {
		return f.createOrderErr
	}
	order.ID = "https://ca.invalid/order/1"
	order.Status = acme.STATUS_PENDING
	order.Authorizations = []string{"https://ca.invalid/authz/1"}
	order.Finalize = "https://ca.invalid/order/1/finalize"
	return nil
}

func (f *fakeClient) FetchAuthorization(_ context.Context, authzURL string) (*resources.Authorization, error) {
	f.calls = append(f.calls, "FetchAuthorization")
	authz := &resources.Authorization{
		ID:         authzURL,
		Status:     acme.STATUS_PENDING,
		Identifier: resources.Identifier{Type: "dns", Value: "example.com"},
	}
	for i, typ := range f.challengeTypes {
		authz.Challenges = append(authz.Challenges, resources.Challenge{
			Type:   typ,
			URL:    fmt.Sprintf("https://ca.invalid/chall/%d", i),
			Token:  f.token,
			Status: acme.STATUS_PENDING,
		})
	}
	return authz, nil
}

func (f *fakeClient) RequestValidation(_ context.Context, chall *resources.Challenge) error {
	f.calls = append(f.calls, "RequestValidation")
	chall.Status = acme.STATUS_PROCESSING
	return nil
}

func (f *fakeClient) PollChallenge(_ context.Context, chall *resources.Challenge, _ acmeclient.PollConfig) error {
	f.calls = append(f.calls, "PollChallenge")
	if f.pollErr != nil {
		return f.pollErr
	}
	chall.Status = acme.STATUS_VALID
	return nil
}

func (f *fakeClient) FinalizeOrder(_ context.Context, order *resources.Order, csrDER []byte, _ acmeclient.PollConfig) ([]byte, error) {
	f.calls = append(f.calls, "FinalizeOrder")
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	f.csrDER = csrDER
	order.Status = acme.STATUS_VALID
	return f.chainPEM, nil
}

// fakePrompter answers the confirmation prompt and captures the
// instructions shown to the operator.
type fakePrompter struct {
	confirm bool
	err     error
	instr   *Instructions
}

func (p *fakePrompter) Confirm(_ context.Context, instr Instructions) (bool, error) {
	p.instr = &instr
	return p.confirm, p.err
}

func TestRunIssuesCertificate(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{
		Domain:      "example.com",
		NotifyEmail: "admin@example.com",
		Country:     "GB",
		Locality:    "London",
	})
	require.NoError(t, err)
	assert.Equal(t, StateStart, o.State())

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateIssued, o.State())
	assert.NoError(t, o.Err())
	assert.Equal(t, "example.com", result.Domain)
	assert.Equal(t, client.chainPEM, result.ChainPEM)
	require.NotNil(t, result.CertificateKey)

	require.NotNil(t, prompter.instr)
	assert.Equal(t, "_acme-challenge.example.com", prompter.instr.RecordName)
	// The record value is a base64url SHA-256 digest: 43 characters, no
	// padding.
	assert.Len(t, prompter.instr.RecordValue, 43)
	assert.NotContains(t, prompter.instr.RecordValue, "=")

	assert.Equal(t, []string{
		"CreateAccount",
		"CreateOrder",
		"FetchAuthorization",
		"RequestValidation",
		"PollChallenge",
		"FinalizeOrder",
	}, client.calls)

	csr, err := x509.ParseCertificateRequest(client.csrDER)
	require.NoError(t, err)
	assert.Equal(t, "example.com", csr.Subject.CommonName)
	assert.Equal(t, []string{"example.com"}, csr.DNSNames)
	assert.Equal(t, []string{"GB"}, csr.Subject.Country)
	assert.Equal(t, []string{"London"}, csr.Subject.Locality)

	// The CSR key is the certificate key, not the account key.
	assert.True(t, csr.PublicKey.(interface{ Equal(k crypto.PublicKey) bool }).Equal(result.CertificateKey.Public()))
}

func TestRunWildcardDomain(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{Domain: "*.example.com"})
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "*.example.com", result.Domain)

	// Wildcard validation happens at the base domain's record name.
	require.NotNil(t, prompter.instr)
	assert.Equal(t, "_acme-challenge.example.com", prompter.instr.RecordName)

	csr, err := x509.ParseCertificateRequest(client.csrDER)
	require.NoError(t, err)
	assert.Equal(t, "*.example.com", csr.Subject.CommonName)
	assert.Equal(t, []string{"*.example.com"}, csr.DNSNames)
	assert.Equal(t, []string{"example.com"}, csr.Subject.Organization)
}

func TestRunNoDNSChallengeOffered(t *testing.T) {
	client := newFakeClient()
	client.challengeTypes = []string{"http-01", "tls-alpn-01"}
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{Domain: "example.com"})
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateFailed, o.State())

	var unsupported *acme.UnsupportedChallengeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "example.com", unsupported.Identifier)
	assert.Equal(t, []string{"http-01", "tls-alpn-01"}, unsupported.Offered)

	// The operator must never be prompted when there is nothing to
	// publish.
	assert.Nil(t, prompter.instr)
}

func TestRunOperatorDeclines(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: false}

	o, err := New(client, prompter, Config{Domain: "example.com"})
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateFailed, o.State())
	assert.Contains(t, err.Error(), "operator declined")

	assert.NotContains(t, client.calls, "RequestValidation")
	assert.NotContains(t, client.calls, "FinalizeOrder")
}

func TestRunValidationFailureCarriesDetail(t *testing.T) {
	detail := "Incorrect TXT record \"bogus\" found at _acme-challenge.example.com"
	client := newFakeClient()
	client.pollErr = &acme.ValidationFailedError{
		ChallengeURL: "https://ca.invalid/chall/1",
		Detail:       detail,
	}
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{Domain: "example.com"})
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StateFailed, o.State())

	var failed *acme.ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, detail, failed.Detail)
	assert.ErrorIs(t, o.Err(), err)
}

func TestRunValidationTimeout(t *testing.T) {
	client := newFakeClient()
	client.pollErr = &acme.ValidationTimeoutError{
		ChallengeURL: "https://ca.invalid/chall/1",
		MaxWait:      "1m0s",
	}
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{Domain: "example.com"})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, o.State())

	var timeout *acme.ValidationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.NotContains(t, client.calls, "FinalizeOrder")
}

func TestRunPropagationCheckIsAdvisory(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: true}

	var checkedFQDN, checkedValue string
	check := func(fqdn, value string) (bool, error) {
		checkedFQDN = fqdn
		checkedValue = value
		return false, errors.New("lookup timed out")
	}

	o, err := New(client, prompter, Config{Domain: "example.com"}, WithPropagationCheck(check))
	require.NoError(t, err)

	// A failing lookup must not stop the run: the CA's verdict is
	// authoritative.
	result, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateIssued, o.State())

	assert.Equal(t, "_acme-challenge.example.com.", checkedFQDN)
	assert.Equal(t, prompter.instr.RecordValue, checkedValue)
}

func TestRunIsSingleUse(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: true}

	o, err := New(client, prompter, Config{Domain: "example.com"})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already ran")
}

func TestNewValidation(t *testing.T) {
	client := newFakeClient()
	prompter := &fakePrompter{confirm: true}

	_, err := New(client, prompter, Config{})
	var confErr *acme.ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "domain", confErr.Field)

	_, err = New(nil, prompter, Config{Domain: "example.com"})
	require.Error(t, err)

	_, err = New(client, nil, Config{Domain: "example.com"})
	require.Error(t, err)
}
