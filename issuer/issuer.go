// Package issuer drives the end-to-end manual DNS-01 issuance state
// machine: account, order, authorization, challenge, operator
// confirmation, validation, finalization, download.
package issuer

import (
	"context"
	"crypto"
	"fmt"
	"log"

	"github.com/handcert/handcert/acme"
	acmeclient "github.com/handcert/handcert/acme/client"
	"github.com/handcert/handcert/acme/dns01"
	"github.com/handcert/handcert/acme/keys"
	"github.com/handcert/handcert/acme/resources"
)

// State identifies where in the issuance pipeline an Orchestrator is.
type State string

const (
	StateStart                 State = "Start"
	StateAccountCreated        State = "AccountCreated"
	StateOrderCreated          State = "OrderCreated"
	StateAuthorizationFetched  State = "AuthorizationFetched"
	StateChallengeSurfaced     State = "ChallengeSurfaced"
	StateAwaitingConfirmation  State = "AwaitingOperatorConfirmation"
	StateValidationRequested   State = "ValidationRequested"
	StateValidating            State = "Validating"
	StateValidated             State = "Validated"
	StateFinalizing            State = "Finalizing"
	StateIssued                State = "Issued"
	StateFailed                State = "Failed"
)

// Config is the issuance record consumed by an Orchestrator. It is
// loaded once by the caller and passed in by value; the orchestrator
// reads no ambient state.
type Config struct {
	// Domain is the single name the certificate will cover. It may carry
	// a leading wildcard marker ("*.example.com").
	Domain string
	// NotifyEmail is the optional account contact address.
	NotifyEmail string
	// PFXPassword, when not empty, requests the password-protected PKCS#12
	// bundle artifact.
	PFXPassword string
	// CSR subject fields.
	Country  string
	Province string
	Locality string
	// KeyType selects the algorithm for both generated keys ("ecdsa" or
	// "rsa"). Empty means "ecdsa".
	KeyType string
	// Poll bounds the validation and finalization polling loops.
	Poll acmeclient.PollConfig
}

func (c *Config) validate() error {
	if c.Domain == "" {
		return &acme.ConfigError{Field: "domain", Reason: "must not be empty"}
	}
	if c.KeyType == "" {
		c.KeyType = "ecdsa"
	}
	return nil
}

// Instructions is what the operator must do before validation can
// start: publish a TXT record with the given name and value.
type Instructions struct {
	Domain      string
	RecordName  string
	RecordValue string
}

// Prompter surfaces the DNS instructions to the operator and blocks
// until the operator confirms the record is published. There is no
// timeout: the wait is an intentional, user-controlled suspension
// point, cancellable only through the context. A false return without
// error means the operator declined.
type Prompter interface {
	Confirm(ctx context.Context, instr Instructions) (bool, error)
}

// Client is the subset of the ACME transport client the orchestrator
// drives. *acmeclient.Client satisfies it.
type Client interface {
	CreateAccount(ctx context.Context, acct *resources.Account) error
	CreateOrder(ctx context.Context, order *resources.Order) error
	FetchAuthorization(ctx context.Context, authzURL string) (*resources.Authorization, error)
	RequestValidation(ctx context.Context, chall *resources.Challenge) error
	PollChallenge(ctx context.Context, chall *resources.Challenge, cfg acmeclient.PollConfig) error
	FinalizeOrder(ctx context.Context, order *resources.Order, csrDER []byte, cfg acmeclient.PollConfig) ([]byte, error)
}

var _ Client = (*acmeclient.Client)(nil)

// PropagationCheck reports whether the expected TXT value is visible at
// the given FQDN yet. Advisory only.
type PropagationCheck func(fqdn, value string) (bool, error)

// Result is the outcome of a successful run.
type Result struct {
	// Domain the certificate covers.
	Domain string
	// ChainPEM is the PEM chain as served by the CA: leaf first.
	ChainPEM []byte
	// CertificateKey is the private key the certificate was issued for.
	// It never left the process.
	CertificateKey crypto.Signer
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPropagationCheck installs an advisory TXT lookup run after the
// operator confirms and before validation is requested. A negative
// result only logs a warning; the CA's verdict is authoritative.
func WithPropagationCheck(check PropagationCheck) Option {
	return func(o *Orchestrator) {
		o.check = check
	}
}

// Orchestrator executes one issuance run. It is single use: a failed
// run leaves the orchestrator in StateFailed and a fresh run (with
// a fresh account key) requires a new Orchestrator. Orchestrators share
// no state, so independent runs for different domains may execute
// concurrently, each with its own Client.
type Orchestrator struct {
	client   Client
	prompter Prompter
	check    PropagationCheck
	cfg      Config

	state   State
	failure error
}

// New builds an Orchestrator for one issuance run.
func New(client Client, prompter Prompter, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil || prompter == nil {
		return nil, fmt.Errorf("issuer: client and prompter must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		client:   client,
		prompter: prompter,
		cfg:      cfg,
		state:    StateStart,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Err returns the failure reason after a run ends in StateFailed.
func (o *Orchestrator) Err() error {
	return o.failure
}

func (o *Orchestrator) fail(err error) error {
	o.state = StateFailed
	o.failure = err
	return err
}

// Run executes the state machine to completion. Every network-touching
// transition is fatal on error: nothing is retried here beyond the
// transport's own single stale-nonce retry, and a failed run requires
// a fresh process invocation since neither the account nor the order
// are persisted.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if o.state != StateStart {
		return nil, fmt.Errorf("issuer: orchestrator already ran (state %q)", o.state)
	}

	// One account key per run, never reused.
	accountKey, err := keys.NewSigner(o.cfg.KeyType)
	if err != nil {
		return nil, o.fail(err)
	}

	acct, err := resources.NewAccount(o.cfg.NotifyEmail, accountKey)
	if err != nil {
		return nil, o.fail(err)
	}
	if err := o.client.CreateAccount(ctx, acct); err != nil {
		return nil, o.fail(err)
	}
	o.state = StateAccountCreated

	order := &resources.Order{
		Identifiers: []resources.Identifier{
			{Type: "dns", Value: o.cfg.Domain},
		},
	}
	if err := o.client.CreateOrder(ctx, order); err != nil {
		return nil, o.fail(err)
	}
	o.state = StateOrderCreated

	if len(order.Authorizations) == 0 {
		return nil, o.fail(fmt.Errorf("order %q has no authorizations", order.ID))
	}
	// Single-domain scope: only the first authorization is used.
	authz, err := o.client.FetchAuthorization(ctx, order.Authorizations[0])
	if err != nil {
		return nil, o.fail(err)
	}
	o.state = StateAuthorizationFetched

	chall, ok := authz.DNSChallenge()
	if !ok {
		return nil, o.fail(&acme.UnsupportedChallengeError{
			Identifier: authz.Identifier.Value,
			Offered:    authz.ChallengeTypes(),
		})
	}

	instr := Instructions{
		Domain:      o.cfg.Domain,
		RecordName:  dns01.RecordName(o.cfg.Domain),
		RecordValue: dns01.RecordValue(accountKey, chall.Token),
	}
	o.state = StateChallengeSurfaced

	// Blocks until the operator has published the record. No timeout by
	// design; cancelling ctx is the only way out.
	confirmed, err := o.prompter.Confirm(ctx, instr)
	if err != nil {
		return nil, o.fail(err)
	}
	if !confirmed {
		return nil, o.fail(fmt.Errorf("operator declined to continue"))
	}
	o.state = StateAwaitingConfirmation

	if o.check != nil {
		found, err := o.check(instr.RecordName+".", instr.RecordValue)
		switch {
		case err != nil:
			log.Printf("TXT propagation lookup failed (%s), continuing anyway\n", err)
		case !found:
			log.Printf("TXT record for %q not visible yet, the CA may still see it - continuing\n", instr.RecordName)
		default:
			log.Printf("TXT record for %q is visible\n", instr.RecordName)
		}
	}

	if err := o.client.RequestValidation(ctx, chall); err != nil {
		return nil, o.fail(err)
	}
	o.state = StateValidationRequested

	o.state = StateValidating
	if err := o.client.PollChallenge(ctx, chall, o.cfg.Poll); err != nil {
		return nil, o.fail(err)
	}
	o.state = StateValidated

	// One certificate key per run, distinct from the account key and
	// never transmitted to the CA.
	certKey, err := keys.NewSigner(o.cfg.KeyType)
	if err != nil {
		return nil, o.fail(err)
	}

	csrDER, _, err := acmeclient.CSR(acmeclient.Subject{
		Country:      o.cfg.Country,
		Province:     o.cfg.Province,
		Locality:     o.cfg.Locality,
		Organization: dns01.StripWildcard(o.cfg.Domain),
		CommonName:   o.cfg.Domain,
	}, o.cfg.Domain, certKey)
	if err != nil {
		return nil, o.fail(err)
	}
	o.state = StateFinalizing

	chainPEM, err := o.client.FinalizeOrder(ctx, order, csrDER, o.cfg.Poll)
	if err != nil {
		return nil, o.fail(err)
	}
	o.state = StateIssued

	return &Result{
		Domain:         o.cfg.Domain,
		ChainPEM:       chainPEM,
		CertificateKey: certKey,
	}, nil
}
