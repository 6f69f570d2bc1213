// Package resources provides types for representing and interacting
// with ACME protocol resources.
package resources

import (
	"crypto"
	"fmt"
	"net/mail"

	"github.com/handcert/handcert/acme"
)

// Account holds information related to a single ACME Account resource.
// If the account has an empty ID it has not yet been created
// server-side with the ACME server using the client.CreateAccount
// function.
//
// The ID field holds the server assigned Account ID that is assigned at
// the time of account creation and used as the JWS KeyID for
// authenticating ACME requests with the Account's registered keypair.
//
// The Signer field holds the account's private key. It is generated
// fresh for every run and never persisted: each invocation of the
// program registers a brand new account.
type Account struct {
	// The server assigned Account ID. This is used for the JWS KeyID when
	// authenticating ACME requests using the Account's registered keypair.
	ID string
	// Slice of "mailto://" Contact addresses for the account.
	Contact []string
	// The private key used for the ACME account's keypair.
	Signer crypto.Signer
	// URLs for Order resources the Account created with the ACME server.
	Orders []string
}

// String returns the Account's ID or an empty string if it has not been
// created with the ACME server.
func (a Account) String() string {
	return a.ID
}

// NewAccount creates an ACME account in-memory. *Important:* the
// created Account is *not* registered with the ACME server until it is
// explicitly "created" server-side using a Client instance's
// CreateAccount function.
//
// The email argument is validated with net/mail; a malformed address is
// reported as an acme.ConfigError before any network traffic happens.
// An empty email is allowed and results in an account with no contact.
//
// The signer argument must be the account's freshly generated private
// key.
func NewAccount(email string, signer crypto.Signer) (*Account, error) {
	if signer == nil {
		return nil, fmt.Errorf("NewAccount: signer must not be nil")
	}

	var contacts []string
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return nil, &acme.ConfigError{Field: "notifyEmail", Reason: err.Error()}
		}
		contacts = append(contacts, "mailto:"+addr.Address)
	}

	return &Account{
		Contact: contacts,
		Signer:  signer,
	}, nil
}
