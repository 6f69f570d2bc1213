package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/resources"
)

// CreateAccount registers the given Account resource with the ACME
// server and makes it the client's account for all subsequent requests.
// The Account is updated with the ID returned in the response's
// Location header.
//
// This function always unconditionally agrees to the server's terms of
// service (it sends "termsOfServiceAgreed":true in every account
// creation request); surface the terms to the operator before calling
// it.
//
// For more information on account creation see
// https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) CreateAccount(ctx context.Context, acct *resources.Account) error {
	if acct.ID != "" {
		return fmt.Errorf("createAccount: account already exists under ID %q", acct.ID)
	}

	newAcctReq := struct {
		Contact   []string `json:"contact,omitempty"`
		ToSAgreed bool     `json:"termsOfServiceAgreed"`
	}{
		Contact:   acct.Contact,
		ToSAgreed: true,
	}

	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return err
	}

	newAcctURL, err := c.endpointURL(ctx, acme.NEW_ACCOUNT_ENDPOINT)
	if err != nil {
		return err
	}

	// A new account has no URL yet so the JWS embeds the public JWK
	// instead of a KeyID header.
	resp, err := c.postJWS(ctx, "createAccount", newAcctURL, reqBody, &SigningOptions{
		EmbedKey: true,
		Signer:   acct.Signer,
	})
	if err != nil {
		return err
	}

	if resp.Response.StatusCode != http.StatusCreated {
		return &acme.ProtocolError{
			Op:     "createAccount",
			Status: resp.Response.StatusCode,
			Problem: &acme.Problem{
				Detail: fmt.Sprintf("expected status %d creating account", http.StatusCreated),
			},
		}
	}

	locHeader := resp.Response.Header.Get("Location")
	if locHeader == "" {
		return fmt.Errorf("createAccount: server returned response with no Location header")
	}

	acct.ID = locHeader
	c.Account = acct
	log.Printf("Created account with ID %q\n", acct.ID)
	return nil
}
