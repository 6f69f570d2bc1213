package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/handcert/handcert/acme"
	acmenet "github.com/handcert/handcert/net"
)

// Nonce satisfies the JWS "NonceSource" interface. Nonces are single
// use: the cached value is consumed by the signing operation and the
// cache is cleared. The cache must be filled (from the Replay-Nonce
// header of the most recent response, or from the new-nonce endpoint
// via ensureNonce) before signing starts - Nonce itself performs no
// network traffic.
func (c *Client) Nonce() (string, error) {
	if c.nonce == "" {
		return "", errors.New("no nonce available for signing")
	}
	n := c.nonce
	c.nonce = ""
	return n, nil
}

// ensureNonce makes sure a fresh nonce is cached for the next signing
// operation, fetching one from the ACME server's new-nonce endpoint if
// the cache is empty.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) ensureNonce(ctx context.Context) error {
	if c.nonce != "" {
		return nil
	}

	nonceURL, err := c.endpointURL(ctx, acme.NEW_NONCE_ENDPOINT)
	if err != nil {
		return err
	}

	resp, err := c.net.HeadURL(ctx, nonceURL)
	if err != nil {
		return err
	}

	if code := resp.Response.StatusCode; code != http.StatusOK && code != http.StatusNoContent {
		return fmt.Errorf("%q returned HTTP status %d, expected %d",
			acme.NEW_NONCE_ENDPOINT, code, http.StatusOK)
	}

	nonce := resp.Response.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return fmt.Errorf("%q returned no %q header value",
			acme.NEW_NONCE_ENDPOINT, acme.REPLAY_NONCE_HEADER)
	}

	c.nonce = nonce
	return nil
}

// captureNonce refills the nonce cache from a response's Replay-Nonce
// header. Every signed request consumes the cached nonce, so capturing
// the replacement from the same exchange keeps a constant supply
// without extra new-nonce round trips.
func (c *Client) captureNonce(resp *acmenet.NetResponse) {
	if resp == nil || resp.Response == nil {
		return
	}
	if nonce := resp.Response.Header.Get(acme.REPLAY_NONCE_HEADER); nonce != "" {
		c.nonce = nonce
	}
}
