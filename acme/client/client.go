// Package client provides a low-level ACME v2 client.
package client

import (
	"net/url"
	"strings"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/resources"
	acmenet "github.com/handcert/handcert/net"
)

// LetsEncryptDirectory is the production Let's Encrypt directory URL,
// the default endpoint for issuance.
const LetsEncryptDirectory = "https://acme-v02.api.letsencrypt.org/directory"

// Client interacts with a single ACME server on behalf of a single
// Account. The Account is registered once per run with a fresh keypair
// via CreateAccount and then used to authenticate every subsequent
// request with a JSON Web Signature (JWS).
//
// The Client configures itself with the correct URLs for ACME
// operations using the directory resource accessed at DirectoryURL.
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
//
// The nonce field caches a single anti-replay nonce. Nonces are
// single-use: each signing operation consumes the cached value, and the
// cache is refilled from the Replay-Nonce header of the most recent
// response or, when empty, from the new-nonce endpoint. A Client must
// not be shared between concurrent issuance runs; each run owns its
// client and nonce cache.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// The account used to authenticate requests. Nil until CreateAccount
	// succeeds.
	Account *resources.Account
	// Print HTTP request/response dumps for every exchange.
	Verbose bool
	// The net object is used to make HTTP requests to the ACME server.
	net *acmenet.ACMENet
	// In-memory copy of the ACME server's directory object.
	directory map[string]any
	// The single-use anti-replay nonce for the next signing operation.
	nonce string
}

// Config contains configuration options provided to New when creating
// a Client instance.
type Config struct {
	// A fully qualified URL for the ACME server's directory resource.
	// Must include an HTTP/HTTPS protocol prefix.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to
	// be used as trust roots for HTTPS requests to the ACME server (e.g.
	// Pebble's test CA). If empty the system roots are used.
	CACert string
	// Print HTTP request/response dumps for every exchange.
	Verbose bool
}

// normalize validates a Config.
func (conf *Config) normalize() error {
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)

	if conf.DirectoryURL == "" {
		return &acme.ConfigError{Field: "directoryURL", Reason: "must not be empty"}
	}
	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return &acme.ConfigError{Field: "directoryURL", Reason: err.Error()}
	}
	return nil
}

// New creates a Client instance from the given Config. The server's
// directory resource is fetched lazily on first use, so New performs no
// network traffic itself.
func New(config Config) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(config.CACert)
	if err != nil {
		return nil, err
	}

	// Safe to discard the error, normalize parsed the URL already.
	dirURL, _ := url.Parse(config.DirectoryURL)

	return &Client{
		DirectoryURL: dirURL,
		Verbose:      config.Verbose,
		net:          net,
	}, nil
}

// AccountID returns the server-assigned ID of the client's account, or
// an empty string if no account has been created yet.
func (c *Client) AccountID() string {
	if c.Account == nil {
		return ""
	}
	return c.Account.ID
}
