package client

import (
	"crypto"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/handcert/handcert/acme/keys"
)

// SigningOptions allows specifying signature related options for
// a Sign call.
type SigningOptions struct {
	// If true, embed the public key as a JWK in the signed JWS instead of
	// using a KeyID header. Required for the NewAccount endpoint, where no
	// account URL exists yet. Mutually exclusive with a non-empty KeyID.
	EmbedKey bool
	// The JWS Key ID header value identifying the ACME account. If empty
	// the client Account's ID is used.
	KeyID string
	// The private key used to sign the JWS. If nil the client Account's
	// key is used.
	Signer crypto.Signer
	// NonceSource provides the Replay-Nonce header value for the produced
	// JWS. If nil the Client itself is used.
	NonceSource jose.NonceSource
}

// validate checks that the SigningOptions are sensible after defaults
// have been populated.
func (opts *SigningOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return errors.New("SigningOptions validate: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return errors.New("SigningOptions validate: you must specify a KeyID or EmbedKey")
	}
	if opts.NonceSource == nil {
		return errors.New("SigningOptions validate: you must specify a NonceSource")
	}
	if opts.Signer == nil {
		return errors.New("SigningOptions validate: you must specify a private key")
	}
	return nil
}

// SignResult holds the input and output from a Sign operation.
type SignResult struct {
	// The url argument given to Sign.
	InputURL string
	// The data argument given to Sign.
	InputData []byte
	// The JWS in serialized form, ready to POST.
	SerializedJWS []byte
}

// Sign produces a SignResult by signing the provided data (with
// a protected "url" header) according to the SigningOptions provided.
// If no Signer is specified the client Account's key is used. If the
// options request a KeyID header but name none, the Account's ID is
// used.
func (c *Client) Sign(url string, data []byte, opts *SigningOptions) (*SignResult, error) {
	if opts == nil {
		opts = &SigningOptions{}
	}

	if opts.Signer == nil {
		if c.Account == nil {
			return nil, errors.New("sign: no Account registered and no Signer in SigningOptions")
		}
		opts.Signer = c.Account.Signer
	}

	if !opts.EmbedKey && opts.KeyID == "" {
		if c.AccountID() == "" {
			return nil, errors.New("sign: no Account ID available for the JWS KeyID header")
		}
		opts.KeyID = c.Account.ID
	}

	if opts.NonceSource == nil {
		opts.NonceSource = c
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.EmbedKey {
		return signEmbedded(url, data, *opts)
	}
	return signKeyID(url, data, *opts)
}

func signEmbedded(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	signingKey := jose.SigningKey{
		Key:       opts.Signer,
		Algorithm: keys.SigAlgForKey(opts.Signer),
	}

	signer, err := jose.NewSigner(signingKey, &jose.SignerOptions{
		NonceSource: opts.NonceSource,
		EmbedJWK:    true,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	})
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data)
}

func signKeyID(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	if opts.KeyID == "" {
		return nil, fmt.Errorf("sign: empty KeyID")
	}

	signerKey := keys.SigningKeyForSigner(opts.Signer, opts.KeyID)

	joseOpts := &jose.SignerOptions{
		NonceSource: opts.NonceSource,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	}

	signer, err := jose.NewSigner(signerKey, joseOpts)
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data)
}

func sign(signer jose.Signer, url string, data []byte) (*SignResult, error) {
	signed, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}

	return &SignResult{
		InputURL:      url,
		InputData:     data,
		SerializedJWS: []byte(signed.FullSerialize()),
	}, nil
}
