// Package net provides common HTTP utilities for talking to an ACME
// server.
package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime"
)

const (
	version       = "0.1.0"
	userAgentBase = "handcert"
	locale        = "en-us"
)

// ACMENet is a thin wrapper around an http.Client that stamps requests
// with a User-Agent and captures full request/response dumps for
// verbose output.
type ACMENet struct {
	httpClient *http.Client
}

// New constructs an ACMENet. If customCABundle is not empty it must be
// a path to one or more PEM encoded CA certificates to use as trust
// roots for HTTPS requests to the ACME server (useful when testing
// against Pebble); otherwise the system roots are used.
func New(customCABundle string) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if customCABundle != "" {
		pemBundle, err := os.ReadFile(customCABundle)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		caBundle.AppendCertsFromPEM(pemBundle)
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
	// The response dumped by httputil to a printable form.
	RespDump []byte
	// The request dumped by httputil to a printable form.
	ReqDump []byte
}

// Do performs an HTTP request, returning a pointer to a NetResponse
// instance or an error. User-Agent and Accept-Language headers are
// automatically added to the request. The body of the HTTP response is
// read into the NetResponse and can not be read again.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	reqDump, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respDump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
		RespDump: respDump,
		ReqDump:  reqDump,
	}, nil
}

// HeadURL sends a HEAD request to the given URL. Used for fetching
// fresh nonces from the new-nonce endpoint.
func (c *ACMENet) HeadURL(ctx context.Context, url string) (*NetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostRequest constructs a POST request to the given URL with the given
// JOSE body.
func (c *ACMENet) PostRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/jose+json")
	return req, nil
}

// PostURL POSTs the given body to the given URL. This is a wrapper
// combining PostRequest and Do.
func (c *ACMENet) PostURL(ctx context.Context, url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetURL GETs the given URL.
func (c *ACMENet) GetURL(ctx context.Context, url string) (*NetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
