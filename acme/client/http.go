package client

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/handcert/handcert/acme"
	acmenet "github.com/handcert/handcert/net"
)

func (c *Client) dump(resp *acmenet.NetResponse) {
	if !c.Verbose || resp == nil {
		return
	}
	log.Printf("Request:\n%s\n", resp.ReqDump)
	log.Printf("Response:\n%s\n%s\n", resp.RespDump, resp.RespBody)
}

// problemFromResponse deserializes the problem document from an error
// response. Responses whose body is not a problem document still yield
// a Problem so the raw detail reaches the operator.
func problemFromResponse(resp *acmenet.NetResponse) *acme.Problem {
	var problem acme.Problem
	if err := json.Unmarshal(resp.RespBody, &problem); err != nil || problem.Type == "" && problem.Detail == "" {
		return &acme.Problem{
			Status: resp.Response.StatusCode,
			Detail: strings.TrimSpace(string(resp.RespBody)),
		}
	}
	if problem.Status == 0 {
		problem.Status = resp.Response.StatusCode
	}
	return &problem
}

// postJWS signs the given body and POSTs it to the given URL, returning
// the response for any 2xx status. A rejection with the badNonce
// problem type is retried exactly once, silently, with a freshly
// fetched nonce; any other rejection - including a second badNonce - is
// surfaced as an acme.ProtocolError carrying the server's problem
// document. The op argument names the operation for error messages.
func (c *Client) postJWS(ctx context.Context, op string, url string, body []byte, opts *SigningOptions) (*acmenet.NetResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := c.ensureNonce(ctx); err != nil {
			return nil, err
		}

		// Options are resolved per attempt: each retry must re-sign with the
		// fresh nonce.
		attemptOpts := SigningOptions{}
		if opts != nil {
			attemptOpts = *opts
		}
		signResult, err := c.Sign(url, body, &attemptOpts)
		if err != nil {
			return nil, err
		}

		resp, err := c.net.PostURL(ctx, url, signResult.SerializedJWS)
		if err != nil {
			return nil, err
		}
		c.dump(resp)
		c.captureNonce(resp)

		if resp.Response.StatusCode < 300 {
			return resp, nil
		}

		problem := problemFromResponse(resp)
		if problem.IsBadNonce() && attempt == 0 {
			// The server's rejection carries a usable replacement nonce in its
			// Replay-Nonce header (already captured above). One silent retry.
			log.Printf("%s: server rejected a stale nonce, retrying once with a fresh one\n", op)
			continue
		}

		return nil, &acme.ProtocolError{
			Op:      op,
			Status:  resp.Response.StatusCode,
			Problem: problem,
		}
	}
}

// postAsGet fetches a resource with a POST-as-GET request: a signed JWS
// with an empty payload. RFC 8555 requires this for Order,
// Authorization, Challenge and Certificate resources.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) postAsGet(ctx context.Context, op string, url string) (*acmenet.NetResponse, error) {
	return c.postJWS(ctx, op, url, []byte{}, nil)
}
