package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/resources"
)

// FinalizeOrder submits the DER encoded CSR to the order's finalize URL
// once the order is "ready", polls the order until the server reports
// it "valid", and downloads the issued certificate chain. The returned
// bytes are the PEM chain exactly as served by the CA: leaf first,
// issuer chain after.
//
// Rejections are surfaced as acme.FinalizationError with the server's
// problem detail. The challenge must have been validated first; an
// order that never leaves "pending" fails when the polling budget in
// cfg runs out.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) FinalizeOrder(ctx context.Context, order *resources.Order, csrDER []byte, cfg PollConfig) ([]byte, error) {
	if order == nil || order.Finalize == "" {
		return nil, fmt.Errorf("finalizeOrder: order must not be nil and must have a finalize URL")
	}
	cfg = cfg.withDefaults()

	// The order transitions to "ready" once its authorizations are valid.
	if err := c.pollOrder(ctx, order, cfg, acme.STATUS_READY); err != nil {
		return nil, err
	}

	req := struct {
		CSR string `json:"csr"`
	}{
		CSR: base64.RawURLEncoding.EncodeToString(csrDER),
	}
	reqBody, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	resp, err := c.postJWS(ctx, "finalizeOrder", order.Finalize, reqBody, nil)
	if err != nil {
		var protoErr *acme.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, &acme.FinalizationError{
				OrderURL: order.ID,
				Reason:   protoErr.Problem.String(),
			}
		}
		return nil, err
	}

	if err := json.Unmarshal(resp.RespBody, order); err != nil {
		return nil, fmt.Errorf("finalizeOrder: server returned invalid JSON: %s", err)
	}
	log.Printf("Finalized order %q, waiting for issuance\n", order.ID)

	// Issuance is asynchronous: the order sits in "processing" until the
	// certificate URL appears alongside the "valid" status.
	if err := c.pollOrder(ctx, order, cfg, acme.STATUS_VALID); err != nil {
		return nil, err
	}

	if order.Certificate == "" {
		return nil, &acme.FinalizationError{
			OrderURL: order.ID,
			Reason:   "order is valid but the server provided no certificate URL",
		}
	}

	certResp, err := c.postAsGet(ctx, "downloadCertificate", order.Certificate)
	if err != nil {
		return nil, err
	}
	log.Printf("Downloaded certificate chain from %q\n", order.Certificate)
	return certResp.RespBody, nil
}

// pollOrder refreshes the order until it reaches wantStatus. An
// "invalid" order is a definitive rejection; running out the polling
// budget is reported the same way, as a FinalizationError, since order
// status only stalls when something upstream already went wrong.
func (c *Client) pollOrder(ctx context.Context, order *resources.Order, cfg PollConfig, wantStatus string) error {
	for waited := time.Duration(0); ; waited += cfg.Interval {
		if order.Status == wantStatus {
			return nil
		}
		// "valid" satisfies a wait for "ready": a reused authorization can
		// skip the ready state entirely.
		if wantStatus == acme.STATUS_READY && order.Status == acme.STATUS_VALID {
			return nil
		}
		if order.Status == acme.STATUS_INVALID {
			return &acme.FinalizationError{
				OrderURL: order.ID,
				Reason:   "order became invalid",
			}
		}

		if waited+cfg.Interval > cfg.MaxWait {
			return &acme.FinalizationError{
				OrderURL: order.ID,
				Reason: fmt.Sprintf("order status still %q after %s, wanted %q",
					order.Status, cfg.MaxWait, wantStatus),
			}
		}
		if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
			return err
		}
		if err := c.UpdateOrder(ctx, order); err != nil {
			return err
		}
	}
}
