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

// CreateOrder creates the given Order resource with the ACME server. If
// the operation is successful the Order's ID field is populated with
// the value of the reply's Location header and the body's fields
// (status, authorization URLs, finalize URL) are filled in.
//
// For more information on Order creation see "Applying for Certificate
// Issuance" in RFC 8555:
// https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) CreateOrder(ctx context.Context, order *resources.Order) error {
	if c.AccountID() == "" {
		return fmt.Errorf("createOrder: account has not been created")
	}

	req := struct {
		Identifiers []resources.Identifier `json:"identifiers"`
	}{
		Identifiers: order.Identifiers,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return err
	}

	newOrderURL, err := c.endpointURL(ctx, acme.NEW_ORDER_ENDPOINT)
	if err != nil {
		return err
	}

	resp, err := c.postJWS(ctx, "createOrder", newOrderURL, reqBody, nil)
	if err != nil {
		return err
	}

	if resp.Response.StatusCode != http.StatusCreated {
		return &acme.ProtocolError{
			Op:     "createOrder",
			Status: resp.Response.StatusCode,
			Problem: &acme.Problem{
				Detail: fmt.Sprintf("expected status %d creating order", http.StatusCreated),
			},
		}
	}

	locHeader := resp.Response.Header.Get("Location")
	if locHeader == "" {
		return fmt.Errorf("createOrder: server returned response with no Location header")
	}

	if err := json.Unmarshal(resp.RespBody, order); err != nil {
		return fmt.Errorf("createOrder: server returned invalid JSON: %s", err)
	}

	order.ID = locHeader
	c.Account.Orders = append(c.Account.Orders, order.ID)
	log.Printf("Created new order with ID %q\n", order.ID)
	return nil
}

// UpdateOrder refreshes a given Order by fetching its ID URL from the
// ACME server with a POST-as-GET request. The Order is mutated in
// place. Calling UpdateOrder is required to synchronize an Order's
// Status field with the server-side representation.
func (c *Client) UpdateOrder(ctx context.Context, order *resources.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("updateOrder: order must not be nil and must have an ID")
	}

	resp, err := c.postAsGet(ctx, "updateOrder", order.ID)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.RespBody, order); err != nil {
		return fmt.Errorf("updateOrder: server returned invalid JSON: %s", err)
	}
	return nil
}

// FetchAuthorization fetches the Authorization at the given URL with
// a POST-as-GET request.
func (c *Client) FetchAuthorization(ctx context.Context, authzURL string) (*resources.Authorization, error) {
	resp, err := c.postAsGet(ctx, "fetchAuthorization", authzURL)
	if err != nil {
		return nil, err
	}

	authz := &resources.Authorization{}
	if err := json.Unmarshal(resp.RespBody, authz); err != nil {
		return nil, fmt.Errorf("fetchAuthorization: server returned invalid JSON: %s", err)
	}
	authz.ID = authzURL
	return authz, nil
}
