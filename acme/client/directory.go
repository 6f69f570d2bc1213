package client

import (
	"context"
	"encoding/json"
	"fmt"
)

func (c *Client) getDirectory(ctx context.Context) (map[string]any, error) {
	resp, err := c.net.GetURL(ctx, c.DirectoryURL.String())
	if err != nil {
		return nil, err
	}
	c.dump(resp)

	var directory map[string]any
	if err := json.Unmarshal(resp.RespBody, &directory); err != nil {
		return nil, fmt.Errorf("directory: server returned invalid JSON: %s", err)
	}

	return directory, nil
}

// Directory fetches the ACME directory resource from the ACME server
// and returns it deserialized as a map. The directory is fetched once
// and cached for the lifetime of the client.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) Directory(ctx context.Context) (map[string]any, error) {
	if c.directory == nil {
		dir, err := c.getDirectory(ctx)
		if err != nil {
			return nil, err
		}
		c.directory = dir
	}
	return c.directory, nil
}

// endpointURL looks up the URL for a specific ACME endpoint in the
// server's directory resource.
func (c *Client) endpointURL(ctx context.Context, name string) (string, error) {
	dir, err := c.Directory(ctx)
	if err != nil {
		return "", err
	}
	rawURL, ok := dir[name]
	if !ok {
		return "", fmt.Errorf("ACME server directory has no %q entry", name)
	}
	if u, ok := rawURL.(string); ok && u != "" {
		return u, nil
	}
	return "", fmt.Errorf("ACME server directory has a malformed %q entry", name)
}
