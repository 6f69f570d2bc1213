package acme

import "fmt"

// Problem is an RFC 7807 problem document returned by the server to
// describe a request or validation failure.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}

// String renders the problem the way it should be surfaced to the
// operator: the server's detail, falling back to the type URN.
func (p *Problem) String() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s (%s)", p.Detail, p.Type)
	}
	return p.Type
}

// IsBadNonce returns true if the problem indicates a stale nonce was
// rejected by the server.
func (p *Problem) IsBadNonce() bool {
	return p != nil && p.Type == BAD_NONCE_PROBLEM
}
