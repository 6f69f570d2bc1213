package resources

import (
	"strings"

	"github.com/handcert/handcert/acme"
)

// The Identifier resource represents a subject identifier that can be
// included in a certificate.
//
// See:
// https://tools.ietf.org/html/rfc8555#section-7.5
// https://tools.ietf.org/html/rfc8555#section-9.7.7
//
// In practice most ACME servers only support "dns" type identifiers
// where the value specifies a fully qualified domain name.
//
// A DNS type identifier used in a new-order request is allowed to
// contain a wildcard prefix (e.g. "*."). A DNS type identifier in an
// Authorization resource is *not* allowed to contain a wildcard prefix
// and instead has the Wildcard field of the Authorization set to true
// with the identifier value represented without the "*." prefix.
type Identifier struct {
	// The Type of the Identifier value.
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

// The ACME Authorization resource represents an Account's authorization
// to issue for a specified identifier, based on interactions with
// associated Challenges.
//
// For information about the Authorization resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.4
type Authorization struct {
	// The server-assigned ID (a URL) identifying the Authorization.
	// Populated from the Order's authorization URL, not from the JSON
	// body.
	ID string `json:"-"`
	// The status of this authorization. Possible values are: "pending",
	// "valid", "invalid", "deactivated", "expired", and "revoked".
	Status string `json:"status"`
	// The identifier that the account holding this Authorization is
	// authorized to represent.
	Identifier Identifier `json:"identifier"`
	// For pending authorizations, the challenges that the client can
	// fulfill in order to prove possession of the identifier.
	Challenges []Challenge `json:"challenges"`
	// A string representing an RFC 3339 date at which time the
	// Authorization is considered expired by the server.
	Expires string `json:"expires,omitempty"`
	// True for authorizations created from a new-order request containing
	// a DNS identifier with a wildcard prefix.
	Wildcard bool `json:"wildcard,omitempty"`
}

// String returns the Authorization's server-assigned ID.
func (a Authorization) String() string {
	return a.ID
}

// DNSChallenge returns the authorization's DNS-01 challenge. When the
// server offered none the second return value is false and the caller
// cannot proceed with DNS based validation.
func (a *Authorization) DNSChallenge() (*Challenge, bool) {
	for i := range a.Challenges {
		if strings.EqualFold(a.Challenges[i].Type, acme.CHALLENGE_DNS01) {
			return &a.Challenges[i], true
		}
	}
	return nil, false
}

// ChallengeTypes returns the types of all offered challenges, for error
// reporting when no usable challenge is present.
func (a *Authorization) ChallengeTypes() []string {
	types := make([]string, len(a.Challenges))
	for i, chall := range a.Challenges {
		types[i] = chall.Type
	}
	return types
}
