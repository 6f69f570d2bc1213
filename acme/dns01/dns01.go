// Package dns01 computes the DNS TXT record an operator must publish
// to satisfy a DNS-01 challenge.
//
// See https://tools.ietf.org/html/rfc8555#section-8.4
package dns01

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/handcert/handcert/acme/keys"
)

// RecordPrefix is the label prepended to the domain to form the TXT
// record name.
const RecordPrefix = "_acme-challenge."

// StripWildcard removes a single leading wildcard marker ("*.") from
// a domain name. Only the leading occurrence is stripped; any other
// asterisk in the name is left alone. Authorizations for wildcard
// identifiers are validated at the base domain's record name.
func StripWildcard(domain string) string {
	return strings.TrimPrefix(domain, "*.")
}

// RecordName returns the name of the TXT record to publish for the
// given domain: "_acme-challenge." plus the domain with any leading
// wildcard marker stripped.
func RecordName(domain string) string {
	return RecordPrefix + StripWildcard(domain)
}

// RecordValue computes the TXT record value for a challenge token and
// account key: the base64url-encoded SHA-256 digest of the key
// authorization (token || "." || base64url(SHA-256(JWK thumbprint))).
// Pure and deterministic: identical token and key material always
// yield the identical value.
func RecordValue(accountKey crypto.Signer, token string) string {
	keyAuth := keys.KeyAuth(accountKey, token)
	digest := sha256.Sum256([]byte(keyAuth))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
