// Package acme provides ACME protocol constants and the error types
// surfaced by the issuance pipeline. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"

	// Resource status values.
	// See https://tools.ietf.org/html/rfc8555#section-7.1.6
	STATUS_PENDING    = "pending"
	STATUS_PROCESSING = "processing"
	STATUS_READY      = "ready"
	STATUS_VALID      = "valid"
	STATUS_INVALID    = "invalid"

	// Challenge type identifiers.
	// See https://tools.ietf.org/html/rfc8555#section-8
	CHALLENGE_DNS01   = "dns-01"
	CHALLENGE_HTTP01  = "http-01"
	CHALLENGE_TLSALPN = "tls-alpn-01"

	// The problem document type for a rejected stale nonce. A request
	// failing with this type is eligible for one signed retry.
	// See https://tools.ietf.org/html/rfc8555#section-6.5
	BAD_NONCE_PROBLEM = "urn:ietf:params:acme:error:badNonce"
)
