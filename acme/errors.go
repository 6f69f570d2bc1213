package acme

import "fmt"

// ConfigError indicates a malformed or missing configuration value. It
// is reported before any network request is made and is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// CryptoError indicates a key generation failure or a key/certificate
// mismatch. Fatal.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s: %s", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates the ACME server rejected a request for
// a reason other than a stale nonce (a stale nonce is retried once
// silently before one surfaces as a ProtocolError). The server's
// problem document, when one was returned, is carried verbatim.
type ProtocolError struct {
	Op      string
	Status  int
	Problem *Problem
}

func (e *ProtocolError) Error() string {
	if e.Problem != nil {
		return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.Status, e.Problem)
	}
	return fmt.Sprintf("%s: server returned status %d", e.Op, e.Status)
}

// UnsupportedChallengeError indicates an authorization offered no
// DNS-01 challenge.
type UnsupportedChallengeError struct {
	Identifier string
	Offered    []string
}

func (e *UnsupportedChallengeError) Error() string {
	return fmt.Sprintf(
		"authorization for %q offers no %s challenge (offered: %v)",
		e.Identifier, CHALLENGE_DNS01, e.Offered)
}

// ValidationFailedError indicates the server reached a definitive
// "invalid" verdict for a challenge. Detail is the server's problem
// detail string, unmodified.
type ValidationFailedError struct {
	ChallengeURL string
	Detail       string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("challenge %q failed validation: %s", e.ChallengeURL, e.Detail)
}

// ValidationTimeoutError indicates no definitive verdict arrived within
// the polling deadline. The record may simply not have propagated yet.
type ValidationTimeoutError struct {
	ChallengeURL string
	MaxWait      string
}

func (e *ValidationTimeoutError) Error() string {
	return fmt.Sprintf(
		"challenge %q still has no verdict after %s - double-check that the TXT record has propagated",
		e.ChallengeURL, e.MaxWait)
}

// FinalizationError indicates the server rejected the CSR or the order
// never reached the "valid" status after finalization.
type FinalizationError struct {
	OrderURL string
	Reason   string
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("finalizing order %q: %s", e.OrderURL, e.Reason)
}

// EncodingError indicates an issued certificate could not be encoded
// into output artifacts, e.g. because the certificate's public key does
// not correspond to the supplied private key.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "encoding artifacts: " + e.Reason
}
