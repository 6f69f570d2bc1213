package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/handcert/handcert/acme"
	"github.com/handcert/handcert/acme/resources"
)

// SleepFunc pauses for the given duration or returns early with the
// context's error when it is cancelled. Tests substitute this to drive
// polling loops without wall-clock delay.
type SleepFunc func(context.Context, time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollConfig bounds a status polling loop. The zero value polls with
// the defaults: a 60 second overall budget checked every 2 seconds,
// enough headroom for DNS propagation to reach the CA's resolvers.
type PollConfig struct {
	// MaxWait is the hard overall deadline for the loop.
	MaxWait time.Duration
	// Interval is the pause between polls.
	Interval time.Duration
	// Sleep implements the pause. Nil means a real timer.
	Sleep SleepFunc
}

const (
	defaultPollMaxWait  = 60 * time.Second
	defaultPollInterval = 2 * time.Second
)

func (cfg PollConfig) withDefaults() PollConfig {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultPollMaxWait
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return cfg
}

// RequestValidation tells the ACME server to begin validating the given
// challenge by POSTing the empty update object to the challenge URL.
// It does not wait for a verdict; use PollChallenge for that.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) RequestValidation(ctx context.Context, chall *resources.Challenge) error {
	if chall == nil || chall.URL == "" {
		return fmt.Errorf("requestValidation: challenge must not be nil and must have a URL")
	}

	resp, err := c.postJWS(ctx, "requestValidation", chall.URL, []byte("{}"), nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.RespBody, chall); err != nil {
		return fmt.Errorf("requestValidation: server returned invalid JSON: %s", err)
	}
	log.Printf("Validation of %q challenge %q started\n", chall.Type, chall.URL)
	return nil
}

// UpdateChallenge refreshes a given Challenge by fetching its URL from
// the ACME server with a POST-as-GET request. The Challenge is updated
// in place.
func (c *Client) UpdateChallenge(ctx context.Context, chall *resources.Challenge) error {
	if chall == nil || chall.URL == "" {
		return fmt.Errorf("updateChallenge: challenge must not be nil and must have a URL")
	}

	url := chall.URL
	resp, err := c.postAsGet(ctx, "updateChallenge", url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.RespBody, chall); err != nil {
		return fmt.Errorf("updateChallenge: server returned invalid JSON: %s", err)
	}
	chall.URL = url
	return nil
}

// PollChallenge repeatedly refreshes the challenge until the server
// reaches a definitive verdict or the polling budget runs out. A
// "valid" verdict returns nil. An "invalid" verdict returns an
// acme.ValidationFailedError carrying the server's problem detail
// verbatim. Reaching the deadline without a verdict returns an
// acme.ValidationTimeoutError.
func (c *Client) PollChallenge(ctx context.Context, chall *resources.Challenge, cfg PollConfig) error {
	cfg = cfg.withDefaults()

	for waited := time.Duration(0); ; waited += cfg.Interval {
		if err := c.UpdateChallenge(ctx, chall); err != nil {
			return err
		}

		switch chall.Status {
		case acme.STATUS_VALID:
			return nil
		case acme.STATUS_INVALID:
			detail := "challenge marked invalid"
			if chall.Error != nil {
				detail = chall.Error.Detail
			}
			return &acme.ValidationFailedError{
				ChallengeURL: chall.URL,
				Detail:       detail,
			}
		}

		if waited+cfg.Interval > cfg.MaxWait {
			return &acme.ValidationTimeoutError{
				ChallengeURL: chall.URL,
				MaxWait:      cfg.MaxWait.String(),
			}
		}
		if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
			return err
		}
	}
}
