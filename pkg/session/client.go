/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package session opens authenticated command sessions to switches and hosts,
// trying an ordered list of credential sets until one is accepted.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/rs/zerolog"
)

const defaultAttemptTimeout = 10 * time.Second

type commandTimeoutKey struct{}

// WithCommandTimeout overrides the dialer's per-command timeout for Runs
// made with the returned context. Zero disables it.
func WithCommandTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, commandTimeoutKey{}, d)
}

// Handle is an open session plus the credential set that produced it.
type Handle struct {
	Session

	Target      string
	Credentials CredentialSet
	// Failed holds the attempts that were rejected before this one succeeded.
	Failed []*AttemptError
}

// Client owns the per-transport dialers and the attempt timeout.
type Client struct {
	dialers        map[Transport]Dialer
	attemptTimeout time.Duration
	logger         zerolog.Logger
}

// NewClient returns a Client. A non-positive attemptTimeout selects the
// default of 10s.
func NewClient(log logger.Logger, attemptTimeout time.Duration, dialers map[Transport]Dialer) *Client {
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}

	return &Client{
		dialers:        dialers,
		attemptTimeout: attemptTimeout,
		logger:         log.WithComponent("session"),
	}
}

// Open tries each credential set in order, each under its own timeout, and
// returns the first session that authenticates. When every set fails it
// returns an *OpenFailure holding all attempt errors.
func (c *Client) Open(ctx context.Context, target string, sets []CredentialSet) (*Handle, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, target)
	}

	failure := &OpenFailure{Target: target}

	for i := range sets {
		set := sets[i]
		label := set.Label(i)

		if err := ctx.Err(); err != nil {
			failure.Attempts = append(failure.Attempts, &AttemptError{
				Index: i, Label: label, DialectHint: set.DialectHint, Kind: AttemptCanceled, Err: err,
			})

			break
		}

		sess, err := c.attempt(ctx, target, set)
		if err == nil {
			c.logger.Debug().
				Str("target", target).
				Str("credentials", label).
				Int("failed_attempts", len(failure.Attempts)).
				Msg("Session opened")

			return &Handle{Session: sess, Target: target, Credentials: set, Failed: failure.Attempts}, nil
		}

		kind := classifyAttempt(ctx, err)

		c.logger.Debug().
			Str("target", target).
			Str("credentials", label).
			Str("kind", string(kind)).
			Err(err).
			Msg("Credential attempt failed")

		failure.Attempts = append(failure.Attempts, &AttemptError{
			Index: i, Label: label, DialectHint: set.DialectHint, Kind: kind, Err: err,
		})

		if kind == AttemptCanceled {
			break
		}
	}

	return nil, failure
}

func (c *Client) attempt(ctx context.Context, target string, set CredentialSet) (Session, error) {
	dialer, ok := c.dialers[set.EffectiveTransport()]
	if !ok || dialer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDialer, set.EffectiveTransport())
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	sess, err := dialer.Dial(attemptCtx, target, set)
	if err != nil {
		if sess != nil {
			_ = sess.Close()
		}

		return nil, err
	}

	return sess, nil
}

// Do opens a session, runs fn with it and closes the session on every exit
// path, including panics in fn and cancellation of ctx.
func (c *Client) Do(ctx context.Context, target string, sets []CredentialSet, fn func(ctx context.Context, h *Handle) error) error {
	h, err := c.Open(ctx, target, sets)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := h.Close(); cerr != nil && !errors.Is(cerr, ErrSessionClosed) {
			c.logger.Debug().Str("target", target).Err(cerr).Msg("Session close failed")
		}
	}()

	return fn(ctx, h)
}
