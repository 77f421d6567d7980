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

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/carverauto/portmap/pkg/models"
)

// AttemptKind classifies why a single credential attempt failed.
type AttemptKind string

const (
	AttemptUnreachable      AttemptKind = "unreachable"
	AttemptTimeout          AttemptKind = "timeout"
	AttemptAuthRejected     AttemptKind = "auth_rejected"
	AttemptProtocolMismatch AttemptKind = "protocol_mismatch"
	AttemptCanceled         AttemptKind = "canceled"
	AttemptNoDialer         AttemptKind = "no_dialer"
)

// AttemptError is the failure of one credential set against one target.
type AttemptError struct {
	Index       int
	Label       string
	DialectHint models.Dialect
	Kind        AttemptKind
	Err         error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Label, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// OpenFailure is returned by Client.Open once every credential set has
// failed. It wraps ErrAuth when any attempt was rejected at authentication
// and ErrConnect otherwise.
type OpenFailure struct {
	Target   string
	Attempts []*AttemptError
}

func (f *OpenFailure) Error() string {
	parts := make([]string, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		parts = append(parts, a.Error())
	}

	return fmt.Sprintf("%v: %s: %d credential set(s) failed: [%s]",
		f.Class(), f.Target, len(f.Attempts), strings.Join(parts, "; "))
}

// Class returns ErrAuth or ErrConnect.
func (f *OpenFailure) Class() error {
	for _, a := range f.Attempts {
		if a.Kind == AttemptAuthRejected {
			return ErrAuth
		}
	}

	return ErrConnect
}

// Canceled reports whether the run was canceled before all sets were tried.
func (f *OpenFailure) Canceled() bool {
	for _, a := range f.Attempts {
		if a.Kind == AttemptCanceled {
			return true
		}
	}

	return false
}

// DialectHints lists the hints of the sets that were tried, in order.
func (f *OpenFailure) DialectHints() []models.Dialect {
	out := make([]models.Dialect, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		out = append(out, a.DialectHint)
	}

	return out
}

func (f *OpenFailure) Unwrap() []error {
	errs := make([]error, 0, len(f.Attempts)+1)
	errs = append(errs, f.Class())

	for _, a := range f.Attempts {
		errs = append(errs, a)
	}

	return errs
}

// classifyAttempt maps a dialer error to an AttemptKind. parent is the
// caller's context, used to tell run cancellation from an attempt timeout.
func classifyAttempt(parent context.Context, err error) AttemptKind {
	switch {
	case errors.Is(err, ErrNoDialer):
		return AttemptNoDialer
	case parent.Err() != nil || errors.Is(err, context.Canceled):
		return AttemptCanceled
	case errors.Is(err, ErrAuthRejected):
		return AttemptAuthRejected
	case errors.Is(err, ErrProtocolMismatch):
		return AttemptProtocolMismatch
	case errors.Is(err, context.DeadlineExceeded):
		return AttemptTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return AttemptTimeout
	}

	return AttemptUnreachable
}
