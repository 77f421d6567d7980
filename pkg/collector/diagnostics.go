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

package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/portmap/pkg/dialect"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
)

// classify maps an error from the open/fetch chain to a diagnostic kind.
// ctx is the per-device context; it decides between timeout and
// cancellation when the chain only says the work was cut short.
func classify(ctx context.Context, err error) models.DiagnosticKind {
	if err == nil {
		return models.DiagnosticKindNone
	}

	var openErr *session.OpenFailure
	if errors.As(err, &openErr) {
		switch {
		case openErr.Canceled():
			return cutShort(ctx, err)
		case errors.Is(openErr.Class(), session.ErrAuth):
			return models.DiagnosticKindAuth
		default:
			return models.DiagnosticKindConnect
		}
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cutShort(ctx, err)
	case errors.Is(err, session.ErrNoCredentials):
		return models.DiagnosticKindAuth
	case errors.Is(err, dialect.ErrDialectUnresolved):
		return models.DiagnosticKindDialectUnresolved
	case errors.Is(err, dialect.ErrParseFailure):
		return models.DiagnosticKindParse
	case errors.Is(err, dialect.ErrQueryFailed):
		return models.DiagnosticKindQuery
	}

	return models.DiagnosticKindCollection
}

func cutShort(ctx context.Context, err error) models.DiagnosticKind {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.DiagnosticKindTimeout
	}

	return models.DiagnosticKindCanceled
}

const maxErrorDetail = 160

// errorSummary renders err for a diagnostic: its kind and the first line of
// the message, capped. The full error belongs in the log.
func errorSummary(kind models.DiagnosticKind, err error) string {
	msg, _, multiline := strings.Cut(err.Error(), "\n")
	if len(msg) > maxErrorDetail {
		msg = msg[:maxErrorDetail]
		multiline = true
	}

	if multiline {
		msg += "..."
	}

	return fmt.Sprintf("%s: %s", kind, msg)
}

// dialectsTried lists the hints of rejected credential sets followed by the
// dialect that was finally used, without duplicates or unknowns.
func dialectsTried(failed []*session.AttemptError, resolved models.Dialect) []models.Dialect {
	seen := make(map[models.Dialect]struct{})

	var out []models.Dialect

	add := func(d models.Dialect) {
		if !d.Resolved() {
			return
		}

		if _, dup := seen[d]; dup {
			return
		}

		seen[d] = struct{}{}
		out = append(out, d)
	}

	for _, a := range failed {
		add(a.DialectHint)
	}

	add(resolved)

	return out
}
