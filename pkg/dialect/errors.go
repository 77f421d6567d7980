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

package dialect

import (
	"errors"
	"fmt"

	"github.com/carverauto/portmap/pkg/models"
)

var (
	ErrDialectUnresolved = errors.New("dialect unresolved")
	ErrParseFailure      = errors.New("address table parse failure")
	ErrQueryFailed       = errors.New("address table query failed")
	ErrUnknownDialect    = errors.New("unknown dialect")
)

// ParseError reports a successful query from which no entry could be parsed.
type ParseError struct {
	Dialect models.Dialect
	Lines   int
	Skipped int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: 0 entries from %d line(s), %d skipped",
		ErrParseFailure, e.Dialect, e.Lines, e.Skipped)
}

func (e *ParseError) Unwrap() error {
	return ErrParseFailure
}
