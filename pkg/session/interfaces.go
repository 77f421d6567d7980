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

//go:generate mockgen -destination=mock_session.go -package=session github.com/carverauto/portmap/pkg/session Session,Dialer

package session

import "context"

// Session is an authenticated, read-only command channel to one device.
type Session interface {
	// Run executes a single command and returns its textual output. On
	// failure, including cancellation, the output produced so far is returned
	// with the error.
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens a Session with exactly one credential set.
type Dialer interface {
	Dial(ctx context.Context, target string, creds CredentialSet) (Session, error)
}
