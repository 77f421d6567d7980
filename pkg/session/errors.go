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

import "errors"

var (
	// ErrConnect classifies an OpenFailure in which no attempt got as far as
	// authentication.
	ErrConnect = errors.New("connect error")
	// ErrAuth classifies an OpenFailure in which at least one credential set
	// reached the device and was rejected.
	ErrAuth = errors.New("authentication error")

	ErrNoCredentials      = errors.New("no credential sets supplied")
	ErrNoDialer           = errors.New("no dialer for transport")
	ErrUnreachable        = errors.New("target unreachable")
	ErrAuthRejected       = errors.New("credentials rejected")
	ErrProtocolMismatch   = errors.New("protocol negotiation failed")
	ErrCommandFailed      = errors.New("command exited with non-zero status")
	ErrUnsupportedCommand = errors.New("unsupported command for transport")
	ErrUnsupportedVersion = errors.New("unsupported SNMP version")
	ErrSessionClosed      = errors.New("session closed")
)
