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

package mapper

import (
	"fmt"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/session"
)

// NewDialers builds the SSH and SNMP dialers described by a validated cfg.
func NewDialers(cfg *Config, log logger.Logger) (map[session.Transport]session.Dialer, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	sshDialer, err := session.NewSSHDialer(log, session.SSHOptions{
		KnownHostsFile: cfg.KnownHostsFile,
		CommandTimeout: cfg.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH dialer: %w", err)
	}

	return map[session.Transport]session.Dialer{
		session.TransportSSH: sshDialer,
		session.TransportSNMP: session.NewSNMPDialer(log, session.SNMPOptions{
			Retries:        cfg.SNMPRetries,
			CommandTimeout: cfg.CommandTimeout,
		}),
	}, nil
}
