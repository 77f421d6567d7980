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
	"fmt"
	"strings"

	"github.com/carverauto/portmap/pkg/models"
)

// Transport selects the protocol used to reach a device.
type Transport string

const (
	TransportSSH  Transport = "ssh"
	TransportSNMP Transport = "snmp"
)

// SNMP versions accepted in CredentialSet.Version.
const (
	SNMPVersion1  = "v1"
	SNMPVersion2c = "v2c"
	SNMPVersion3  = "v3"
)

// CredentialSet is one way of logging into a device. For SSH, Secret is a
// password or a PEM-encoded private key. For SNMP v1/v2c it is the community;
// for v3 it is the authentication passphrase.
type CredentialSet struct {
	Name        string         `json:"name,omitempty"`
	DialectHint models.Dialect `json:"dialect_hint,omitempty"`
	Transport   Transport      `json:"transport,omitempty"`
	Port        int            `json:"port,omitempty"`
	Username    string         `json:"username,omitempty"`
	Secret      string         `json:"secret,omitempty" sensitive:"true"`
	// Passphrase decrypts an encrypted private key.
	Passphrase string `json:"passphrase,omitempty" sensitive:"true"`

	Version      string `json:"version,omitempty"`
	AuthProtocol string `json:"auth_protocol,omitempty"`
	PrivProtocol string `json:"priv_protocol,omitempty"`
	PrivSecret   string `json:"priv_secret,omitempty" sensitive:"true"`
}

// EffectiveTransport resolves the transport, inferring SNMP from the
// snmp-bridge dialect hint.
func (c CredentialSet) EffectiveTransport() Transport {
	if c.Transport != "" {
		return Transport(strings.ToLower(string(c.Transport)))
	}

	if c.DialectHint == models.DialectSNMPBridge {
		return TransportSNMP
	}

	return TransportSSH
}

// IsPrivateKey reports whether Secret holds a PEM private key.
func (c CredentialSet) IsPrivateKey() bool {
	return strings.HasPrefix(strings.TrimSpace(c.Secret), "-----BEGIN")
}

// Label identifies the set in logs and diagnostics without exposing secrets.
func (c CredentialSet) Label(index int) string {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("set-%d", index+1)
	}

	hint := c.DialectHint
	if hint == "" {
		hint = models.DialectUnknown
	}

	return fmt.Sprintf("%s(%s/%s)", name, c.EffectiveTransport(), hint)
}

// String never includes secret material.
func (c CredentialSet) String() string {
	return fmt.Sprintf("CredentialSet{name=%q user=%q transport=%s hint=%s}",
		c.Name, c.Username, c.EffectiveTransport(), c.DialectHint)
}
