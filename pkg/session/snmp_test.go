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
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureClientVersion(t *testing.T) {
	tests := []struct {
		name    string
		creds   CredentialSet
		version gosnmp.SnmpVersion
		flags   gosnmp.SnmpV3MsgFlags
		wantErr error
	}{
		{
			name:    "v1 community",
			creds:   CredentialSet{Version: "v1", Secret: "public"},
			version: gosnmp.Version1,
		},
		{
			name:    "default is v2c",
			creds:   CredentialSet{Secret: "public"},
			version: gosnmp.Version2c,
		},
		{
			name:    "v3 auth priv",
			creds:   CredentialSet{Version: "v3", Username: "ops", Secret: "authpass", AuthProtocol: "sha256", PrivProtocol: "aes", PrivSecret: "privpass"},
			version: gosnmp.Version3,
			flags:   gosnmp.AuthPriv,
		},
		{
			name:    "v3 auth only",
			creds:   CredentialSet{Version: "V3", Username: "ops", Secret: "authpass", AuthProtocol: "SHA"},
			version: gosnmp.Version3,
			flags:   gosnmp.AuthNoPriv,
		},
		{
			name:    "v3 no auth",
			creds:   CredentialSet{Version: "v3", Username: "ops"},
			version: gosnmp.Version3,
			flags:   gosnmp.NoAuthNoPriv,
		},
		{
			name:    "unsupported",
			creds:   CredentialSet{Version: "v4"},
			wantErr: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &gosnmp.GoSNMP{}

			err := configureClientVersion(client, tt.creds)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.version, client.Version)

			if tt.version != gosnmp.Version3 {
				assert.Equal(t, tt.creds.Secret, client.Community)
				return
			}

			assert.Equal(t, tt.flags, client.MsgFlags)
			assert.Equal(t, gosnmp.UserSecurityModel, client.SecurityModel)

			usm, ok := client.SecurityParameters.(*gosnmp.UsmSecurityParameters)
			require.True(t, ok)
			assert.Equal(t, tt.creds.Username, usm.UserName)
		})
	}
}

func TestFormatPDUs(t *testing.T) {
	pdus := []gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.2.1.17.4.3.1.2.0.27.33.58.79.16", Type: gosnmp.Integer, Value: 7},
		{Name: "1.3.6.1.2.1.31.1.1.1.1.7", Type: gosnmp.OctetString, Value: []byte("Gi1/0/7")},
		{Name: ".1.3.6.1.2.1.17.1.1.0", Type: gosnmp.OctetString, Value: []byte{0x00, 0x1b, 0x21, 0x3a, 0x4f, 0x10}},
		{Name: ".1.3.6.1.2.1.2.2.1.6.3", Type: gosnmp.OctetString, Value: []byte("ABCDEF")},
		{Name: ".1.3.6.1.2.1.1.1.0", Type: gosnmp.OctetString, Value: []byte("ABCDEF")},
		{Name: ".1.3.6.1.2.1.1.2.0", Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.9.1.1"},
		{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.NoSuchObject},
	}

	want := ".1.3.6.1.2.1.17.4.3.1.2.0.27.33.58.79.16 = INTEGER: 7\n" +
		".1.3.6.1.2.1.31.1.1.1.1.7 = STRING: \"Gi1/0/7\"\n" +
		".1.3.6.1.2.1.17.1.1.0 = Hex-STRING: 00 1B 21 3A 4F 10\n" +
		".1.3.6.1.2.1.2.2.1.6.3 = Hex-STRING: 41 42 43 44 45 46\n" +
		".1.3.6.1.2.1.1.1.0 = STRING: \"ABCDEF\"\n" +
		".1.3.6.1.2.1.1.2.0 = OID: .1.3.6.1.4.1.9.1.1\n" +
		".1.3.6.1.2.1.1.5.0 = " + noSuchValue + "\n"

	assert.Equal(t, want, FormatPDUs(pdus))
}

func TestSNMPRunRejectsUnknownCommands(t *testing.T) {
	s := &snmpSession{client: &gosnmp.GoSNMP{}}

	_, err := s.Run(context.Background(), "show mac address-table")
	require.ErrorIs(t, err, ErrUnsupportedCommand)

	_, err = s.Run(context.Background(), "walk")
	require.ErrorIs(t, err, ErrUnsupportedCommand)

	require.NoError(t, s.Close())
}

func TestClassifySNMPError(t *testing.T) {
	assert.ErrorIs(t, classifySNMPError("sw", errors.New("incoming packet is not authentic, discarding")), ErrAuthRejected)
	assert.ErrorIs(t, classifySNMPError("sw", errors.New("request timeout (after 1 retries)")), context.DeadlineExceeded)
	assert.ErrorIs(t, classifySNMPError("sw", errors.New("connection refused")), ErrUnreachable)
}
