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
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
)

const (
	defaultSNMPPort       = 161
	defaultSNMPTimeout    = 5 * time.Second
	defaultMaxRepetitions = 10

	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"

	noSuchValue = "No Such Object available on this agent at this OID"
)

// SNMPOptions configures an SNMPDialer.
type SNMPOptions struct {
	Retries        int
	CommandTimeout time.Duration
}

// SNMPDialer opens gosnmp sessions. A session accepts two commands:
// "get <oid> [<oid>...]" and "walk <oid>", answered as one
// "<oid> = <TYPE>: <value>" line per varbind.
type SNMPDialer struct {
	retries        int
	commandTimeout time.Duration
	logger         zerolog.Logger
}

func NewSNMPDialer(log logger.Logger, opts SNMPOptions) *SNMPDialer {
	return &SNMPDialer{
		retries:        opts.Retries,
		commandTimeout: opts.CommandTimeout,
		logger:         log.WithComponent("snmp"),
	}
}

// Dial creates the client and proves the credentials with a sysObjectID get.
func (d *SNMPDialer) Dial(ctx context.Context, target string, creds CredentialSet) (Session, error) {
	timeout := defaultSNMPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	port := creds.Port
	if port <= 0 {
		port = defaultSNMPPort
	}

	client := &gosnmp.GoSNMP{
		Target:             target,
		Port:               uint16(port), //nolint:gosec // validated range
		Timeout:            timeout,
		Retries:            d.retries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     defaultMaxRepetitions,
		ExponentialTimeout: true,
		Context:            ctx,
	}

	if err := configureClientVersion(client, creds); err != nil {
		return nil, err
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, target, err)
	}

	s := &snmpSession{client: client, commandTimeout: d.commandTimeout}

	packet, err := client.Get([]string{oidSysObjectID})
	if err != nil {
		_ = s.Close()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, classifySNMPError(target, err)
	}

	if packet.Error != gosnmp.NoError {
		_ = s.Close()

		return nil, fmt.Errorf("%w: %s: error status %v", ErrAuthRejected, target, packet.Error)
	}

	d.logger.Debug().Str("target", target).Str("version", creds.Version).Msg("SNMP session established")

	return s, nil
}

// configureClientVersion sets up the SNMP client based on the version in the credentials
func configureClientVersion(client *gosnmp.GoSNMP, creds CredentialSet) error {
	switch strings.ToLower(creds.Version) {
	case SNMPVersion1:
		client.Version = gosnmp.Version1
		client.Community = creds.Secret
	case SNMPVersion2c, "":
		client.Version = gosnmp.Version2c
		client.Community = creds.Secret
	case SNMPVersion3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel

		usm := &gosnmp.UsmSecurityParameters{
			UserName: creds.Username,
		}

		configureV3Authentication(usm, creds)
		configureV3Privacy(usm, creds)

		client.SecurityParameters = usm

		switch {
		case usm.PrivacyProtocol != gosnmp.NoPriv && usm.AuthenticationProtocol != gosnmp.NoAuth:
			client.MsgFlags = gosnmp.AuthPriv
		case usm.AuthenticationProtocol != gosnmp.NoAuth:
			client.MsgFlags = gosnmp.AuthNoPriv
		default:
			client.MsgFlags = gosnmp.NoAuthNoPriv
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, creds.Version)
	}

	return nil
}

// configureV3Authentication sets up the authentication protocol for SNMPv3
func configureV3Authentication(usm *gosnmp.UsmSecurityParameters, creds CredentialSet) {
	usm.AuthenticationProtocol = gosnmp.NoAuth

	switch strings.ToUpper(creds.AuthProtocol) {
	case "MD5":
		usm.AuthenticationProtocol = gosnmp.MD5
	case "SHA":
		usm.AuthenticationProtocol = gosnmp.SHA
	case "SHA224":
		usm.AuthenticationProtocol = gosnmp.SHA224
	case "SHA256":
		usm.AuthenticationProtocol = gosnmp.SHA256
	case "SHA384":
		usm.AuthenticationProtocol = gosnmp.SHA384
	case "SHA512":
		usm.AuthenticationProtocol = gosnmp.SHA512
	default:
		return
	}

	usm.AuthenticationPassphrase = creds.Secret
}

// configureV3Privacy sets up the privacy protocol for SNMPv3
func configureV3Privacy(usm *gosnmp.UsmSecurityParameters, creds CredentialSet) {
	usm.PrivacyProtocol = gosnmp.NoPriv

	switch strings.ToUpper(creds.PrivProtocol) {
	case "DES":
		usm.PrivacyProtocol = gosnmp.DES
	case "AES":
		usm.PrivacyProtocol = gosnmp.AES
	case "AES192":
		usm.PrivacyProtocol = gosnmp.AES192
	case "AES256":
		usm.PrivacyProtocol = gosnmp.AES256
	default:
		return
	}

	usm.PrivacyPassphrase = creds.PrivSecret
}

func classifySNMPError(target string, err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "authentic"),
		strings.Contains(msg, "unknown user"),
		strings.Contains(msg, "wrong digest"),
		strings.Contains(msg, "usmstats"):
		return fmt.Errorf("%w: %s: %w", ErrAuthRejected, target, err)
	case strings.Contains(msg, "timeout"):
		// v1/v2c agents drop requests with a wrong community, so a timeout
		// here cannot be told apart from an unreachable agent.
		return fmt.Errorf("%s: %w: %w", target, context.DeadlineExceeded, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, target, err)
	}
}

type snmpSession struct {
	client         *gosnmp.GoSNMP
	commandTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (s *snmpSession) Run(ctx context.Context, command string) (string, error) {
	fields := strings.Fields(command)
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCommand, command)
	}

	if s.commandTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}

	s.client.Context = ctx

	var (
		pdus []gosnmp.SnmpPDU
		err  error
	)

	switch strings.ToLower(fields[0]) {
	case "get":
		var packet *gosnmp.SnmpPacket

		packet, err = s.client.Get(fields[1:])
		if err == nil {
			pdus = packet.Variables
		}
	case "walk":
		if s.client.Version == gosnmp.Version1 {
			pdus, err = s.client.WalkAll(fields[1])
		} else {
			pdus, err = s.client.BulkWalkAll(fields[1])
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCommand, command)
	}

	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("run %q: %w", command, ctx.Err())
		}

		return "", fmt.Errorf("run %q: %w", command, err)
	}

	return FormatPDUs(pdus), nil
}

func (s *snmpSession) Close() error {
	s.closeOnce.Do(func() {
		if s.client.Conn != nil {
			s.closeErr = s.client.Conn.Close()
		}
	})

	return s.closeErr
}

// FormatPDUs renders varbinds in the net-snmp "snmpwalk -On" text layout.
func FormatPDUs(pdus []gosnmp.SnmpPDU) string {
	var b strings.Builder

	for _, pdu := range pdus {
		name := pdu.Name
		if !strings.HasPrefix(name, ".") {
			name = "." + name
		}

		b.WriteString(name)
		b.WriteString(" = ")
		b.WriteString(formatValue(name, pdu))
		b.WriteByte('\n')
	}

	return b.String()
}

// physAddressOIDs hold MacAddress/PhysAddress values. Those are always
// rendered as hex, even when every octet happens to be printable.
var physAddressOIDs = []string{
	".1.3.6.1.2.1.17.1.1.",     // dot1dBaseBridgeAddress
	".1.3.6.1.2.1.17.4.3.1.1.", // dot1dTpFdbAddress
	".1.3.6.1.2.1.2.2.1.6.",    // ifPhysAddress
}

func isPhysAddress(name string, raw []byte) bool {
	if len(raw) != 6 {
		return false
	}

	for _, prefix := range physAddressOIDs {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func formatValue(name string, pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		raw, _ := pdu.Value.([]byte)
		if isPrintable(raw) && !isPhysAddress(name, raw) {
			return fmt.Sprintf("STRING: %q", string(raw))
		}

		return "Hex-STRING: " + hexOctets(raw)
	case gosnmp.Integer:
		return "INTEGER: " + gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.Counter32:
		return "Counter32: " + gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.Counter64:
		return "Counter64: " + gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.Gauge32, gosnmp.Uinteger32:
		return "Gauge32: " + gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.TimeTicks:
		return "Timeticks: " + gosnmp.ToBigInt(pdu.Value).String()
	case gosnmp.ObjectIdentifier:
		return fmt.Sprintf("OID: %v", pdu.Value)
	case gosnmp.IPAddress:
		return fmt.Sprintf("IpAddress: %v", pdu.Value)
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return noSuchValue
	default:
		return fmt.Sprintf("%v: %v", pdu.Type, pdu.Value)
	}
}

func isPrintable(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}

	for _, c := range raw {
		if c > unicode.MaxASCII || (!unicode.IsPrint(rune(c)) && c != '\n' && c != '\r' && c != '\t') {
			return false
		}
	}

	return true
}

func hexOctets(raw []byte) string {
	parts := make([]string, len(raw))
	for i, c := range raw {
		parts[i] = fmt.Sprintf("%02X", c)
	}

	return strings.Join(parts, " ")
}
