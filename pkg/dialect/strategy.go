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
	"fmt"
	"regexp"

	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
)

// Strategy is everything the adapter needs to talk to one dialect.
type Strategy struct {
	Dialect   models.Dialect
	Transport session.Transport
	// Signature matches the dialect's version banner.
	Signature *regexp.Regexp

	TableCommands []string
	ParseTable    func(outputs []string) TableParse

	IdentityCommands []string
}

// Probe commands in the order they are tried over SSH. The first output
// matching a signature wins.
var probeCommands = []string{
	"show version",
	"display version",
	"cat /etc/os-release",
}

// strategies is ordered: NX-OS banners mention "Cisco" and must be matched
// before IOS.
var strategies = []Strategy{
	{
		Dialect:          models.DialectCiscoNXOS,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)NX-OS|Nexus Operating System`),
		TableCommands:    []string{"show mac address-table"},
		ParseTable:       columnParser(nxosRe, false, nil),
		IdentityCommands: []string{"show interface | include address:"},
	},
	{
		Dialect:          models.DialectAristaEOS,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)Arista|\bEOS\b`),
		TableCommands:    []string{"show mac address-table"},
		ParseTable:       columnParser(vlanMacTypePortRe, false, nil),
		IdentityCommands: []string{"show interfaces | include address is"},
	},
	{
		Dialect:          models.DialectOnyx,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)Onyx|MLNX-OS|Mellanox`),
		TableCommands:    []string{"show mac-address-table"},
		ParseTable:       columnParser(onyxRe, false, nil),
		IdentityCommands: []string{"show interfaces ethernet | include Mac address"},
	},
	{
		Dialect:          models.DialectJunOS,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)JUNOS|Juniper`),
		TableCommands:    []string{"show ethernet-switching table | no-more"},
		ParseTable:       columnParser(junosRe, false, stripJunosUnit),
		IdentityCommands: []string{"show chassis mac-addresses | no-more"},
	},
	{
		Dialect:          models.DialectH3CComware,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)H3C Comware|Comware Software|\bH3C\b`),
		TableCommands:    []string{"display mac-address"},
		ParseTable:       columnParser(h3cRe, true, nil),
		IdentityCommands: []string{"display interface | include hardware address"},
	},
	{
		Dialect:          models.DialectHuaweiVRP,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)Huawei Versatile Routing Platform|\bVRP\b`),
		TableCommands:    []string{"display mac-address"},
		ParseTable:       columnParser(huaweiRe, true, nil),
		IdentityCommands: []string{"display interface | include Hardware address"},
	},
	{
		Dialect:          models.DialectCumulus,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)Cumulus`),
		TableCommands:    []string{"bridge fdb show"},
		ParseTable:       parseCumulusFDB,
		IdentityCommands: []string{"ip -o link show"},
	},
	{
		Dialect:          models.DialectCiscoIOS,
		Transport:        session.TransportSSH,
		Signature:        regexp.MustCompile(`(?i)Cisco IOS|IOS-XE|IOS Software`),
		TableCommands:    []string{"show mac address-table"},
		ParseTable:       columnParser(vlanMacTypePortRe, false, nil),
		IdentityCommands: []string{"show interfaces | include address is"},
	},
	{
		Dialect:   models.DialectSNMPBridge,
		Transport: session.TransportSNMP,
		Signature: nil,
		TableCommands: []string{
			"walk " + OIDDot1dTpFdbPort,
			"walk " + OIDDot1dTpFdbStatus,
			"walk " + OIDDot1dBasePortIfIndex,
			"walk " + OIDIfName,
		},
		ParseTable: parseBridgeMIB,
		IdentityCommands: []string{
			"get " + OIDDot1dBaseBridgeAddress,
			"walk " + OIDIfPhysAddress,
		},
	},
}

// Lookup returns the strategy for d.
func Lookup(d models.Dialect) (*Strategy, error) {
	for i := range strategies {
		if strategies[i].Dialect == d {
			return &strategies[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, d)
}

// Known lists every concrete dialect in probe order.
func Known() []models.Dialect {
	out := make([]models.Dialect, 0, len(strategies))
	for i := range strategies {
		out = append(out, strategies[i].Dialect)
	}

	return out
}

// Match returns the first dialect whose signature matches banner.
func Match(banner string) (models.Dialect, bool) {
	for i := range strategies {
		s := &strategies[i]
		if s.Signature != nil && s.Signature.MatchString(banner) {
			return s.Dialect, true
		}
	}

	return models.DialectUnknown, false
}
