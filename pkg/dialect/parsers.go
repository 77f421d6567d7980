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
	"regexp"
	"strconv"
	"strings"

	"github.com/carverauto/portmap/pkg/models"
)

// RawEntry is an address table row before normalization.
type RawEntry struct {
	Address string
	Port    string
	VLAN    int
}

// TableParse is the outcome of parsing one address table.
type TableParse struct {
	Entries []RawEntry
	// Lines counts candidate data lines; Skipped counts those that did not
	// parse. Headers, banners and blank lines are neither.
	Lines   int
	Skipped int
}

const (
	dottedMAC = `[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}`
	dashedMAC = `[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}`
	colonMAC  = `[0-9a-fA-F]{1,2}(?::[0-9a-fA-F]{1,2}){5}`
)

var (
	// Vlan  Mac Address  Type  Ports [...]: IOS, IOS-XE, EOS.
	vlanMacTypePortRe = regexp.MustCompile(`^\s*(\d+)\s+(` + dottedMAC + `)\s+\S+\s+(\S+)`)
	// [*] VLAN  MAC Address  Type  age  Secure NTFY  Ports
	nxosRe = regexp.MustCompile(`^\s*[*+GOCRVE~]?\s*(\d+)\s+(` + dottedMAC + `)\s+\S+\s+\S+\s+\S+\s+\S+\s+(\S+)\s*$`)
	// Vlan  Mac Address  Type  Port
	onyxRe = regexp.MustCompile(`^\s*(\d+)\s+(` + colonMAC + `)\s+\S+\s+(\S+)`)
	// vlan-name  MAC  flags  age  interface
	junosRe = regexp.MustCompile(`^\s*(\S+)\s+(` + colonMAC + `)\s+\S+\s+\S+\s+(\S+)`)
	// MAC  VLAN/VSI  PEVLAN  CEVLAN  Port  Type
	huaweiRe = regexp.MustCompile(`^\s*(` + dashedMAC + `)\s+(\d+)\S*\s+\S+\s+\S+\s+(\S+)\s+\S+`)
	// MAC  VLAN ID  State  Port
	h3cRe = regexp.MustCompile(`^\s*(` + dashedMAC + `)\s+(\d+)\s+\S+\s+(\S+)`)

	anyMACRe = regexp.MustCompile(`\b(` + dottedMAC + `|` + dashedMAC + `|` + colonMAC + `)\b`)
	hexMACRe = regexp.MustCompile(`Hex-STRING:\s*((?:[0-9a-fA-F]{2}\s+){5}[0-9a-fA-F]{2})`)

	junosUnitRe = regexp.MustCompile(`\.\d+$`)

	// Ports that carry the switch's own or control-plane addresses.
	nonLinkPorts = map[string]struct{}{
		"cpu": {}, "router": {}, "switch": {}, "drop": {}, "sup-eth1(r)": {}, "sup-eth2(r)": {},
		"vpc": {}, "nve1": {}, "-": {},
	}
)

// columnParser builds a table parser from a row regex whose groups are, in
// order, (vlan, mac, port) or (mac, vlan, port) when macFirst is set.
func columnParser(re *regexp.Regexp, macFirst bool, portFixup func(string) string) func([]string) TableParse {
	return func(outputs []string) TableParse {
		var res TableParse

		for _, out := range outputs {
			for _, line := range splitLines(out) {
				if !looksLikeDataLine(line) {
					continue
				}

				res.Lines++

				m := re.FindStringSubmatch(line)
				if m == nil {
					res.Skipped++
					continue
				}

				vlanTok, mac, port := m[1], m[2], m[3]
				if macFirst {
					mac, vlanTok = m[1], m[2]
				}

				if portFixup != nil {
					port = portFixup(port)
				}

				res.Entries = append(res.Entries, RawEntry{Address: mac, Port: port, VLAN: parseVLAN(vlanTok)})
			}
		}

		return res
	}
}

// parseCumulusFDB parses `bridge fdb show`:
//
//	44:38:39:00:00:03 dev swp7 vlan 100 master bridge
//
// Permanent and self entries are the switch's own addresses and are dropped.
func parseCumulusFDB(outputs []string) TableParse {
	var res TableParse

	for _, out := range outputs {
		for _, line := range splitLines(out) {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			res.Lines++

			if _, err := models.NormalizeMAC(fields[0]); err != nil {
				res.Skipped++
				continue
			}

			entry := RawEntry{Address: fields[0]}
			own := false

			for i := 1; i < len(fields); i++ {
				switch fields[i] {
				case "dev":
					if i+1 < len(fields) {
						entry.Port = fields[i+1]
						i++
					}
				case "vlan":
					if i+1 < len(fields) {
						entry.VLAN = parseVLAN(fields[i+1])
						i++
					}
				case "permanent", "self":
					own = true
				}
			}

			if own {
				res.Lines--
				continue
			}

			if entry.Port == "" {
				res.Skipped++
				continue
			}

			res.Entries = append(res.Entries, entry)
		}
	}

	return res
}

// BRIDGE-MIB and IF-MIB objects walked by the snmp-bridge dialect.
const (
	OIDDot1dTpFdbPort         = ".1.3.6.1.2.1.17.4.3.1.2"
	OIDDot1dTpFdbStatus       = ".1.3.6.1.2.1.17.4.3.1.3"
	OIDDot1dBasePortIfIndex   = ".1.3.6.1.2.1.17.1.4.1.2"
	OIDIfName                 = ".1.3.6.1.2.1.31.1.1.1.1"
	OIDDot1dBaseBridgeAddress = ".1.3.6.1.2.1.17.1.1.0"
	OIDIfPhysAddress          = ".1.3.6.1.2.1.2.2.1.6"
	OIDSysDescr               = ".1.3.6.1.2.1.1.1.0"

	fdbStatusSelf = 4
)

// parseBridgeMIB joins, in order, the walks of dot1dTpFdbPort,
// dot1dTpFdbStatus, dot1dBasePortIfIndex and ifName.
func parseBridgeMIB(outputs []string) TableParse {
	var res TableParse

	get := func(i int) string {
		if i < len(outputs) {
			return outputs[i]
		}

		return ""
	}

	status := make(map[string]int)
	for _, vb := range parseVarbinds(get(1), OIDDot1dTpFdbStatus) {
		if n, err := strconv.Atoi(vb.value); err == nil {
			status[vb.index] = n
		}
	}

	ifIndex := make(map[string]string)
	for _, vb := range parseVarbinds(get(2), OIDDot1dBasePortIfIndex) {
		ifIndex[vb.index] = vb.value
	}

	ifName := make(map[string]string)
	for _, vb := range parseVarbinds(get(3), OIDIfName) {
		ifName[vb.index] = strings.Trim(vb.value, `"`)
	}

	for _, vb := range parseVarbinds(get(0), OIDDot1dTpFdbPort) {
		res.Lines++

		mac, ok := macFromIndex(vb.index)
		if !ok {
			res.Skipped++
			continue
		}

		bridgePort := vb.value
		if bridgePort == "" || bridgePort == "0" || status[vb.index] == fdbStatusSelf {
			res.Lines--
			continue
		}

		port := "bridgeport-" + bridgePort
		if idx, ok := ifIndex[bridgePort]; ok {
			port = "ifindex-" + idx
			if name, ok := ifName[idx]; ok && name != "" {
				port = name
			}
		}

		res.Entries = append(res.Entries, RawEntry{Address: mac, Port: port})
	}

	return res
}

type varbind struct {
	index string
	value string
}

// parseVarbinds reads "<oid> = <TYPE>: <value>" lines under base and returns
// the index suffix and the value text.
func parseVarbinds(out, base string) []varbind {
	var vbs []varbind

	prefix := base + "."

	for _, line := range splitLines(out) {
		name, rest, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}

		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, ".") {
			name = "." + name
		}

		if !strings.HasPrefix(name, prefix) {
			continue
		}

		value := rest
		if _, v, ok := strings.Cut(rest, ": "); ok {
			value = v
		}

		vbs = append(vbs, varbind{index: strings.TrimPrefix(name, prefix), value: strings.TrimSpace(value)})
	}

	return vbs
}

// macFromIndex decodes the six decimal sub-identifiers of a dot1dTpFdb index.
func macFromIndex(index string) (string, bool) {
	parts := strings.Split(index, ".")
	if len(parts) != 6 {
		return "", false
	}

	octets := make([]string, 6)

	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return "", false
		}

		octets[i] = strconv.FormatInt(int64(n), 16)
	}

	return strings.Join(octets, ":"), true
}

// extractIdentity returns every usable hardware address printed in outputs.
func extractIdentity(outputs []string) []string {
	seen := make(map[string]struct{})

	var macs []string

	add := func(raw string) {
		mac, err := models.NormalizeMAC(raw)
		if err != nil || !models.IsUsableMAC(mac) {
			return
		}

		if _, dup := seen[mac]; dup {
			return
		}

		seen[mac] = struct{}{}
		macs = append(macs, mac)
	}

	for _, out := range outputs {
		for _, m := range hexMACRe.FindAllStringSubmatch(out, -1) {
			add(m[1])
		}

		for _, m := range anyMACRe.FindAllStringSubmatch(out, -1) {
			add(m[1])
		}
	}

	return macs
}

func splitLines(out string) []string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	return strings.Split(out, "\n")
}

// looksLikeDataLine drops blanks, rulers and header rows so they are not
// counted as skipped lines.
func looksLikeDataLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if strings.Trim(trimmed, "-+=* ") == "" {
		return false
	}

	return anyMACRe.MatchString(trimmed)
}

func parseVLAN(tok string) int {
	tok = strings.TrimPrefix(strings.ToLower(tok), "vlan")
	tok = strings.TrimPrefix(tok, "v")

	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 || n > 4095 {
		return 0
	}

	return n
}

func stripJunosUnit(port string) string {
	return junosUnitRe.ReplaceAllString(port, "")
}

func isNonLinkPort(port string) bool {
	_, ok := nonLinkPorts[strings.ToLower(port)]
	return ok
}
