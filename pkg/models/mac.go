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

package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHardwareAddress = errors.New("invalid hardware address")

const (
	macOctets   = 6
	macHexChars = 12
)

// ZeroHardwareAddress is the canonical all-zero address reported by
// interfaces without a burned-in address.
const ZeroHardwareAddress = "00:00:00:00:00:00"

// NormalizeMAC converts the textual forms printed by switch CLIs, SNMP agents
// and Linux hosts into the canonical lowercase colon-separated form.
//
// Accepted inputs include aa:bb:cc:dd:ee:ff, AA-BB-CC-DD-EE-FF,
// aabb.ccdd.eeff, aabb-ccdd-eeff, aabbccddeeff, 0xaabbccddeeff,
// "AA BB CC DD EE FF" and single-digit octets such as 0:1b:2:3:4:5.
func NormalizeMAC(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "0x")

	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidHardwareAddress)
	}

	var hex string

	switch groups := strings.FieldsFunc(s, isMACSeparator); len(groups) {
	case 1:
		hex = groups[0]
	case macOctets:
		var b strings.Builder

		for _, g := range groups {
			switch len(g) {
			case 1:
				b.WriteByte('0')
				b.WriteString(g)
			case 2:
				b.WriteString(g)
			default:
				return "", fmt.Errorf("%w: %q", ErrInvalidHardwareAddress, raw)
			}
		}

		hex = b.String()
	case 3:
		for _, g := range groups {
			if len(g) != 4 {
				return "", fmt.Errorf("%w: %q", ErrInvalidHardwareAddress, raw)
			}
		}

		hex = strings.Join(groups, "")
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHardwareAddress, raw)
	}

	if len(hex) != macHexChars || !isHex(hex) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHardwareAddress, raw)
	}

	var out strings.Builder

	out.Grow(macHexChars + macOctets - 1)

	for i := 0; i < macHexChars; i += 2 {
		if i > 0 {
			out.WriteByte(':')
		}

		out.WriteString(hex[i : i+2])
	}

	return out.String(), nil
}

// MustNormalizeMAC is NormalizeMAC for literals known to be valid.
func MustNormalizeMAC(raw string) string {
	mac, err := NormalizeMAC(raw)
	if err != nil {
		panic(err)
	}

	return mac
}

// IsUsableMAC reports whether a canonical address can identify a link
// endpoint. Zero, broadcast and multicast addresses cannot.
func IsUsableMAC(canonical string) bool {
	if canonical == "" || canonical == ZeroHardwareAddress || canonical == "ff:ff:ff:ff:ff:ff" {
		return false
	}

	// I/G bit of the first octet marks group addresses.
	first := canonical[1]

	return !strings.ContainsRune("13579bdf", rune(first))
}

func isMACSeparator(r rune) bool {
	return r == ':' || r == '-' || r == '.' || r == ' ' || r == '\t'
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
