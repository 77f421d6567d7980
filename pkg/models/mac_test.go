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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"colon lowercase", "aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff"},
		{"colon uppercase", "AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff"},
		{"dash separated", "AA-BB-CC-DD-EE-FF", "aa:bb:cc:dd:ee:ff"},
		{"cisco dotted", "aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff"},
		{"huawei dashed quads", "aabb-ccdd-eeff", "aa:bb:cc:dd:ee:ff"},
		{"bare", "AABBCCDDEEFF", "aa:bb:cc:dd:ee:ff"},
		{"hex prefix", "0xaabbccddeeff", "aa:bb:cc:dd:ee:ff"},
		{"snmp hex string", "AA BB CC DD EE FF", "aa:bb:cc:dd:ee:ff"},
		{"single nibble octets", "0:1b:2:3:4:5", "00:1b:02:03:04:05"},
		{"surrounding whitespace", "  00:1b:21:3a:4f:10\n", "00:1b:21:3a:4f:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeMACRejectsGarbage(t *testing.T) {
	for _, input := range []string{
		"",
		"aa:bb:cc:dd:ee",
		"aa:bb:cc:dd:ee:ff:00",
		"zz:bb:cc:dd:ee:ff",
		"aab.ccdd.eeff",
		"aabbccddeef",
		"Gi1/0/1",
		"abc:bb:cc:dd:ee:f",
	} {
		_, err := NormalizeMAC(input)
		require.ErrorIs(t, err, ErrInvalidHardwareAddress, input)
	}
}

func TestNormalizeMACIsIdempotent(t *testing.T) {
	for _, input := range []string{
		"AABB.CCDD.EEFF",
		"0-1-2-3-4-5",
		"00 1A 2B 3C 4D 5E",
		"f8f2.1e34.0a0b",
	} {
		once, err := NormalizeMAC(input)
		require.NoError(t, err)

		twice, err := NormalizeMAC(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestTextualVariantsCompareEqual(t *testing.T) {
	a := MustNormalizeMAC("00:1B:21:3A:4F:10")
	b := MustNormalizeMAC("001b.213a.4f10")
	c := MustNormalizeMAC("00-1b-21-3a-4f-10")

	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
}

func TestIsUsableMAC(t *testing.T) {
	assert.True(t, IsUsableMAC("00:1b:21:3a:4f:10"))
	assert.False(t, IsUsableMAC(ZeroHardwareAddress))
	assert.False(t, IsUsableMAC("ff:ff:ff:ff:ff:ff"))
	assert.False(t, IsUsableMAC("01:00:5e:00:00:01"))
	assert.False(t, IsUsableMAC("33:33:00:00:00:01"))
	assert.False(t, IsUsableMAC(""))
}
