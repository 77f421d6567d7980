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

package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/portmap/pkg/models"
)

var (
	t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Second)
)

func entry(device, port, mac string, at time.Time) models.AddressTableEntry {
	return models.AddressTableEntry{HardwareAddress: mac, PortName: port, DeviceID: device, CollectedAt: at}
}

func TestCorrelateEmptyInput(t *testing.T) {
	res := Correlate(nil, nil, nil)

	require.NotNil(t, res.Mappings)
	assert.Empty(t, res.Mappings)
	assert.Empty(t, res.Diagnostics)
}

func TestCorrelateNodeLink(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{{HostID: "node-7", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:01"}}
	tables := map[string][]models.AddressTableEntry{
		"sw-1": {entry("sw-1", "port-12", "aa:bb:cc:dd:ee:01", t0)},
	}

	res := Correlate(nodes, tables, nil)

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, models.PortMapping{
		SwitchDeviceID:    "sw-1",
		SwitchPortName:    "port-12",
		NodeHostID:        "node-7",
		NodeInterfaceName: "eth0",
		HardwareAddress:   "aa:bb:cc:dd:ee:01",
		LinkClass:         models.LinkClassNode,
	}, res.Mappings[0])
	assert.Empty(t, res.Diagnostics)
}

func TestCorrelateInterSwitchLinks(t *testing.T) {
	identity := map[string][]string{
		"sw-1": {"02:00:00:00:00:01"},
		"sw-2": {"02:00:00:00:00:02"},
	}
	tables := map[string][]models.AddressTableEntry{
		"sw-1": {entry("sw-1", "Eth1/49", "02:00:00:00:00:02", t0)},
		"sw-2": {entry("sw-2", "Eth1/50", "02:00:00:00:00:01", t0)},
	}

	res := Correlate(nil, tables, identity)

	require.Len(t, res.Mappings, 2)
	assert.Equal(t, models.LinkClassInterSwitch, res.Mappings[0].LinkClass)
	assert.Equal(t, "sw-1", res.Mappings[0].SwitchDeviceID)
	assert.Equal(t, "sw-2", res.Mappings[0].PeerDeviceID)
	assert.Equal(t, models.LinkClassInterSwitch, res.Mappings[1].LinkClass)
	assert.Equal(t, "sw-2", res.Mappings[1].SwitchDeviceID)
	assert.Equal(t, "sw-1", res.Mappings[1].PeerDeviceID)
}

func TestCorrelateClassifiesEveryEntry(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{{HostID: "n1", InterfaceName: "eth0", HardwareAddress: "AA-BB-CC-00-00-01"}}
	identity := map[string][]string{"sw-2": {"0200.0000.0002"}}
	tables := map[string][]models.AddressTableEntry{
		"sw-1": {
			entry("sw-1", "Gi1/0/1", "aabb.cc00.0001", t0),
			entry("sw-1", "Gi1/0/48", "02:00:00:00:00:02", t0),
			entry("sw-1", "Gi1/0/7", "de:ad:be:ef:00:07", t0),
		},
	}

	res := Correlate(nodes, tables, identity)

	require.Len(t, res.Mappings, 3)

	byPort := make(map[string]models.PortMapping)
	for _, m := range res.Mappings {
		byPort[m.SwitchPortName] = m
	}

	assert.Equal(t, models.LinkClassNode, byPort["Gi1/0/1"].LinkClass)
	assert.Equal(t, "n1", byPort["Gi1/0/1"].NodeHostID)
	assert.Equal(t, models.LinkClassInterSwitch, byPort["Gi1/0/48"].LinkClass)
	assert.Equal(t, models.LinkClassUnknown, byPort["Gi1/0/7"].LinkClass)
	assert.Empty(t, byPort["Gi1/0/7"].NodeHostID)
}

func TestCorrelateMissingNodeIsUnknown(t *testing.T) {
	tables := map[string][]models.AddressTableEntry{
		"sw-1": {entry("sw-1", "port-3", "aa:bb:cc:dd:ee:09", t0)},
	}

	res := Correlate([]models.NodeInterfaceRecord{}, tables, nil)

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, models.LinkClassUnknown, res.Mappings[0].LinkClass)
}

func TestCorrelateDuplicateNodeAddress(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{
		{HostID: "n1", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:01"},
		{HostID: "n2", InterfaceName: "eth0", HardwareAddress: "AA:BB:CC:DD:EE:01"},
	}
	tables := map[string][]models.AddressTableEntry{
		"sw-1": {entry("sw-1", "p1", "aa:bb:cc:dd:ee:01", t0)},
	}

	res := Correlate(nodes, tables, nil)

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "n1", res.Mappings[0].NodeHostID)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticKindCollision, res.Diagnostics[0].Kind)
	assert.Equal(t, "n2", res.Diagnostics[0].DeviceID)
}

func TestCorrelateTieBreak(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{{HostID: "n1", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:01"}}

	tests := []struct {
		name       string
		tables     map[string][]models.AddressTableEntry
		wantDevice string
		wantPort   string
	}{
		{
			name: "most recent wins",
			tables: map[string][]models.AddressTableEntry{
				"sw-a": {entry("sw-a", "p1", "aa:bb:cc:dd:ee:01", t0)},
				"sw-b": {entry("sw-b", "p3", "aa:bb:cc:dd:ee:01", t1)},
			},
			wantDevice: "sw-b",
			wantPort:   "p3",
		},
		{
			name: "exact tie goes to lower device id",
			tables: map[string][]models.AddressTableEntry{
				"sw-b": {entry("sw-b", "p3", "aa:bb:cc:dd:ee:01", t0)},
				"sw-a": {entry("sw-a", "p1", "aa:bb:cc:dd:ee:01", t0)},
			},
			wantDevice: "sw-a",
			wantPort:   "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Correlate(nodes, tt.tables, nil)

			require.Len(t, res.Mappings, 1)
			assert.Equal(t, tt.wantDevice, res.Mappings[0].SwitchDeviceID)
			assert.Equal(t, tt.wantPort, res.Mappings[0].SwitchPortName)

			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, models.DiagnosticKindCollision, res.Diagnostics[0].Kind)
			assert.Contains(t, res.Diagnostics[0].ErrorDetail, "kept "+tt.wantDevice+"/"+tt.wantPort)
		})
	}
}

func TestCorrelateDemotesUplinkCandidates(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{{HostID: "n1", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:01"}}
	identity := map[string][]string{
		"leaf-1":  {"02:00:00:00:00:01"},
		"spine-1": {"02:00:00:00:00:99"},
	}
	tables := map[string][]models.AddressTableEntry{
		"leaf-1": {
			entry("leaf-1", "Eth1/1", "aa:bb:cc:dd:ee:01", t0),
			entry("leaf-1", "Eth1/49", "02:00:00:00:00:99", t0),
		},
		"spine-1": {
			entry("spine-1", "Eth1/1", "aa:bb:cc:dd:ee:01", t1),
			entry("spine-1", "Eth1/1", "02:00:00:00:00:01", t1),
		},
	}

	res := Correlate(nodes, tables, identity)

	var node []models.PortMapping

	for _, m := range res.Mappings {
		if m.LinkClass == models.LinkClassNode {
			node = append(node, m)
		}
	}

	require.Len(t, node, 1)
	assert.Equal(t, "leaf-1", node[0].SwitchDeviceID)
	assert.Equal(t, "Eth1/1", node[0].SwitchPortName)

	require.Len(t, res.Diagnostics, 1)
	warn := res.Diagnostics[0]
	assert.Equal(t, models.DiagnosticKindCollision, warn.Kind)
	assert.Equal(t, "leaf-1", warn.DeviceID)
	assert.True(t, warn.Succeeded)
	assert.Contains(t, warn.ErrorDetail, "seen on leaf-1/Eth1/1, spine-1/Eth1/1")
	assert.Contains(t, warn.ErrorDetail, "kept leaf-1/Eth1/1")
	assert.Contains(t, warn.ErrorDetail, "demoted inter-switch spine-1/Eth1/1")
}

func TestCorrelateCollapsesVLANDuplicates(t *testing.T) {
	a := entry("sw-1", "p1", "de:ad:be:ef:00:01", t0)
	a.VLANID = 10
	b := a
	b.VLANID = 20

	res := Correlate(nil, map[string][]models.AddressTableEntry{"sw-1": {a, b}}, nil)

	require.Len(t, res.Mappings, 1)
	assert.Equal(t, 10, res.Mappings[0].VLANID)
	assert.Empty(t, res.Diagnostics)
}

func TestCorrelateIsDeterministic(t *testing.T) {
	nodes := []models.NodeInterfaceRecord{
		{HostID: "n1", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:01"},
		{HostID: "n2", InterfaceName: "eth0", HardwareAddress: "aa:bb:cc:dd:ee:02"},
	}
	tables := map[string][]models.AddressTableEntry{
		"sw-2": {entry("sw-2", "p2", "aa:bb:cc:dd:ee:02", t0), entry("sw-2", "p9", "de:ad:be:ef:00:09", t0)},
		"sw-1": {entry("sw-1", "p1", "aa:bb:cc:dd:ee:01", t0)},
	}

	first := Correlate(nodes, tables, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Mappings, Correlate(nodes, tables, nil).Mappings)
	}

	assert.Equal(t, "sw-1", first.Mappings[0].SwitchDeviceID)
	assert.Equal(t, "p9", first.Mappings[2].SwitchPortName)
}
