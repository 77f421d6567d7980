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
)

var (
	ErrNoSwitches        = errors.New("inventory has no switches")
	ErrRelayNotResolved  = errors.New("relay host has no management address")
	ErrDuplicateDeviceID = errors.New("duplicate device id in inventory")
	ErrMissingDeviceID   = errors.New("inventory entry without id")
)

// Dialect names a device command family. The set is closed; pkg/dialect
// owns the strategy for each value.
type Dialect string

const (
	DialectUnknown    Dialect = "unknown"
	DialectCiscoIOS   Dialect = "cisco-ios"
	DialectCiscoNXOS  Dialect = "cisco-nxos"
	DialectAristaEOS  Dialect = "arista-eos"
	DialectJunOS      Dialect = "juniper-junos"
	DialectHuaweiVRP  Dialect = "huawei-vrp"
	DialectH3CComware Dialect = "h3c-comware"
	DialectOnyx       Dialect = "nvidia-onyx"
	DialectCumulus    Dialect = "cumulus-linux"
	DialectSNMPBridge Dialect = "snmp-bridge"
)

// Resolved reports whether d names a concrete dialect.
func (d Dialect) Resolved() bool {
	return d != "" && d != DialectUnknown
}

// SwitchRecord is a switch under inspection. It is rebuilt from the
// inventory for every run; Dialect and Reachable are filled in during the
// run.
type SwitchRecord struct {
	DeviceID          string   `json:"device_id"`
	ManagementAddress string   `json:"management_address"`
	Dialect           Dialect  `json:"dialect,omitempty"`
	Reachable         bool     `json:"reachable"`
	IdentityAddresses []string `json:"identity_addresses,omitempty"`
	// RedundancyGroup and Side label the two halves of a redundant pair,
	// e.g. group "rack12-leaf" with sides "a" and "b".
	RedundancyGroup string `json:"redundancy_group,omitempty"`
	Side            string `json:"side,omitempty"`
}

// NodeHost is a compute node reachable through the relay host.
type NodeHost struct {
	HostID            string `json:"host_id"`
	ManagementAddress string `json:"management_address"`
	Enclosure         string `json:"enclosure,omitempty"`
	// ManagementInterface, when set, marks that interface's record as mgmt.
	ManagementInterface string `json:"management_interface,omitempty"`
}

// Inventory is the externally supplied description of what to map.
type Inventory struct {
	Switches     []SwitchRecord `json:"switches"`
	Nodes        []NodeHost     `json:"nodes"`
	RelayHostID  string         `json:"relay_host_id"`
	RelayAddress string         `json:"relay_address,omitempty"`
}

// Validate checks identifiers only. An empty node list is valid.
func (inv *Inventory) Validate() error {
	if len(inv.Switches) == 0 {
		return ErrNoSwitches
	}

	seen := make(map[string]struct{}, len(inv.Switches)+len(inv.Nodes))

	for i := range inv.Switches {
		id := inv.Switches[i].DeviceID
		if id == "" {
			return fmt.Errorf("%w: switch %d", ErrMissingDeviceID, i)
		}

		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDeviceID, id)
		}

		seen[id] = struct{}{}
	}

	for i := range inv.Nodes {
		if inv.Nodes[i].HostID == "" {
			return fmt.Errorf("%w: node %d", ErrMissingDeviceID, i)
		}
	}

	return nil
}

// RelayTarget returns the address used to reach the relay host.
func (inv *Inventory) RelayTarget() (string, error) {
	if inv.RelayAddress != "" {
		return inv.RelayAddress, nil
	}

	for i := range inv.Nodes {
		if inv.Nodes[i].HostID == inv.RelayHostID && inv.Nodes[i].ManagementAddress != "" {
			return inv.Nodes[i].ManagementAddress, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrRelayNotResolved, inv.RelayHostID)
}

// Switch returns the record for deviceID.
func (inv *Inventory) Switch(deviceID string) (SwitchRecord, bool) {
	for i := range inv.Switches {
		if inv.Switches[i].DeviceID == deviceID {
			return inv.Switches[i], true
		}
	}

	return SwitchRecord{}, false
}

// Node returns the host for hostID.
func (inv *Inventory) Node(hostID string) (NodeHost, bool) {
	for i := range inv.Nodes {
		if inv.Nodes[i].HostID == hostID {
			return inv.Nodes[i], true
		}
	}

	return NodeHost{}, false
}

// Clone returns a deep copy so a run never mutates the caller's inventory.
func (inv *Inventory) Clone() *Inventory {
	out := &Inventory{
		Switches:     make([]SwitchRecord, len(inv.Switches)),
		Nodes:        make([]NodeHost, len(inv.Nodes)),
		RelayHostID:  inv.RelayHostID,
		RelayAddress: inv.RelayAddress,
	}

	copy(out.Nodes, inv.Nodes)

	for i := range inv.Switches {
		sw := inv.Switches[i]
		sw.IdentityAddresses = append([]string(nil), sw.IdentityAddresses...)
		sw.Reachable = false
		out.Switches[i] = sw
	}

	return out
}
