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

import "time"

// AddressTableEntry is one learned address on a switch port.
type AddressTableEntry struct {
	HardwareAddress string    `json:"hardware_address"`
	PortName        string    `json:"port_name"`
	DeviceID        string    `json:"device_id"`
	VLANID          int       `json:"vlan_id,omitempty"`
	CollectedAt     time.Time `json:"collected_at"`
}

// InterfaceRole classifies a node interface.
type InterfaceRole string

const (
	RoleData InterfaceRole = "data"
	RoleMgmt InterfaceRole = "mgmt"
	RoleIPMI InterfaceRole = "ipmi"
)

// NodeInterfaceRecord is one interface reported by a node host.
type NodeInterfaceRecord struct {
	HostID          string        `json:"host_id"`
	InterfaceName   string        `json:"interface_name"`
	HardwareAddress string        `json:"hardware_address"`
	Role            InterfaceRole `json:"role,omitempty"`
}

// LinkClass is the classification of a switch port observation.
type LinkClass string

const (
	LinkClassNode        LinkClass = "NODE_LINK"
	LinkClassInterSwitch LinkClass = "INTER_SWITCH_LINK"
	LinkClassUnknown     LinkClass = "UNKNOWN"
)

// PortMapping ties a switch port to what was observed behind it.
type PortMapping struct {
	SwitchDeviceID    string    `json:"switch_device_id"`
	SwitchPortName    string    `json:"switch_port_name"`
	NodeHostID        string    `json:"node_host_id,omitempty"`
	NodeInterfaceName string    `json:"node_interface_name,omitempty"`
	PeerDeviceID      string    `json:"peer_device_id,omitempty"`
	HardwareAddress   string    `json:"hardware_address"`
	VLANID            int       `json:"vlan_id,omitempty"`
	LinkClass         LinkClass `json:"link_class"`
	Designation       string    `json:"designation"`
}

// Primary reports whether the mapping belongs in the rendered topology.
func (m *PortMapping) Primary() bool {
	return m.LinkClass == LinkClassNode || m.LinkClass == LinkClassInterSwitch
}

// ResultStatus summarizes coverage of a run.
type ResultStatus string

const (
	StatusAvailable   ResultStatus = "AVAILABLE"
	StatusPartial     ResultStatus = "PARTIAL"
	StatusUnavailable ResultStatus = "UNAVAILABLE"
)

// MappingResult is the only artifact a run hands to its consumers.
type MappingResult struct {
	RunID       string             `json:"run_id"`
	Status      ResultStatus       `json:"status"`
	Mappings    []PortMapping      `json:"mappings"`
	Diagnostics []DeviceDiagnostic `json:"diagnostics"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

// Topology returns the NODE_LINK and INTER_SWITCH_LINK mappings.
func (r *MappingResult) Topology() []PortMapping {
	out := make([]PortMapping, 0, len(r.Mappings))

	for i := range r.Mappings {
		if r.Mappings[i].Primary() {
			out = append(out, r.Mappings[i])
		}
	}

	return out
}

// Unclassified returns the UNKNOWN mappings retained for troubleshooting.
func (r *MappingResult) Unclassified() []PortMapping {
	var out []PortMapping

	for i := range r.Mappings {
		if !r.Mappings[i].Primary() {
			out = append(out, r.Mappings[i])
		}
	}

	return out
}

// Troubleshooting returns the diagnostics a report appendix renders: every
// failed device and every warning.
func (r *MappingResult) Troubleshooting() []DeviceDiagnostic {
	var out []DeviceDiagnostic

	for i := range r.Diagnostics {
		d := r.Diagnostics[i]
		if !d.Succeeded || d.Kind != DiagnosticKindNone {
			out = append(out, d)
		}
	}

	return out
}

// Usable reports whether the topology can be rendered at all.
func (r *MappingResult) Usable() bool {
	return r.Status != StatusUnavailable
}
