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

// Package designation assigns stable, human-readable link labels.
package designation

import (
	"fmt"
	"strings"

	"github.com/carverauto/portmap/pkg/models"
)

// Encoder labels mappings using the inventory's enclosure grouping and
// redundant-pair sides. It is not safe for concurrent use.
type Encoder struct {
	switches map[string]models.SwitchRecord
	nodes    map[string]models.NodeHost
}

func NewEncoder(inv *models.Inventory) *Encoder {
	e := &Encoder{
		switches: make(map[string]models.SwitchRecord),
		nodes:    make(map[string]models.NodeHost),
	}

	if inv == nil {
		return e
	}

	for _, sw := range inv.Switches {
		e.switches[sw.DeviceID] = sw
	}

	for _, n := range inv.Nodes {
		e.nodes[n.HostID] = n
	}

	return e
}

// Label names a switch: "<group>-<side>" for a member of a redundant pair,
// otherwise its device id.
func (e *Encoder) Label(deviceID string) string {
	sw, ok := e.switches[deviceID]
	if !ok || sw.RedundancyGroup == "" {
		return deviceID
	}

	if sw.Side == "" {
		return sw.RedundancyGroup + "-" + deviceID
	}

	return sw.RedundancyGroup + "-" + sw.Side
}

// Designate returns the base designation of m, without collision handling.
//
//	NODE_LINK          <enclosure>/<host>/<iface>@<switch>/<port>
//	INTER_SWITCH_LINK  ISL:<switch>/<port>><peer>
//	UNKNOWN            UNK:<switch>/<port>/<address>
func (e *Encoder) Designate(m *models.PortMapping) string {
	sw := clean(e.Label(m.SwitchDeviceID)) + "/" + clean(m.SwitchPortName)

	switch m.LinkClass {
	case models.LinkClassNode:
		node := clean(m.NodeHostID) + "/" + clean(m.NodeInterfaceName)
		if host, ok := e.nodes[m.NodeHostID]; ok && host.Enclosure != "" {
			node = clean(host.Enclosure) + "/" + node
		}

		return node + "@" + sw
	case models.LinkClassInterSwitch:
		return "ISL:" + sw + ">" + clean(e.Label(m.PeerDeviceID))
	default:
		return "UNK:" + sw + "/" + m.HardwareAddress
	}
}

// Encode sets Designation on every mapping, in order. A designation already
// taken in this run gets the first free "#<n>" suffix, starting at 2, and a
// collision warning. No mapping is dropped.
func (e *Encoder) Encode(mappings []models.PortMapping) []models.DeviceDiagnostic {
	var diags []models.DeviceDiagnostic

	used := make(map[string]struct{}, len(mappings))

	for i := range mappings {
		m := &mappings[i]
		base := e.Designate(m)
		name := base

		for n := 2; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}

			name = fmt.Sprintf("%s#%d", base, n)
		}

		if name != base {
			diags = append(diags, models.DeviceDiagnostic{
				DeviceID:    m.SwitchDeviceID,
				Role:        models.DeviceRoleSwitch,
				Attempted:   true,
				Succeeded:   true,
				Kind:        models.DiagnosticKindCollision,
				ErrorDetail: fmt.Sprintf("designation %q already assigned; using %q", base, name),
			})
		}

		used[name] = struct{}{}
		m.Designation = name
	}

	return diags
}

// clean replaces the separator characters of the designation grammar so a
// name can never forge a suffix or a link arrow.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '#', '@', '>':
			return '_'
		}

		return r
	}, s)
}
