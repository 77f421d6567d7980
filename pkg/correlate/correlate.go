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

// Package correlate joins node interface records with switch address tables
// and classifies every observed port.
package correlate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carverauto/portmap/pkg/models"
)

// Result is the output of Correlate. Diagnostics only ever hold collision
// warnings.
type Result struct {
	Mappings    []models.PortMapping
	Diagnostics []models.DeviceDiagnostic
}

type portKey struct {
	deviceID string
	port     string
}

type entryKey struct {
	portKey
	mac string
}

// Correlate classifies every address table entry against an index of node
// addresses and an index of switch identity addresses:
//
//   - a node address gives NODE_LINK;
//   - another switch's own address gives INTER_SWITCH_LINK;
//   - anything else is UNKNOWN.
//
// A node address learned on several ports is resolved to one port: ports
// that are inter-switch links are discarded first, then the most recent
// observation wins, then the lower device id. Every such address gets a
// collision warning naming all ports it was seen on. Mappings come back
// sorted by switch, port and address.
func Correlate(
	nodes []models.NodeInterfaceRecord,
	tables map[string][]models.AddressTableEntry,
	identity map[string][]string,
) *Result {
	res := &Result{Mappings: []models.PortMapping{}}

	nodeIndex := buildNodeIndex(nodes, res)
	owners := buildIdentityIndex(identity, res)

	deviceIDs := make([]string, 0, len(tables))
	for id := range tables {
		deviceIDs = append(deviceIDs, id)
	}

	sort.Strings(deviceIDs)

	seen := make(map[entryKey]struct{})
	seenISL := make(map[string]struct{})
	islPorts := make(map[portKey]struct{})
	candidates := make(map[string][]models.AddressTableEntry)

	var candidateOrder []string

	for _, deviceID := range deviceIDs {
		for _, e := range tables[deviceID] {
			mac, err := models.NormalizeMAC(e.HardwareAddress)
			if err != nil {
				continue
			}

			e.HardwareAddress = mac
			e.DeviceID = deviceID

			key := entryKey{portKey{deviceID, e.PortName}, mac}
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}

			if _, ok := nodeIndex[mac]; ok {
				if _, started := candidates[mac]; !started {
					candidateOrder = append(candidateOrder, mac)
				}

				candidates[mac] = append(candidates[mac], e)

				continue
			}

			if owner, ok := owners[mac]; ok {
				if owner == deviceID {
					continue
				}

				islPorts[key.portKey] = struct{}{}

				islKey := deviceID + "\x00" + e.PortName + "\x00" + owner
				if _, dup := seenISL[islKey]; dup {
					continue
				}

				seenISL[islKey] = struct{}{}

				res.Mappings = append(res.Mappings, models.PortMapping{
					SwitchDeviceID:  deviceID,
					SwitchPortName:  e.PortName,
					PeerDeviceID:    owner,
					HardwareAddress: mac,
					VLANID:          e.VLANID,
					LinkClass:       models.LinkClassInterSwitch,
				})

				continue
			}

			res.Mappings = append(res.Mappings, models.PortMapping{
				SwitchDeviceID:  deviceID,
				SwitchPortName:  e.PortName,
				HardwareAddress: mac,
				VLANID:          e.VLANID,
				LinkClass:       models.LinkClassUnknown,
			})
		}
	}

	for _, mac := range candidateOrder {
		all := candidates[mac]
		winner, demoted := pickPort(all, islPorts)
		rec := nodeIndex[mac]

		if len(all) > 1 {
			res.Diagnostics = append(res.Diagnostics, portCollision(mac, rec, winner, all, demoted))
		}

		res.Mappings = append(res.Mappings, models.PortMapping{
			SwitchDeviceID:    winner.DeviceID,
			SwitchPortName:    winner.PortName,
			NodeHostID:        rec.HostID,
			NodeInterfaceName: rec.InterfaceName,
			HardwareAddress:   mac,
			VLANID:            winner.VLANID,
			LinkClass:         models.LinkClassNode,
		})
	}

	SortMappings(res.Mappings)

	return res
}

// SortMappings orders mappings by switch, port, link class and address.
func SortMappings(m []models.PortMapping) {
	sort.SliceStable(m, func(i, j int) bool {
		a, b := &m[i], &m[j]

		if a.SwitchDeviceID != b.SwitchDeviceID {
			return a.SwitchDeviceID < b.SwitchDeviceID
		}

		if a.SwitchPortName != b.SwitchPortName {
			return a.SwitchPortName < b.SwitchPortName
		}

		if a.LinkClass != b.LinkClass {
			return a.LinkClass < b.LinkClass
		}

		return a.HardwareAddress < b.HardwareAddress
	})
}

// buildNodeIndex keeps the first record per address and warns about the rest.
func buildNodeIndex(nodes []models.NodeInterfaceRecord, res *Result) map[string]models.NodeInterfaceRecord {
	index := make(map[string]models.NodeInterfaceRecord, len(nodes))

	for _, rec := range nodes {
		mac, err := models.NormalizeMAC(rec.HardwareAddress)
		if err != nil {
			continue
		}

		rec.HardwareAddress = mac

		if first, dup := index[mac]; dup {
			res.Diagnostics = append(res.Diagnostics, models.DeviceDiagnostic{
				DeviceID:  rec.HostID,
				Role:      models.DeviceRoleNode,
				Attempted: true,
				Succeeded: true,
				Kind:      models.DiagnosticKindCollision,
				ErrorDetail: fmt.Sprintf("hardware address %s on %s/%s already reported by %s/%s; keeping the first",
					mac, rec.HostID, rec.InterfaceName, first.HostID, first.InterfaceName),
			})

			continue
		}

		index[mac] = rec
	}

	return index
}

// buildIdentityIndex maps each switch identity address to its owner. An
// address claimed by two switches goes to the lower device id.
func buildIdentityIndex(identity map[string][]string, res *Result) map[string]string {
	deviceIDs := make([]string, 0, len(identity))
	for id := range identity {
		deviceIDs = append(deviceIDs, id)
	}

	sort.Strings(deviceIDs)

	owners := make(map[string]string)

	for _, id := range deviceIDs {
		for _, raw := range identity[id] {
			mac, err := models.NormalizeMAC(raw)
			if err != nil {
				continue
			}

			if owner, dup := owners[mac]; dup {
				if owner != id {
					res.Diagnostics = append(res.Diagnostics, models.DeviceDiagnostic{
						DeviceID:    id,
						Role:        models.DeviceRoleSwitch,
						Attempted:   true,
						Succeeded:   true,
						Kind:        models.DiagnosticKindCollision,
						ErrorDetail: fmt.Sprintf("identity address %s also claimed by %s; attributed to %s", mac, owner, owner),
					})
				}

				continue
			}

			owners[mac] = id
		}
	}

	return owners
}

// pickPort chooses the port a node address is attached to and returns the
// inter-switch candidates that were discarded before the tie-break.
func pickPort(all []models.AddressTableEntry, islPorts map[portKey]struct{}) (models.AddressTableEntry, []models.AddressTableEntry) {
	edge := make([]models.AddressTableEntry, 0, len(all))

	var demoted []models.AddressTableEntry

	for _, e := range all {
		if _, isl := islPorts[portKey{e.DeviceID, e.PortName}]; isl {
			demoted = append(demoted, e)
			continue
		}

		edge = append(edge, e)
	}

	if len(edge) == 0 {
		edge = append(edge, all...)
		demoted = nil
	}

	sort.SliceStable(edge, func(i, j int) bool {
		a, b := edge[i], edge[j]

		if !a.CollectedAt.Equal(b.CollectedAt) {
			return a.CollectedAt.After(b.CollectedAt)
		}

		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}

		return a.PortName < b.PortName
	})

	return edge[0], demoted
}

func portCollision(mac string, rec models.NodeInterfaceRecord, winner models.AddressTableEntry, all, demoted []models.AddressTableEntry) models.DeviceDiagnostic {
	detail := fmt.Sprintf("%s (%s/%s) seen on %s; kept %s/%s",
		mac, rec.HostID, rec.InterfaceName, portList(all), winner.DeviceID, winner.PortName)

	if len(demoted) > 0 {
		detail += "; demoted inter-switch " + portList(demoted)
	}

	return models.DeviceDiagnostic{
		DeviceID:    winner.DeviceID,
		Role:        models.DeviceRoleSwitch,
		Attempted:   true,
		Succeeded:   true,
		Kind:        models.DiagnosticKindCollision,
		ErrorDetail: detail,
	}
}

func portList(entries []models.AddressTableEntry) string {
	ports := make([]string, 0, len(entries))
	for _, e := range entries {
		ports = append(ports, e.DeviceID+"/"+e.PortName)
	}

	return strings.Join(ports, ", ")
}
