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

import "sort"

// DiagnosticKind is the error category behind a diagnostic.
type DiagnosticKind string

const (
	DiagnosticKindNone              DiagnosticKind = ""
	DiagnosticKindConnect           DiagnosticKind = "connect"
	DiagnosticKindAuth              DiagnosticKind = "auth"
	DiagnosticKindTimeout           DiagnosticKind = "timeout"
	DiagnosticKindCanceled          DiagnosticKind = "canceled"
	DiagnosticKindDialectUnresolved DiagnosticKind = "dialect_unresolved"
	DiagnosticKindQuery             DiagnosticKind = "query"
	DiagnosticKindParse             DiagnosticKind = "parse"
	DiagnosticKindCollection        DiagnosticKind = "collection"
	DiagnosticKindNodeGap           DiagnosticKind = "node_gap"
	DiagnosticKindCollision         DiagnosticKind = "collision"
	DiagnosticKindEmptyResult       DiagnosticKind = "empty_result"
	DiagnosticKindInventory         DiagnosticKind = "inventory"
)

// Warning reports whether the kind is informational and never affects status.
func (k DiagnosticKind) Warning() bool {
	return k == DiagnosticKindCollision || k == DiagnosticKindEmptyResult
}

// DeviceRole says which side of the pipeline produced a diagnostic.
type DeviceRole string

const (
	DeviceRoleSwitch   DeviceRole = "switch"
	DeviceRoleNode     DeviceRole = "node"
	DeviceRoleRelay    DeviceRole = "relay"
	DeviceRolePipeline DeviceRole = "pipeline"
)

// PipelineDeviceID is the device id used for run-level diagnostics.
const PipelineDeviceID = "pipeline"

// DeviceDiagnostic records what happened to one device, or one run-level
// warning.
type DeviceDiagnostic struct {
	DeviceID     string         `json:"device_id"`
	Role         DeviceRole     `json:"role"`
	Attempted    bool           `json:"attempted"`
	Succeeded    bool           `json:"succeeded"`
	DialectTried []Dialect      `json:"dialect_tried,omitempty"`
	Kind         DiagnosticKind `json:"kind,omitempty"`
	ErrorDetail  string         `json:"error_detail,omitempty"`
	SkippedLines int            `json:"skipped_lines,omitempty"`
	EntryCount   int            `json:"entry_count,omitempty"`
}

// SortDiagnostics orders diagnostics by device id, then role, then kind.
func SortDiagnostics(d []DeviceDiagnostic) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].DeviceID != d[j].DeviceID {
			return d[i].DeviceID < d[j].DeviceID
		}

		if d[i].Role != d[j].Role {
			return d[i].Role < d[j].Role
		}

		return d[i].Kind < d[j].Kind
	})
}
