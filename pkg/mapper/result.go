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

package mapper

import (
	"fmt"

	"github.com/carverauto/portmap/pkg/models"
)

// Coverage counts how much of the inventory a run reached.
type Coverage struct {
	Switches   int
	SwitchesOK int
	Nodes      int
	// NodeFailed is set when the relay-side batch failed as a whole.
	NodeFailed bool
	NodeGaps   int
}

// Outcome is what the collectors and the correlation pass produced.
type Outcome struct {
	Coverage    Coverage
	Mappings    []models.PortMapping
	Diagnostics []models.DeviceDiagnostic
}

// ComputeStatus derives the result status from coverage alone; warnings
// never enter into it.
//
//	UNAVAILABLE  no switch address table was collected
//	AVAILABLE    every switch and every node host was read
//	PARTIAL      anything in between, including a failed node side
func ComputeStatus(c Coverage) models.ResultStatus {
	switch {
	case c.SwitchesOK == 0:
		return models.StatusUnavailable
	case c.SwitchesOK == c.Switches && !c.NodeFailed && c.NodeGaps == 0:
		return models.StatusAvailable
	default:
		return models.StatusPartial
	}
}

// Assemble builds the result for o. Mappings and Diagnostics are never nil,
// diagnostics are sorted, and an AVAILABLE run with nothing to draw carries
// an empty_result warning.
func Assemble(o *Outcome) *models.MappingResult {
	res := &models.MappingResult{
		Status:      ComputeStatus(o.Coverage),
		Mappings:    o.Mappings,
		Diagnostics: make([]models.DeviceDiagnostic, 0, len(o.Diagnostics)+1),
	}

	if res.Mappings == nil {
		res.Mappings = []models.PortMapping{}
	}

	res.Diagnostics = append(res.Diagnostics, o.Diagnostics...)

	if res.Status == models.StatusAvailable {
		if anomaly, ok := emptyResult(res); ok {
			res.Diagnostics = append(res.Diagnostics, anomaly)
		}
	}

	models.SortDiagnostics(res.Diagnostics)

	return res
}

func emptyResult(res *models.MappingResult) (models.DeviceDiagnostic, bool) {
	primary := len(res.Topology())
	if primary > 0 {
		return models.DeviceDiagnostic{}, false
	}

	detail := "every device was read but no mapping was produced"
	if n := len(res.Mappings); n > 0 {
		detail = fmt.Sprintf("every device was read but all %d mapping(s) are unclassified", n)
	}

	return models.DeviceDiagnostic{
		DeviceID:    models.PipelineDeviceID,
		Role:        models.DeviceRolePipeline,
		Attempted:   true,
		Succeeded:   true,
		Kind:        models.DiagnosticKindEmptyResult,
		ErrorDetail: detail,
	}, true
}
