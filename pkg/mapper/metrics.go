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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/portmap/pkg/models"
)

const meterName = "github.com/carverauto/portmap/pkg/mapper"

type runMetrics struct {
	runs     metric.Int64Counter
	devices  metric.Int64Counter
	mappings metric.Int64Counter
	duration metric.Float64Histogram
}

func newRunMetrics(meter metric.Meter) (*runMetrics, error) {
	runs, err := meter.Int64Counter("portmap.runs",
		metric.WithDescription("Completed port mapping runs by status"))
	if err != nil {
		return nil, err
	}

	devices, err := meter.Int64Counter("portmap.devices",
		metric.WithDescription("Per-device collection outcomes by role and kind"))
	if err != nil {
		return nil, err
	}

	mappings, err := meter.Int64Counter("portmap.mappings",
		metric.WithDescription("Port mappings produced by link class"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("portmap.run.duration",
		metric.WithDescription("Wall time of a port mapping run"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &runMetrics{runs: runs, devices: devices, mappings: mappings, duration: duration}, nil
}

func (m *runMetrics) record(ctx context.Context, res *models.MappingResult, elapsed time.Duration) {
	status := attribute.String("status", string(res.Status))

	m.runs.Add(ctx, 1, metric.WithAttributes(status))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(status))

	for i := range res.Diagnostics {
		d := &res.Diagnostics[i]
		if d.Role == models.DeviceRolePipeline || d.Kind.Warning() {
			continue
		}

		outcome := "failed"
		if d.Succeeded {
			outcome = "succeeded"
		}

		m.devices.Add(ctx, 1, metric.WithAttributes(
			attribute.String("role", string(d.Role)),
			attribute.String("outcome", outcome),
			attribute.String("kind", string(d.Kind)),
		))
	}

	byClass := make(map[models.LinkClass]int64)
	for i := range res.Mappings {
		byClass[res.Mappings[i].LinkClass]++
	}

	for class, n := range byClass {
		m.mappings.Add(ctx, n, metric.WithAttributes(attribute.String("link_class", string(class))))
	}
}
