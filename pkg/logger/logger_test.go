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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesLevel(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want zerolog.Level
	}{
		{name: "named level", cfg: &Config{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "debug wins", cfg: &Config{Level: "error", Debug: true}, want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zl, err := build(tt.cfg, &bytes.Buffer{}, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, zl.GetLevel())
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty"})
	require.Error(t, err)
}

func TestNewWithWriterTagsComponent(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "info"}, &buf)
	require.NoError(t, err)

	l := log.WithComponent("switch-collector")
	l.Info().Str("device_id", "sw-1").Msg("collected")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "switch-collector", entry["component"])
	assert.Equal(t, "sw-1", entry["device_id"])
	assert.Equal(t, "collected", entry["message"])
}

func TestNewWithWriterHonoursLevel(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.SetDebug(true)
	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestInitializeMetricsDisabledWithoutEndpoint(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), MetricsConfig{})
	assert.True(t, errors.Is(err, ErrMetricsDisabled))
}

func TestInitializeTracingWithoutExporter(t *testing.T) {
	tp, err := InitializeTracing(context.Background(), TracingConfig{Logger: NewTestLogger()})
	require.NoError(t, err)

	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := GetTracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
