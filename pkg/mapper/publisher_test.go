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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
)

type fakeJetStream struct {
	subject  string
	payload  []byte
	opts     int
	deadline bool
	err      error
}

func (f *fakeJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject = subject
	f.payload = payload
	f.opts = len(opts)
	_, f.deadline = ctx.Deadline()

	if f.err != nil {
		return nil, f.err
	}

	return &jetstream.PubAck{Stream: "PORTMAP", Sequence: 7}, nil
}

func TestNATSPublisherPublishResult(t *testing.T) {
	js := &fakeJetStream{}
	p := NewNATSPublisher(js, "", 0, logger.NewTestLogger())

	completed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &models.MappingResult{
		RunID:       "run-1",
		Status:      models.StatusPartial,
		Mappings:    []models.PortMapping{{SwitchDeviceID: "sw-a", SwitchPortName: "Eth1/1", LinkClass: models.LinkClassNode}},
		Diagnostics: []models.DeviceDiagnostic{{DeviceID: "sw-b", Role: models.DeviceRoleSwitch, Attempted: true, Kind: models.DiagnosticKindAuth}},
		CompletedAt: completed,
	}

	require.NoError(t, p.PublishResult(context.Background(), res))

	assert.Equal(t, defaultPublishSubject, js.subject)
	assert.Equal(t, 1, js.opts)
	assert.True(t, js.deadline)

	var event ResultEvent
	require.NoError(t, json.Unmarshal(js.payload, &event))

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, resultEventType, event.Type)
	assert.NotEmpty(t, event.ID)
	require.NotNil(t, event.Time)
	assert.True(t, completed.Equal(*event.Time))
	require.NotNil(t, event.Data)
	assert.Equal(t, "run-1", event.Data.RunID)
	assert.Equal(t, models.StatusPartial, event.Data.Status)
	assert.Len(t, event.Data.Mappings, 1)
}

func TestNATSPublisherPublishFailure(t *testing.T) {
	js := &fakeJetStream{err: errors.New("nats: timeout")}
	p := NewNATSPublisher(js, "portmap.lab", time.Second, logger.NewTestLogger())

	err := p.PublishResult(context.Background(), &models.MappingResult{})
	require.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, "portmap.lab", js.subject)
	assert.Zero(t, js.opts)
}

func TestConnectNATSPublisherRequiresURL(t *testing.T) {
	_, _, err := ConnectNATSPublisher(context.Background(), &PublishConfig{}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrPublishURLRequired)

	_, _, err = ConnectNATSPublisher(context.Background(), nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrPublishURLRequired)
}
