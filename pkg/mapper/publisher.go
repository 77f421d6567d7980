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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
)

const (
	resultEventSource = "portmap/mapper"
	resultEventType   = "com.carverauto.portmap.result"
)

// JetStreamPublisher is the part of jetstream.JetStream the result
// publisher needs.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// ResultEvent is the CloudEvents envelope a result is published in.
type ResultEvent struct {
	SpecVersion     string                `json:"specversion"`
	ID              string                `json:"id"`
	Source          string                `json:"source"`
	Type            string                `json:"type"`
	DataContentType string                `json:"datacontenttype"`
	Subject         string                `json:"subject"`
	Time            *time.Time            `json:"time,omitempty"`
	Data            *models.MappingResult `json:"data"`
}

// NATSPublisher publishes finished results to a JetStream subject.
type NATSPublisher struct {
	js      JetStreamPublisher
	subject string
	timeout time.Duration
	logger  zerolog.Logger
}

var _ ResultPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(js JetStreamPublisher, subject string, timeout time.Duration, log logger.Logger) *NATSPublisher {
	if subject == "" {
		subject = defaultPublishSubject
	}

	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &NATSPublisher{
		js:      js,
		subject: subject,
		timeout: timeout,
		logger:  log.WithComponent("publisher"),
	}
}

// PublishResult sends result wrapped in a ResultEvent. The run id is used
// as the message id so a retried publish is deduplicated by the stream.
func (p *NATSPublisher) PublishResult(ctx context.Context, result *models.MappingResult) error {
	completed := result.CompletedAt

	event := ResultEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          resultEventSource,
		Type:            resultEventType,
		DataContentType: "application/json",
		Subject:         p.subject,
		Time:            &completed,
		Data:            result,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal result event: %w", ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var opts []jetstream.PublishOpt
	if result.RunID != "" {
		opts = append(opts, jetstream.WithMsgID(result.RunID))
	}

	ack, err := p.js.Publish(ctx, p.subject, payload, opts...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, p.subject, err)
	}

	p.logger.Debug().
		Str("run_id", result.RunID).
		Str("subject", p.subject).
		Uint64("seq", ack.Sequence).
		Msg("Published mapping result")

	return nil
}

// ConnectNATSPublisher connects to cfg.URL, makes sure the stream exists
// and returns a publisher bound to it. The caller closes the connection.
func ConnectNATSPublisher(ctx context.Context, cfg *PublishConfig, log logger.Logger) (*NATSPublisher, *nats.Conn, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, nil, ErrPublishURLRequired
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	opts := []nats.Option{nats.Name("portmap")}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.TLS != nil {
		if cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(cfg.TLS.CAFile))
		}

		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
			opts = append(opts, nats.ClientCert(cfg.TLS.CertFile, cfg.TLS.KeyFile))
		}
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err = js.Stream(ctx, cfg.Stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", cfg.Stream, err)
		}
	}

	return NewNATSPublisher(js, cfg.Subject, cfg.Timeout, log), nc, nil
}
