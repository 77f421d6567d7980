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
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/session"
)

const (
	defaultWorkers            = 8
	defaultNodeParallelism    = 16
	defaultAttemptTimeout     = 10 * time.Second
	defaultCommandTimeout     = 30 * time.Second
	defaultDeviceTimeout      = 2 * time.Minute
	defaultBatchTimeout       = 5 * time.Minute
	defaultPipelineTimeout    = 10 * time.Minute
	defaultHostConnectTimeout = 5 * time.Second
	defaultSNMPRetries        = 1

	defaultPublishStream  = "PORTMAP"
	defaultPublishSubject = "portmap.results"
	defaultPublishTimeout = 10 * time.Second
)

// Config holds everything a run needs besides the inventory.
type Config struct {
	Workers            int           `json:"workers"`
	NodeParallelism    int           `json:"node_parallelism"`
	AttemptTimeout     time.Duration `json:"-"`
	CommandTimeout     time.Duration `json:"-"`
	DeviceTimeout      time.Duration `json:"-"`
	BatchTimeout       time.Duration `json:"-"`
	PipelineTimeout    time.Duration `json:"-"`
	HostConnectTimeout time.Duration `json:"-"`
	SNMPRetries        int           `json:"snmp_retries"`
	KnownHostsFile     string        `json:"known_hosts_file,omitempty"`

	NodeCredentials   []session.CredentialSet `json:"node_credentials"`
	SwitchCredentials []session.CredentialSet `json:"switch_credentials"`

	Publish *PublishConfig         `json:"publish,omitempty"`
	Logging *logger.Config         `json:"logging,omitempty"`
	Metrics *logger.ExporterConfig `json:"metrics,omitempty"`
	Tracing *logger.ExporterConfig `json:"tracing,omitempty"`
}

// PublishConfig selects the JetStream subject finished results go to.
type PublishConfig struct {
	URL       string            `json:"url"`
	Stream    string            `json:"stream"`
	Subject   string            `json:"subject"`
	CredsFile string            `json:"creds_file,omitempty"`
	TLS       *logger.TLSConfig `json:"tls,omitempty"`
	Timeout   time.Duration     `json:"-"`
}

// UnmarshalJSON accepts durations as Go duration strings ("90s", "5m").
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	aux := &struct {
		AttemptTimeout     string `json:"attempt_timeout"`
		CommandTimeout     string `json:"command_timeout"`
		DeviceTimeout      string `json:"device_timeout"`
		BatchTimeout       string `json:"batch_timeout"`
		PipelineTimeout    string `json:"pipeline_timeout"`
		HostConnectTimeout string `json:"host_connect_timeout"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"attempt_timeout", aux.AttemptTimeout, &c.AttemptTimeout},
		{"command_timeout", aux.CommandTimeout, &c.CommandTimeout},
		{"device_timeout", aux.DeviceTimeout, &c.DeviceTimeout},
		{"batch_timeout", aux.BatchTimeout, &c.BatchTimeout},
		{"pipeline_timeout", aux.PipelineTimeout, &c.PipelineTimeout},
		{"host_connect_timeout", aux.HostConnectTimeout, &c.HostConnectTimeout},
	}

	for _, d := range durations {
		if d.value == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", d.name, err)
		}

		*d.dst = parsed
	}

	return nil
}

// UnmarshalJSON accepts the publish timeout as a duration string.
func (p *PublishConfig) UnmarshalJSON(data []byte) error {
	type Alias PublishConfig

	aux := &struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Timeout != "" {
		duration, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid publish timeout format: %w", err)
		}

		p.Timeout = duration
	}

	return nil
}

// Validate rejects unusable settings and fills in defaults for the rest.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Workers)
	}

	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}

	if c.NodeParallelism < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidNodeParallelism, c.NodeParallelism)
	}

	if c.NodeParallelism == 0 {
		c.NodeParallelism = defaultNodeParallelism
	}

	if c.SNMPRetries < 0 {
		return ErrInvalidSNMPRetries
	}

	if c.SNMPRetries == 0 {
		c.SNMPRetries = defaultSNMPRetries
	}

	timeouts := []struct {
		dst *time.Duration
		def time.Duration
	}{
		{&c.AttemptTimeout, defaultAttemptTimeout},
		{&c.CommandTimeout, defaultCommandTimeout},
		{&c.DeviceTimeout, defaultDeviceTimeout},
		{&c.BatchTimeout, defaultBatchTimeout},
		{&c.PipelineTimeout, defaultPipelineTimeout},
		{&c.HostConnectTimeout, defaultHostConnectTimeout},
	}

	for _, t := range timeouts {
		if *t.dst < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidTimeout, *t.dst)
		}

		if *t.dst == 0 {
			*t.dst = t.def
		}
	}

	if len(c.NodeCredentials) == 0 {
		return ErrNoNodeCredentials
	}

	if len(c.SwitchCredentials) == 0 {
		return ErrNoSwitchCredentials
	}

	if c.Publish != nil {
		if err := c.Publish.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (p *PublishConfig) validate() error {
	if p.URL == "" {
		return ErrPublishURLRequired
	}

	if p.Stream == "" {
		p.Stream = defaultPublishStream
	}

	if p.Subject == "" {
		p.Subject = defaultPublishSubject
	}

	if p.Timeout <= 0 {
		p.Timeout = defaultPublishTimeout
	}

	return nil
}
