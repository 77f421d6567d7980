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

// Package mapper orchestrates one port-mapping run: both collectors, the
// correlation pass and designation, then result assembly and publication.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/portmap/pkg/collector"
	"github.com/carverauto/portmap/pkg/correlate"
	"github.com/carverauto/portmap/pkg/designation"
	"github.com/carverauto/portmap/pkg/dialect"
	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
)

const tracerName = "github.com/carverauto/portmap/pkg/mapper"

// Engine runs the pipeline. It keeps no state between runs and may be
// shared by concurrent callers.
type Engine struct {
	cfg       *Config
	switches  *collector.SwitchCollector
	nodes     *collector.NodeCollector
	publisher ResultPublisher
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   *runMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

var _ Mapper = (*Engine)(nil)

// Option customizes an Engine.
type Option func(*Engine)

// WithPublisher publishes every finished result.
func WithPublisher(p ResultPublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func WithMeter(m metric.Meter) Option {
	return func(e *Engine) {
		e.meter = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates cfg, applying its defaults, and wires the collectors
// to dialers.
func NewEngine(cfg *Config, log logger.Logger, dialers map[session.Transport]session.Dialer, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(dialers) == 0 {
		return nil, ErrNoDialers
	}

	e := &Engine{
		cfg:    cfg,
		tracer: logger.GetTracer(tracerName),
		meter:  otel.Meter(meterName),
		logger: log.WithComponent("mapper"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	m, err := newRunMetrics(e.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics instruments: %w", err)
	}

	e.metrics = m

	client := session.NewClient(log, cfg.AttemptTimeout, dialers)

	e.switches = collector.NewSwitchCollector(log, client, dialect.NewAdapter(log), cfg.SwitchCredentials,
		collector.SwitchOptions{Workers: cfg.Workers, DeviceTimeout: cfg.DeviceTimeout})
	e.nodes = collector.NewNodeCollector(log, client, cfg.NodeCredentials,
		collector.NodeOptions{
			BatchTimeout:       cfg.BatchTimeout,
			HostConnectTimeout: cfg.HostConnectTimeout,
			Parallelism:        cfg.NodeParallelism,
		})

	return e, nil
}

// Run maps inv once under the pipeline timeout. The result is never nil:
// a run that could not start is UNAVAILABLE with the reason in its
// diagnostics. inv is not modified.
func (e *Engine) Run(ctx context.Context, inv *models.Inventory) *models.MappingResult {
	started := e.now()
	runID := uuid.New().String()

	ctx, span := e.tracer.Start(ctx, "portmap.run", trace.WithAttributes(attribute.String("portmap.run_id", runID)))
	defer span.End()

	log := e.logger.With().Str("run_id", runID).Logger()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.PipelineTimeout)
	res := e.execute(runCtx, inv, log)

	cancel()

	res.RunID = runID
	res.StartedAt = started
	res.CompletedAt = e.now()

	span.SetAttributes(
		attribute.String("portmap.status", string(res.Status)),
		attribute.Int("portmap.mappings", len(res.Mappings)),
	)

	if res.Status == models.StatusUnavailable {
		span.SetStatus(codes.Error, "no switch address table collected")
	}

	e.metrics.record(ctx, res, res.CompletedAt.Sub(started))

	log.Info().
		Str("status", string(res.Status)).
		Int("mappings", len(res.Mappings)).
		Int("troubleshooting", len(res.Troubleshooting())).
		Dur("elapsed", res.CompletedAt.Sub(started)).
		Msg("Port mapping run finished")

	if e.publisher != nil {
		if err := e.publisher.PublishResult(ctx, res); err != nil {
			span.RecordError(err)
			log.Warn().Err(err).Msg("Failed to publish mapping result")
		}
	}

	return res
}

func (e *Engine) execute(ctx context.Context, inv *models.Inventory, log zerolog.Logger) *models.MappingResult {
	if inv == nil {
		inv = &models.Inventory{}
	}

	run := inv.Clone()

	if err := run.Validate(); err != nil {
		log.Warn().Err(err).Msg("Inventory rejected")

		return Assemble(&Outcome{
			Coverage: Coverage{Switches: len(run.Switches), Nodes: len(run.Nodes)},
			Diagnostics: []models.DeviceDiagnostic{{
				DeviceID:    models.PipelineDeviceID,
				Role:        models.DeviceRolePipeline,
				Kind:        models.DiagnosticKindInventory,
				ErrorDetail: err.Error(),
			}},
		})
	}

	var (
		switchRes *collector.SwitchResult
		nodeRes   *collector.NodeResult
		g         errgroup.Group
	)

	// The two sides are independent; a node-side failure must not cancel
	// the switch side, so the group carries no shared context.
	g.Go(func() error {
		switchRes = e.collectSwitches(ctx, run.Switches)
		return nil
	})

	g.Go(func() error {
		var err error

		nodeRes, err = e.collectNodes(ctx, run)

		return err
	})

	nodeErr := g.Wait()
	if nodeErr != nil {
		log.Warn().Err(nodeErr).Msg("Node side failed, continuing with switch data only")
	}

	corr := correlate.Correlate(nodeRes.Records, switchRes.Tables, switchRes.Identity)
	collisions := designation.NewEncoder(run).Encode(corr.Mappings)

	diags := make([]models.DeviceDiagnostic, 0,
		len(switchRes.Diagnostics)+len(nodeRes.Diagnostics)+len(corr.Diagnostics)+len(collisions)+1)
	diags = append(diags, switchRes.Diagnostics...)
	diags = append(diags, nodeRes.Diagnostics...)
	diags = append(diags, corr.Diagnostics...)
	diags = append(diags, collisions...)

	if err := ctx.Err(); err != nil {
		diags = append(diags, pipelineCutShort(err))
	}

	return Assemble(&Outcome{
		Coverage: Coverage{
			Switches:   len(run.Switches),
			SwitchesOK: switchRes.Succeeded(),
			Nodes:      len(run.Nodes),
			NodeFailed: nodeErr != nil,
			NodeGaps:   nodeRes.Gaps,
		},
		Mappings:    corr.Mappings,
		Diagnostics: diags,
	})
}

func (e *Engine) collectSwitches(ctx context.Context, switches []models.SwitchRecord) *collector.SwitchResult {
	ctx, span := e.tracer.Start(ctx, "portmap.collect.switches",
		trace.WithAttributes(attribute.Int("portmap.switches", len(switches))))
	defer span.End()

	res := e.switches.Collect(ctx, switches)

	span.SetAttributes(attribute.Int("portmap.switches.succeeded", res.Succeeded()))

	return res
}

func (e *Engine) collectNodes(ctx context.Context, run *models.Inventory) (*collector.NodeResult, error) {
	ctx, span := e.tracer.Start(ctx, "portmap.collect.nodes",
		trace.WithAttributes(attribute.Int("portmap.nodes", len(run.Nodes))))
	defer span.End()

	if len(run.Nodes) == 0 {
		return &collector.NodeResult{}, nil
	}

	target, err := run.RelayTarget()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relay unresolved")

		return relayUnresolved(run, err), fmt.Errorf("%w: %w", collector.ErrCollectionFailure, err)
	}

	res, err := e.nodes.Collect(ctx, run.RelayHostID, target, run.Nodes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "node collection failed")
	}

	span.SetAttributes(attribute.Int("portmap.node_records", len(res.Records)), attribute.Int("portmap.node_gaps", res.Gaps))

	return res, err
}

func relayUnresolved(run *models.Inventory, err error) *collector.NodeResult {
	relayID := run.RelayHostID
	if relayID == "" {
		relayID = models.PipelineDeviceID
	}

	res := &collector.NodeResult{
		Diagnostics: []models.DeviceDiagnostic{{
			DeviceID:    relayID,
			Role:        models.DeviceRoleRelay,
			Kind:        models.DiagnosticKindInventory,
			ErrorDetail: err.Error(),
		}},
	}

	for i := range run.Nodes {
		res.Diagnostics = append(res.Diagnostics, models.DeviceDiagnostic{
			DeviceID:    run.Nodes[i].HostID,
			Role:        models.DeviceRoleNode,
			Kind:        models.DiagnosticKindCollection,
			ErrorDetail: "relay host not resolved",
		})
	}

	return res
}

func pipelineCutShort(err error) models.DeviceDiagnostic {
	kind := models.DiagnosticKindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = models.DiagnosticKindTimeout
	}

	return models.DeviceDiagnostic{
		DeviceID:    models.PipelineDeviceID,
		Role:        models.DeviceRolePipeline,
		Attempted:   true,
		Kind:        kind,
		ErrorDetail: fmt.Sprintf("pipeline stopped early: %v", err),
	}
}
