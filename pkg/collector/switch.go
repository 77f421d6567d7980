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

package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/portmap/pkg/dialect"
	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers       = 8
	defaultDeviceTimeout = 2 * time.Minute
)

// SwitchOptions bounds the switch worker pool.
type SwitchOptions struct {
	Workers       int
	DeviceTimeout time.Duration
}

// SwitchResult is the merged output of every switch worker.
type SwitchResult struct {
	// Tables holds the address table of each switch that succeeded, keyed
	// by device id.
	Tables map[string][]models.AddressTableEntry
	// Identity holds each switch's own hardware addresses, including those
	// of switches whose table could not be read.
	Identity map[string][]string
	// Switches carries the records with Dialect and Reachable filled in, in
	// inventory order.
	Switches    []models.SwitchRecord
	Diagnostics []models.DeviceDiagnostic
}

// Succeeded returns the number of switches whose table was collected.
func (r *SwitchResult) Succeeded() int {
	return len(r.Tables)
}

// switchOutcome is what one worker returns for one switch: either a table
// or a diagnostic explaining why there is none.
type switchOutcome struct {
	index    int
	record   models.SwitchRecord
	entries  []models.AddressTableEntry
	identity []string
	ok       bool
	diag     models.DeviceDiagnostic
}

// SwitchCollector reads address tables from switches in parallel.
type SwitchCollector struct {
	opener  SessionOpener
	adapter *dialect.Adapter
	creds   []session.CredentialSet
	opts    SwitchOptions
	logger  zerolog.Logger
}

func NewSwitchCollector(
	log logger.Logger, opener SessionOpener, adapter *dialect.Adapter, creds []session.CredentialSet, opts SwitchOptions,
) *SwitchCollector {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = defaultDeviceTimeout
	}

	return &SwitchCollector{
		opener:  opener,
		adapter: adapter,
		creds:   creds,
		opts:    opts,
		logger:  log.WithComponent("switch-collector"),
	}
}

// Collect reads every switch with at most opts.Workers sessions open at once.
// A failing switch yields a diagnostic and never stops the others. The
// caller's switches are not modified.
func (c *SwitchCollector) Collect(ctx context.Context, switches []models.SwitchRecord) *SwitchResult {
	res := &SwitchResult{
		Tables:   make(map[string][]models.AddressTableEntry),
		Identity: make(map[string][]string),
		Switches: make([]models.SwitchRecord, len(switches)),
	}

	copy(res.Switches, switches)

	if len(switches) == 0 {
		return res
	}

	concurrency := c.opts.Workers
	if concurrency > len(switches) {
		concurrency = len(switches)
	}

	indexChan := make(chan int)
	resultChan := make(chan switchOutcome, len(switches))

	var wg sync.WaitGroup

	c.startWorkers(ctx, &wg, res.Switches, indexChan, resultChan, concurrency)

	if c.feedSwitchesToWorkers(ctx, len(switches), indexChan) {
		c.logger.Warn().Msg("Switch collection canceled before every switch was scheduled")
	}

	wg.Wait()
	close(resultChan)

	seen := make([]bool, len(switches))

	for out := range resultChan {
		seen[out.index] = true
		res.Switches[out.index] = out.record
		res.Diagnostics = append(res.Diagnostics, out.diag)

		if len(out.identity) > 0 {
			res.Identity[out.record.DeviceID] = out.identity
		}

		if out.ok {
			res.Tables[out.record.DeviceID] = out.entries
		}
	}

	for i, done := range seen {
		if done {
			continue
		}

		res.Diagnostics = append(res.Diagnostics, models.DeviceDiagnostic{
			DeviceID:    switches[i].DeviceID,
			Role:        models.DeviceRoleSwitch,
			Kind:        cutShort(ctx, context.Canceled),
			ErrorDetail: "not attempted: collection stopped",
		})
	}

	models.SortDiagnostics(res.Diagnostics)

	c.logger.Info().
		Int("switches", len(switches)).
		Int("succeeded", res.Succeeded()).
		Msg("Switch collection finished")

	return res
}

// startWorkers launches concurrency workers that read switch indexes from
// indexChan until it is closed.
func (c *SwitchCollector) startWorkers(
	ctx context.Context,
	wg *sync.WaitGroup,
	switches []models.SwitchRecord,
	indexChan <-chan int,
	resultChan chan<- switchOutcome,
	concurrency int,
) {
	for i := 0; i < concurrency; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			for idx := range indexChan {
				if ctx.Err() != nil {
					c.logger.Debug().Int("worker", workerID).Str("device_id", switches[idx].DeviceID).Msg("Worker stopping")

					continue
				}

				resultChan <- c.collectOne(ctx, idx, switches[idx])
			}
		}(i)
	}
}

// feedSwitchesToWorkers sends every index to the workers and closes
// indexChan. It returns true if ctx ended before all were sent.
func (*SwitchCollector) feedSwitchesToWorkers(ctx context.Context, n int, indexChan chan<- int) bool {
	defer close(indexChan)

	for i := 0; i < n; i++ {
		select {
		case indexChan <- i:
		case <-ctx.Done():
			return true
		}
	}

	return false
}

func (c *SwitchCollector) collectOne(ctx context.Context, idx int, sw models.SwitchRecord) switchOutcome {
	out := switchOutcome{
		index: idx,
		diag: models.DeviceDiagnostic{
			DeviceID:  sw.DeviceID,
			Role:      models.DeviceRoleSwitch,
			Attempted: true,
		},
	}

	devCtx, cancel := context.WithTimeout(ctx, c.opts.DeviceTimeout)
	defer cancel()

	target := sw.ManagementAddress
	if target == "" {
		target = sw.DeviceID
	}

	var failed []*session.AttemptError

	start := time.Now()

	err := c.opener.Do(devCtx, target, c.creds, func(ctx context.Context, h *session.Handle) error {
		sw.Reachable = true
		failed = h.Failed

		entries, stats, err := c.adapter.FetchAddressTable(ctx, h, &sw)
		out.diag.SkippedLines = stats.Skipped

		if err != nil {
			return err
		}

		identity, idErr := c.adapter.FetchIdentity(ctx, h, &sw)
		if idErr != nil {
			c.logger.Debug().Str("device_id", sw.DeviceID).Err(idErr).Msg("Identity query failed, using inventory addresses")
		}

		out.identity = identity
		out.entries = dropSelf(entries, identity)

		return nil
	})

	var openErr *session.OpenFailure
	if errors.As(err, &openErr) {
		failed = openErr.Attempts
	}

	out.record = sw
	out.diag.DialectTried = dialectsTried(failed, sw.Dialect)

	if err != nil {
		out.diag.Kind = classify(devCtx, err)
		out.diag.ErrorDetail = err.Error()

		if len(out.identity) == 0 {
			out.identity = inventoryIdentity(&sw)
		}

		c.logger.Warn().
			Str("device_id", sw.DeviceID).
			Str("kind", string(out.diag.Kind)).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("Switch collection failed")

		return out
	}

	out.ok = true
	out.diag.Succeeded = true
	out.diag.EntryCount = len(out.entries)

	c.logger.Debug().
		Str("device_id", sw.DeviceID).
		Str("dialect", string(sw.Dialect)).
		Int("entries", len(out.entries)).
		Dur("elapsed", time.Since(start)).
		Msg("Switch collected")

	return out
}

// dropSelf removes entries for the switch's own addresses.
func dropSelf(entries []models.AddressTableEntry, identity []string) []models.AddressTableEntry {
	if len(identity) == 0 {
		return entries
	}

	own := make(map[string]struct{}, len(identity))
	for _, mac := range identity {
		own[mac] = struct{}{}
	}

	out := entries[:0]

	for _, e := range entries {
		if _, ok := own[e.HardwareAddress]; ok {
			continue
		}

		out = append(out, e)
	}

	return out
}

func inventoryIdentity(sw *models.SwitchRecord) []string {
	var out []string

	for _, raw := range sw.IdentityAddresses {
		if mac, err := models.NormalizeMAC(raw); err == nil {
			out = append(out, mac)
		}
	}

	return out
}
