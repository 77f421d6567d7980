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

// Package dialect translates between vendor command families and the
// normalized address table model.
package dialect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
	"github.com/rs/zerolog"
)

// FetchStats describes one address table fetch.
type FetchStats struct {
	Dialect models.Dialect
	Lines   int
	Skipped int
	// Filtered counts well-formed rows dropped on purpose: control-plane
	// ports and group addresses.
	Filtered int
}

// Adapter resolves dialects and fetches address tables over open sessions.
// It holds no per-device state; the resolved dialect is cached on the
// SwitchRecord passed in.
type Adapter struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewAdapter(log logger.Logger) *Adapter {
	return &Adapter{
		logger: log.WithComponent("dialect"),
		now:    time.Now,
	}
}

// Resolve returns sw.Dialect when already resolved; otherwise it probes the
// device, falls back to the credential set's dialect hint, and caches the
// result on sw for the rest of the run.
func (a *Adapter) Resolve(ctx context.Context, h *session.Handle, sw *models.SwitchRecord) (models.Dialect, error) {
	if sw.Dialect.Resolved() {
		return sw.Dialect, nil
	}

	d, err := a.probe(ctx, h)
	if err != nil {
		return models.DialectUnknown, err
	}

	if !d.Resolved() {
		hint := h.Credentials.DialectHint
		if _, lookupErr := Lookup(hint); !hint.Resolved() || lookupErr != nil {
			return models.DialectUnknown, fmt.Errorf("%w: %s: probe inconclusive and no usable hint", ErrDialectUnresolved, sw.DeviceID)
		}

		a.logger.Debug().Str("device_id", sw.DeviceID).Str("dialect", string(hint)).Msg("Probe inconclusive, using credential hint")

		d = hint
	}

	sw.Dialect = d

	return d, nil
}

func (a *Adapter) probe(ctx context.Context, h *session.Handle) (models.Dialect, error) {
	if h.Credentials.EffectiveTransport() == session.TransportSNMP {
		// Every SNMP-managed switch is read through BRIDGE-MIB.
		return models.DialectSNMPBridge, nil
	}

	for _, cmd := range probeCommands {
		out, err := h.Run(ctx, cmd)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.DialectUnknown, ctxErr
		}

		if err != nil && !errors.Is(err, session.ErrCommandFailed) {
			a.logger.Debug().Str("target", h.Target).Str("command", cmd).Err(err).Msg("Probe command failed")
			continue
		}

		if d, ok := Match(out); ok {
			return d, nil
		}
	}

	return models.DialectUnknown, nil
}

// FetchAddressTable resolves the dialect if needed, runs the table query and
// parses it. Unparseable lines are skipped and counted; ParseError is
// returned only when the query succeeded and zero entries parsed.
func (a *Adapter) FetchAddressTable(ctx context.Context, h *session.Handle, sw *models.SwitchRecord) ([]models.AddressTableEntry, FetchStats, error) {
	d, err := a.Resolve(ctx, h, sw)
	stats := FetchStats{Dialect: d}

	if err != nil {
		return nil, stats, err
	}

	strategy, err := Lookup(d)
	if err != nil {
		return nil, stats, err
	}

	if strategy.Transport != h.Credentials.EffectiveTransport() {
		return nil, stats, fmt.Errorf("%w: %s needs %s, session is %s",
			ErrDialectUnresolved, d, strategy.Transport, h.Credentials.EffectiveTransport())
	}

	outputs, err := runAll(ctx, h, strategy.TableCommands)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %s: %w", ErrQueryFailed, sw.DeviceID, err)
	}

	parsed := strategy.ParseTable(outputs)
	stats.Lines = parsed.Lines
	stats.Skipped = parsed.Skipped

	collectedAt := a.now()
	entries := make([]models.AddressTableEntry, 0, len(parsed.Entries))

	for _, raw := range parsed.Entries {
		mac, err := models.NormalizeMAC(raw.Address)
		if err != nil {
			stats.Skipped++
			continue
		}

		port := strings.TrimSpace(raw.Port)
		if port == "" {
			stats.Skipped++
			continue
		}

		if isNonLinkPort(port) || !models.IsUsableMAC(mac) {
			stats.Filtered++
			continue
		}

		entries = append(entries, models.AddressTableEntry{
			HardwareAddress: mac,
			PortName:        port,
			DeviceID:        sw.DeviceID,
			VLANID:          raw.VLAN,
			CollectedAt:     collectedAt,
		})
	}

	if stats.Skipped > 0 {
		a.logger.Debug().
			Str("device_id", sw.DeviceID).
			Int("skipped", stats.Skipped).
			Int("parsed", len(entries)).
			Msg("Skipped unparseable address table lines")
	}

	if len(entries) == 0 && stats.Filtered == 0 {
		return nil, stats, &ParseError{Dialect: d, Lines: stats.Lines, Skipped: stats.Skipped}
	}

	return entries, stats, nil
}

// FetchIdentity returns the switch's own hardware addresses: the inventory
// values plus whatever the identity query reports.
func (a *Adapter) FetchIdentity(ctx context.Context, h *session.Handle, sw *models.SwitchRecord) ([]string, error) {
	known := make([]string, 0, len(sw.IdentityAddresses))

	for _, raw := range sw.IdentityAddresses {
		if mac, err := models.NormalizeMAC(raw); err == nil {
			known = append(known, mac)
		}
	}

	d, err := a.Resolve(ctx, h, sw)
	if err != nil {
		return known, err
	}

	strategy, err := Lookup(d)
	if err != nil {
		return known, err
	}

	outputs, err := runAll(ctx, h, strategy.IdentityCommands)
	if err != nil {
		return known, fmt.Errorf("identity query on %s: %w", sw.DeviceID, err)
	}

	return mergeUnique(known, extractIdentity(outputs)), nil
}

func runAll(ctx context.Context, h *session.Handle, commands []string) ([]string, error) {
	outputs := make([]string, 0, len(commands))

	for _, cmd := range commands {
		out, err := h.Run(ctx, cmd)
		if err != nil {
			// Some NOS images exit non-zero after printing a usable table.
			if errors.Is(err, session.ErrCommandFailed) && anyMACRe.MatchString(out) && ctx.Err() == nil {
				outputs = append(outputs, out)
				continue
			}

			return nil, err
		}

		outputs = append(outputs, out)
	}

	return outputs, nil
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, dup := seen[v]; dup {
				continue
			}

			seen[v] = struct{}{}
			out = append(out, v)
		}
	}

	return out
}
