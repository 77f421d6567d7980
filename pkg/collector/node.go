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

// Package collector gathers hardware addresses from node hosts, through a
// single relay session, and from switches, through a bounded worker pool.
package collector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
	"github.com/rs/zerolog"
)

const (
	defaultBatchTimeout       = 5 * time.Minute
	defaultHostConnectTimeout = 5 * time.Second
	defaultNodeParallelism    = 16

	blockBegin = "@@@PORTMAP-BEGIN"
	blockEnd   = "@@@PORTMAP-END"

	ipmiInterfaceName = "ipmi0"
)

// hostProbe prints "<iface> <address>" per kernel interface and, when
// ipmitool is present, the BMC LAN address line. It contains no single
// quotes so it can be passed as one quoted ssh argument.
const hostProbe = `for i in /sys/class/net/*; do [ -r "$i/address" ] && printf "%s %s\n" "${i##*/}" "$(cat "$i/address")"; done; ` +
	`command -v ipmitool >/dev/null 2>&1 && ipmitool lan print 2>/dev/null | grep -i "^MAC Address"`

var (
	safeAddressRe = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)
	ipmiMACRe     = regexp.MustCompile(`(?i)^\s*MAC Address\s*:\s*(\S+)`)

	virtualPrefixes = []string{"veth", "docker", "virbr", "br-", "bond", "team", "vnet", "tap", "tun", "cali", "flannel", "cni", "vxlan"}
	mgmtPrefixes    = []string{"mgmt", "oob"}
)

// NodeOptions tunes the batched node query.
type NodeOptions struct {
	BatchTimeout       time.Duration
	HostConnectTimeout time.Duration
	// Parallelism bounds how many hosts the relay queries at once.
	Parallelism int
}

// NodeResult is what the node side of a run produced. Diagnostics hold one
// entry per requested host plus one for the relay.
type NodeResult struct {
	Records     []models.NodeInterfaceRecord
	Diagnostics []models.DeviceDiagnostic
	// Gaps counts requested hosts that returned no records.
	Gaps int
}

// NodeCollector reads node interface addresses through one relay session.
type NodeCollector struct {
	opener SessionOpener
	creds  []session.CredentialSet
	opts   NodeOptions
	logger zerolog.Logger
}

func NewNodeCollector(log logger.Logger, opener SessionOpener, creds []session.CredentialSet, opts NodeOptions) *NodeCollector {
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = defaultBatchTimeout
	}

	if opts.HostConnectTimeout <= 0 {
		opts.HostConnectTimeout = defaultHostConnectTimeout
	}

	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultNodeParallelism
	}

	return &NodeCollector{
		opener: opener,
		creds:  creds,
		opts:   opts,
		logger: log.WithComponent("node-collector"),
	}
}

// Collect opens exactly one session to the relay and runs one batched query
// covering every host. A host absent from the output is a gap, not a
// failure. ErrCollectionFailure is returned only when nothing usable came
// back; the returned result is never nil.
func (c *NodeCollector) Collect(ctx context.Context, relayHostID, relayTarget string, hosts []models.NodeHost) (*NodeResult, error) {
	res := &NodeResult{}

	if len(hosts) == 0 {
		return res, nil
	}

	script, excluded := c.buildScript(relayHostID, hosts)

	relayDiag := models.DeviceDiagnostic{DeviceID: relayHostID, Role: models.DeviceRoleRelay, Attempted: true}

	if len(excluded) == len(hosts) {
		relayDiag.Attempted = false

		return c.fail(ctx, res, relayDiag, hosts, errNoAddressableHost)
	}

	output, cut, err := c.runBatch(ctx, relayTarget, script)
	if err != nil {
		return c.fail(ctx, res, relayDiag, hosts, err)
	}

	blocks := parseBlocks(output)

	for i := range hosts {
		host := &hosts[i]

		diag := models.DeviceDiagnostic{DeviceID: host.HostID, Role: models.DeviceRoleNode, Attempted: excluded[i] == nil}

		b, ok := blocks[i]

		var records []models.NodeInterfaceRecord
		if ok {
			records = parseHostBlock(host, b.lines)
		}

		if len(records) > 0 {
			diag.Succeeded = true
			diag.EntryCount = len(records)
			res.Records = append(res.Records, records...)
		} else {
			res.Gaps++
			diag.Kind = models.DiagnosticKindNodeGap
			diag.ErrorDetail = gapDetail(excluded[i], b, ok, cut)
		}

		res.Diagnostics = append(res.Diagnostics, diag)
	}

	relayDiag.Succeeded = true
	relayDiag.EntryCount = len(res.Records)

	if cut != nil {
		relayDiag.Kind = cutShort(ctx, cut)
		relayDiag.ErrorDetail = fmt.Sprintf("batch cut short after %s, %d of %d host(s) reported",
			c.opts.BatchTimeout, completeBlocks(blocks), len(hosts))

		c.logger.Warn().Str("relay", relayHostID).Err(cut).Msg("Node batch cut short, keeping complete host blocks")
	}

	res.Diagnostics = append(res.Diagnostics, relayDiag)

	c.logger.Info().
		Str("relay", relayHostID).
		Int("hosts", len(hosts)).
		Int("records", len(res.Records)).
		Int("gaps", res.Gaps).
		Msg("Node collection finished")

	return res, nil
}

// runBatch runs the script over one relay session under the batch timeout.
// When the batch is cut short after at least one host block completed, the
// partial output is returned with the interruption as cut.
func (c *NodeCollector) runBatch(ctx context.Context, relayTarget, script string) (output string, cut error, err error) {
	err = c.opener.Do(ctx, relayTarget, c.creds, func(ctx context.Context, h *session.Handle) error {
		batchCtx, cancel := context.WithTimeout(session.WithCommandTimeout(ctx, 0), c.opts.BatchTimeout)
		defer cancel()

		out, runErr := h.Run(batchCtx, script)

		switch {
		case runErr == nil:
		case errors.Is(runErr, session.ErrCommandFailed) && strings.Contains(out, blockBegin):
		case isCutShort(runErr) && strings.Contains(out, blockEnd):
			cut = runErr
		default:
			return runErr
		}

		output = out

		return nil
	})
	if err != nil {
		return "", nil, err
	}

	if !strings.Contains(output, blockBegin) {
		return "", nil, errBatchUnsupported
	}

	return output, cut, nil
}

func isCutShort(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (c *NodeCollector) fail(ctx context.Context, res *NodeResult, relayDiag models.DeviceDiagnostic, hosts []models.NodeHost, err error) (*NodeResult, error) {
	kind := classify(ctx, err)
	if kind == models.DiagnosticKindQuery {
		kind = models.DiagnosticKindCollection
	}

	relayDiag.Kind = kind
	relayDiag.ErrorDetail = errorSummary(kind, err)
	res.Diagnostics = append(res.Diagnostics, relayDiag)

	for i := range hosts {
		res.Diagnostics = append(res.Diagnostics, models.DeviceDiagnostic{
			DeviceID:    hosts[i].HostID,
			Role:        models.DeviceRoleNode,
			Kind:        models.DiagnosticKindCollection,
			ErrorDetail: "relay collection failed",
		})
	}

	c.logger.Warn().Str("relay", relayDiag.DeviceID).Err(err).Msg("Node collection failed")

	return res, fmt.Errorf("%w: relay %s: %w", ErrCollectionFailure, relayDiag.DeviceID, err)
}

// buildScript returns the batched shell script and, by host index, the
// reason each host left out of it was excluded. Hosts are queried in the
// background, at most Parallelism at a time; each job prints its whole
// block with a single printf so blocks never interleave.
func (c *NodeCollector) buildScript(relayHostID string, hosts []models.NodeHost) (string, map[int]error) {
	var b strings.Builder

	excluded := make(map[int]error)
	connectTimeout := int(c.opts.HostConnectTimeout.Round(time.Second) / time.Second)

	if connectTimeout < 1 {
		connectTimeout = 1
	}

	jobs := 0

	for i := range hosts {
		host := &hosts[i]

		var probe string

		if host.HostID == relayHostID {
			probe = hostProbe
		} else {
			addr := host.ManagementAddress
			if addr == "" {
				addr = host.HostID
			}

			if !safeAddressRe.MatchString(addr) {
				excluded[i] = fmt.Errorf("%w: %q", ErrUnsafeAddress, addr)
				continue
			}

			probe = fmt.Sprintf(
				"ssh -n -o BatchMode=yes -o ConnectTimeout=%d -o StrictHostKeyChecking=accept-new %s '%s' 2>/dev/null",
				connectTimeout, addr, hostProbe)
		}

		fmt.Fprintf(&b, "( out=$( %s ); st=$?; printf '%%s\\n%%s\\n%%s\\n' '%s %d' \"$out\" \"%s %d $st\" ) &\n",
			probe, blockBegin, i, blockEnd, i)

		jobs++
		if jobs%c.opts.Parallelism == 0 {
			b.WriteString("wait\n")
		}
	}

	if jobs%c.opts.Parallelism != 0 {
		b.WriteString("wait\n")
	}

	return b.String(), excluded
}

type hostBlock struct {
	lines    []string
	status   int
	complete bool
}

// parseBlocks splits the batch output into per-host blocks keyed by host
// index. Lines outside a block are ignored.
func parseBlocks(output string) map[int]*hostBlock {
	blocks := make(map[int]*hostBlock)

	var current *hostBlock

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		fields := strings.Fields(line)

		switch {
		case len(fields) >= 2 && fields[0] == blockBegin:
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				current = nil
				continue
			}

			current = &hostBlock{status: -1}
			blocks[idx] = current
		case len(fields) >= 2 && fields[0] == blockEnd:
			if current != nil {
				current.complete = true
				if len(fields) >= 3 {
					if st, err := strconv.Atoi(fields[2]); err == nil {
						current.status = st
					}
				}
			}

			current = nil
		case current != nil:
			current.lines = append(current.lines, line)
		}
	}

	return blocks
}

// parseHostBlock turns one host's lines into interface records, skipping
// loopback, virtual and VLAN interfaces and unusable addresses.
func parseHostBlock(host *models.NodeHost, lines []string) []models.NodeInterfaceRecord {
	var records []models.NodeInterfaceRecord

	for _, line := range lines {
		if m := ipmiMACRe.FindStringSubmatch(line); m != nil {
			if mac, err := models.NormalizeMAC(m[1]); err == nil && models.IsUsableMAC(mac) {
				records = append(records, models.NodeInterfaceRecord{
					HostID:          host.HostID,
					InterfaceName:   ipmiInterfaceName,
					HardwareAddress: mac,
					Role:            models.RoleIPMI,
				})
			}

			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 || skipInterface(fields[0]) {
			continue
		}

		mac, err := models.NormalizeMAC(fields[1])
		if err != nil || !models.IsUsableMAC(mac) {
			continue
		}

		records = append(records, models.NodeInterfaceRecord{
			HostID:          host.HostID,
			InterfaceName:   fields[0],
			HardwareAddress: mac,
			Role:            interfaceRole(host, fields[0]),
		})
	}

	return records
}

func skipInterface(name string) bool {
	if name == "lo" || strings.ContainsAny(name, ".@") {
		return true
	}

	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

func interfaceRole(host *models.NodeHost, name string) models.InterfaceRole {
	if host.ManagementInterface != "" {
		if name == host.ManagementInterface {
			return models.RoleMgmt
		}

		return models.RoleData
	}

	for _, p := range mgmtPrefixes {
		if strings.HasPrefix(name, p) {
			return models.RoleMgmt
		}
	}

	return models.RoleData
}

func completeBlocks(blocks map[int]*hostBlock) int {
	n := 0

	for _, b := range blocks {
		if b.complete {
			n++
		}
	}

	return n
}

func gapDetail(excludedErr error, b *hostBlock, ok bool, cut error) string {
	switch {
	case excludedErr != nil:
		return excludedErr.Error()
	case cut != nil && (!ok || !b.complete):
		return "batch cut short before host reported"
	case !ok:
		return errMissingFromBatch.Error()
	case !b.complete:
		return "host block truncated"
	case b.status != 0:
		return fmt.Sprintf("no interface records (exit status %d)", b.status)
	default:
		return "no interface records"
	}
}
