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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/portmap/pkg/dialect"
	"github.com/carverauto/portmap/pkg/logger"
	"github.com/carverauto/portmap/pkg/models"
	"github.com/carverauto/portmap/pkg/session"
	"github.com/carverauto/portmap/pkg/session/sessiontest"
)

const nxosTable = `   VLAN     MAC Address      Type      age     Secure NTFY Ports
---------+-----------------+--------+---------+------+----+------------------
*  100     0050.56a1.0001   dynamic  0         F      F    Eth1/1
*  100     0050.56a1.0002   dynamic  0         F      F    Eth1/2
*  100     0011.2233.4455   dynamic  0         F      F    Eth1/49
`

const iosTable = `Vlan    Mac Address       Type        Ports
----    -----------       --------    -----
 100    0050.56a1.0003    DYNAMIC     Gi1/0/3
   1    0011.2233.4466    STATIC      Gi1/0/24
`

func nxosDevice() *sessiontest.Device {
	return &sessiontest.Device{
		Secrets: []string{"good"},
		Outputs: map[string]string{
			"show version":                      "Cisco Nexus Operating System (NX-OS) Software",
			"show mac address-table":            nxosTable,
			"show interface | include address:": "  Hardware: 100/1000/10000 Ethernet, address: 5254.00aa.0001 (bia 5254.00aa.0001)\n",
		},
	}
}

func iosDevice() *sessiontest.Device {
	return &sessiontest.Device{
		Secrets: []string{"good"},
		Outputs: map[string]string{
			"show version":                         "Cisco IOS Software, C2960X Software",
			"show mac address-table":               iosTable,
			"show interfaces | include address is": "  Hardware is EtherSVI, address is 0011.2233.4466 (bia 0011.2233.4466)\n",
		},
	}
}

func switchCreds() []session.CredentialSet {
	return []session.CredentialSet{
		{Name: "legacy", Username: "admin", Secret: "old", DialectHint: models.DialectCiscoIOS},
		{Name: "current", Username: "admin", Secret: "good", DialectHint: models.DialectCiscoNXOS},
	}
}

func newSwitchCollector(opener SessionOpener, opts SwitchOptions) *SwitchCollector {
	return NewSwitchCollector(logger.NewTestLogger(), opener, dialect.NewAdapter(logger.NewTestLogger()), switchCreds(), opts)
}

func TestSwitchCollectIsolatesFailures(t *testing.T) {
	d := sessiontest.NewDialer().
		Add("10.0.0.1", nxosDevice()).
		Add("10.0.0.2", &sessiontest.Device{Unreachable: true}).
		Add("10.0.0.3", iosDevice())

	switches := []models.SwitchRecord{
		{DeviceID: "sw-a", ManagementAddress: "10.0.0.1"},
		{DeviceID: "sw-b", ManagementAddress: "10.0.0.2", IdentityAddresses: []string{"0011.2233.4455"}},
		{DeviceID: "sw-c", ManagementAddress: "10.0.0.3"},
	}

	res := newSwitchCollector(newClient(d), SwitchOptions{Workers: 2}).Collect(context.Background(), switches)

	assert.Equal(t, 2, res.Succeeded())
	require.Len(t, res.Tables["sw-a"], 3)
	assert.Equal(t, "00:50:56:a1:00:01", res.Tables["sw-a"][0].HardwareAddress)

	require.Len(t, res.Tables["sw-c"], 1, "self entry dropped")
	assert.Equal(t, "Gi1/0/3", res.Tables["sw-c"][0].PortName)

	assert.Equal(t, []string{"00:11:22:33:44:55"}, res.Identity["sw-b"])
	assert.Equal(t, []string{"52:54:00:aa:00:01"}, res.Identity["sw-a"])

	require.Len(t, res.Diagnostics, 3)
	assert.Equal(t, []string{"sw-a", "sw-b", "sw-c"}, []string{
		res.Diagnostics[0].DeviceID, res.Diagnostics[1].DeviceID, res.Diagnostics[2].DeviceID,
	})

	failed := res.Diagnostics[1]
	assert.True(t, failed.Attempted)
	assert.False(t, failed.Succeeded)
	assert.Equal(t, models.DiagnosticKindConnect, failed.Kind)
	assert.Equal(t, []models.Dialect{models.DialectCiscoIOS, models.DialectCiscoNXOS}, failed.DialectTried)

	ok := res.Diagnostics[0]
	assert.True(t, ok.Succeeded)
	assert.Equal(t, 3, ok.EntryCount)
	assert.Equal(t, []models.Dialect{models.DialectCiscoIOS, models.DialectCiscoNXOS}, ok.DialectTried)

	assert.Equal(t, models.DialectCiscoNXOS, res.Switches[0].Dialect)
	assert.True(t, res.Switches[0].Reachable)
	assert.False(t, res.Switches[1].Reachable)
	assert.Equal(t, models.DialectCiscoIOS, res.Switches[2].Dialect)

	assert.Empty(t, switches[0].Dialect, "caller records untouched")
	assert.Equal(t, d.Opened(), d.Closed())
}

func TestSwitchCollectAuthFailure(t *testing.T) {
	dev := nxosDevice()
	dev.Secrets = []string{"something-else"}

	d := sessiontest.NewDialer().Add("10.0.0.1", dev)
	res := newSwitchCollector(newClient(d), SwitchOptions{}).
		Collect(context.Background(), []models.SwitchRecord{{DeviceID: "sw-a", ManagementAddress: "10.0.0.1"}})

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticKindAuth, res.Diagnostics[0].Kind)
	assert.Zero(t, res.Succeeded())
}

func TestSwitchCollectParseFailure(t *testing.T) {
	dev := iosDevice()
	dev.Outputs["show mac address-table"] = "Vlan    Mac Address       Type        Ports\n"

	d := sessiontest.NewDialer().Add("10.0.0.3", dev)
	res := newSwitchCollector(newClient(d), SwitchOptions{}).
		Collect(context.Background(), []models.SwitchRecord{{DeviceID: "sw-c", ManagementAddress: "10.0.0.3"}})

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticKindParse, res.Diagnostics[0].Kind)
	assert.True(t, res.Switches[0].Reachable)
}

func TestSwitchCollectDeviceTimeout(t *testing.T) {
	dev := nxosDevice()
	dev.RunDelay = time.Minute

	d := sessiontest.NewDialer().Add("10.0.0.1", dev).Add("10.0.0.3", iosDevice())
	res := newSwitchCollector(newClient(d), SwitchOptions{DeviceTimeout: 50 * time.Millisecond}).
		Collect(context.Background(), []models.SwitchRecord{
			{DeviceID: "sw-a", ManagementAddress: "10.0.0.1"},
			{DeviceID: "sw-c", ManagementAddress: "10.0.0.3"},
		})

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, models.DiagnosticKindTimeout, res.Diagnostics[0].Kind)
	assert.True(t, res.Diagnostics[1].Succeeded)
	assert.Equal(t, d.Opened(), d.Closed(), "timed out session closed")
}

func TestSwitchCollectCanceledBeforeStart(t *testing.T) {
	d := sessiontest.NewDialer().Add("10.0.0.1", nxosDevice())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newSwitchCollector(newClient(d), SwitchOptions{}).
		Collect(ctx, []models.SwitchRecord{{DeviceID: "sw-a", ManagementAddress: "10.0.0.1"}})

	require.Len(t, res.Diagnostics, 1)
	assert.False(t, res.Diagnostics[0].Attempted)
	assert.Equal(t, models.DiagnosticKindCanceled, res.Diagnostics[0].Kind)
	assert.Zero(t, d.Opened())
}

func TestSwitchCollectBoundsConcurrency(t *testing.T) {
	d := sessiontest.NewDialer()

	var switches []models.SwitchRecord

	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"} {
		d.Add(addr, nxosDevice())
		switches = append(switches, models.SwitchRecord{DeviceID: "sw-" + addr, ManagementAddress: addr})
	}

	opener := &countingOpener{next: newClient(d)}
	res := newSwitchCollector(opener, SwitchOptions{Workers: 2}).Collect(context.Background(), switches)

	assert.Equal(t, 6, res.Succeeded())
	assert.LessOrEqual(t, opener.max.Load(), int32(2))
	assert.Equal(t, int32(6), opener.calls.Load())
}

func TestSwitchCollectEmpty(t *testing.T) {
	res := newSwitchCollector(newClient(sessiontest.NewDialer()), SwitchOptions{}).Collect(context.Background(), nil)

	assert.Zero(t, res.Succeeded())
	assert.Empty(t, res.Diagnostics)
}

type countingOpener struct {
	next     SessionOpener
	inFlight atomic.Int32
	max      atomic.Int32
	calls    atomic.Int32
	mu       sync.Mutex
}

func (o *countingOpener) Do(
	ctx context.Context, target string, sets []session.CredentialSet, fn func(ctx context.Context, h *session.Handle) error,
) error {
	o.calls.Add(1)
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)

	o.mu.Lock()
	if n > o.max.Load() {
		o.max.Store(n)
	}
	o.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	return o.next.Do(ctx, target, sets, fn)
}
