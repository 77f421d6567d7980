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

// Package sessiontest provides a scripted in-memory session.Dialer for
// exercising collectors and the engine without network access.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/portmap/pkg/session"
)

// Device scripts the behaviour of one target.
type Device struct {
	// Secrets lists the accepted CredentialSet.Secret values. Empty accepts any.
	Secrets []string
	// Outputs maps a command to its output. Unknown commands fail with
	// session.ErrCommandFailed.
	Outputs map[string]string
	// Errors maps a command to a forced error.
	Errors map[string]error
	// Stalls maps a command to the output it prints before blocking until
	// the context ends. Run then returns that output with the context error.
	Stalls map[string]string
	// Handler answers commands found in neither Outputs nor Errors.
	Handler func(command string) (string, error)
	// RunDelay blocks every Run for this long, or until the context ends.
	RunDelay time.Duration
	// DialDelay blocks Dial the same way.
	DialDelay   time.Duration
	Unreachable bool
}

// Dialer is a session.Dialer backed by scripted devices.
type Dialer struct {
	mu       sync.Mutex
	devices  map[string]*Device
	opened   int
	closed   int
	commands map[string][]string
}

func NewDialer() *Dialer {
	return &Dialer{
		devices:  make(map[string]*Device),
		commands: make(map[string][]string),
	}
}

// Add registers dev under target and returns the dialer for chaining.
func (d *Dialer) Add(target string, dev *Device) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.devices[target] = dev

	return d
}

func (d *Dialer) Dial(ctx context.Context, target string, creds session.CredentialSet) (session.Session, error) {
	d.mu.Lock()
	dev, ok := d.devices[target]
	d.mu.Unlock()

	if !ok || dev.Unreachable {
		return nil, fmt.Errorf("%w: %s", session.ErrUnreachable, target)
	}

	if err := wait(ctx, dev.DialDelay); err != nil {
		return nil, err
	}

	if !accepts(dev, creds) {
		return nil, fmt.Errorf("%w: %s", session.ErrAuthRejected, target)
	}

	d.mu.Lock()
	d.opened++
	d.mu.Unlock()

	return &fakeSession{dialer: d, target: target, dev: dev}, nil
}

// Opened returns the number of sessions handed out.
func (d *Dialer) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opened
}

// Closed returns the number of sessions closed.
func (d *Dialer) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

// Commands returns the commands run against target, in order.
func (d *Dialer) Commands(target string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.commands[target]...)
}

func accepts(dev *Device, creds session.CredentialSet) bool {
	if len(dev.Secrets) == 0 {
		return true
	}

	for _, s := range dev.Secrets {
		if s == creds.Secret {
			return true
		}
	}

	return false
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeSession struct {
	dialer *Dialer
	target string
	dev    *Device

	once sync.Once
}

func (s *fakeSession) Run(ctx context.Context, command string) (string, error) {
	s.dialer.mu.Lock()
	s.dialer.commands[s.target] = append(s.dialer.commands[s.target], command)
	s.dialer.mu.Unlock()

	if err := wait(ctx, s.dev.RunDelay); err != nil {
		return "", err
	}

	if partial, ok := s.dev.Stalls[command]; ok {
		<-ctx.Done()

		return partial, ctx.Err()
	}

	if err, ok := s.dev.Errors[command]; ok {
		return "", err
	}

	out, ok := s.dev.Outputs[command]
	if !ok && s.dev.Handler != nil {
		return s.dev.Handler(command)
	}

	if !ok {
		return "% Invalid input detected at '^' marker.\n", fmt.Errorf("%w: %q", session.ErrCommandFailed, command)
	}

	return out, nil
}

func (s *fakeSession) Close() error {
	s.once.Do(func() {
		s.dialer.mu.Lock()
		s.dialer.closed++
		s.dialer.mu.Unlock()
	})

	return nil
}
