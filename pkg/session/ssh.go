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

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/portmap/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = 22

// Legacy algorithms still shipped by older switch firmware. Entries the
// ssh package does not implement are filtered out by SetDefaults.
var (
	legacyCiphers = []string{
		"aes128-ctr", "aes192-ctr", "aes256-ctr",
		"aes128-gcm@openssh.com",
		"aes128-cbc", "3des-cbc",
	}
	legacyKeyExchanges = []string{
		"diffie-hellman-group-exchange-sha256",
		"diffie-hellman-group-exchange-sha1",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
	}
	legacyMACs = []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha1",
		"hmac-sha1-96",
	}
)

// SSHOptions configures an SSHDialer.
type SSHOptions struct {
	// KnownHostsFile enables host key verification when set.
	KnownHostsFile string
	// CommandTimeout bounds a single Run unless the context carries an
	// override from WithCommandTimeout.
	CommandTimeout time.Duration
}

// SSHDialer opens exec-channel sessions over golang.org/x/crypto/ssh.
type SSHDialer struct {
	hostKeyCallback ssh.HostKeyCallback
	commandTimeout  time.Duration
	logger          zerolog.Logger
}

// NewSSHDialer builds an SSHDialer. Without a known_hosts file host keys are
// accepted unverified.
func NewSSHDialer(log logger.Logger, opts SSHOptions) (*SSHDialer, error) {
	callback := ssh.InsecureIgnoreHostKey() //nolint:gosec // switch fleets rarely have managed host keys

	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", opts.KnownHostsFile, err)
		}

		callback = cb
	}

	return &SSHDialer{
		hostKeyCallback: callback,
		commandTimeout:  opts.CommandTimeout,
		logger:          log.WithComponent("ssh"),
	}, nil
}

func (d *SSHDialer) clientConfig(creds CredentialSet) (*ssh.ClientConfig, error) {
	auth, err := authMethods(creds)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            auth,
		HostKeyCallback: d.hostKeyCallback,
	}

	config.SetDefaults()

	config.Ciphers = appendMissing(config.Ciphers, legacyCiphers)
	config.KeyExchanges = appendMissing(config.KeyExchanges, legacyKeyExchanges)
	config.MACs = appendMissing(config.MACs, legacyMACs)

	return config, nil
}

func authMethods(creds CredentialSet) ([]ssh.AuthMethod, error) {
	if !creds.IsPrivateKey() {
		secret := creds.Secret

		return []ssh.AuthMethod{
			ssh.Password(secret),
			// Some NOS images only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = secret
				}

				return answers, nil
			}),
		}, nil
	}

	var (
		signer ssh.Signer
		err    error
	)

	if creds.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(creds.Secret), []byte(creds.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey([]byte(creds.Secret))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: private key: %w", ErrAuthRejected, err)
	}

	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// Dial connects, negotiates and authenticates within ctx's deadline.
func (d *SSHDialer) Dial(ctx context.Context, target string, creds CredentialSet) (Session, error) {
	config, err := d.clientConfig(creds)
	if err != nil {
		return nil, err
	}

	addr := hostPort(target, creds.Port, defaultSSHPort)

	var nd net.Dialer

	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)

	stop()

	if err != nil {
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, classifyHandshake(addr, err)
	}

	_ = conn.SetDeadline(time.Time{})

	d.logger.Debug().Str("addr", addr).Str("user", creds.Username).Msg("SSH session established")

	return &sshSession{
		client:         ssh.NewClient(c, chans, reqs),
		commandTimeout: d.commandTimeout,
	}, nil
}

func classifyHandshake(addr string, err error) error {
	msg := err.Error()

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: handshake: %w", addr, err)
	}

	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return fmt.Errorf("%w: %s: %w", ErrAuthRejected, addr, err)
	case strings.Contains(msg, "no common algorithm"),
		strings.Contains(msg, "handshake failed"):
		return fmt.Errorf("%w: %s: %w", ErrProtocolMismatch, addr, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, addr, err)
	}
}

type sshSession struct {
	client         *ssh.Client
	commandTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Run opens one exec channel per command. Cancellation kills the remote
// command and tears the channel down; whatever was printed until then is
// returned along with the context error.
func (s *sshSession) Run(ctx context.Context, command string) (string, error) {
	timeout := s.commandTimeout
	if override, ok := ctx.Value(commandTimeoutKey{}).(time.Duration); ok {
		timeout = override
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	out := &outputBuffer{}
	sess.Stdout = out
	sess.Stderr = out

	done := make(chan error, 1)

	go func() {
		done <- sess.Run(command)
	}()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return out.String(), fmt.Errorf("%w: %q: status %d", ErrCommandFailed, commandLabel(command), exitErr.ExitStatus())
			}

			return out.String(), fmt.Errorf("failed to run %q: %w", commandLabel(command), err)
		}

		return out.String(), nil
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()

		return out.String(), fmt.Errorf("run %q: %w", commandLabel(command), ctx.Err())
	}
}

// outputBuffer collects stdout and stderr of one command. It is read while
// the channel may still be copying into it.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

const maxCommandLabel = 64

// commandLabel shortens a command for error text: first line only, capped.
func commandLabel(command string) string {
	label, _, multiline := strings.Cut(command, "\n")
	if len(label) > maxCommandLabel {
		label = label[:maxCommandLabel]
		multiline = true
	}

	if multiline {
		label += "..."
	}

	return label
}

func (s *sshSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})

	return s.closeErr
}

func hostPort(target string, port, defaultPort int) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}

	if port <= 0 {
		port = defaultPort
	}

	return net.JoinHostPort(target, strconv.Itoa(port))
}

func appendMissing(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, v := range base {
		seen[v] = struct{}{}
	}

	for _, v := range extra {
		if _, ok := seen[v]; !ok {
			base = append(base, v)
			seen[v] = struct{}{}
		}
	}

	return base
}
