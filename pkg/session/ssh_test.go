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
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/carverauto/portmap/pkg/logger"
)

const hangCommand = "terminal monitor"

var errDenied = errors.New("denied")

// testSSHServer is a minimal exec-only SSH server.
type testSSHServer struct {
	addr    string
	config  *ssh.ServerConfig
	outputs map[string]string
}

func startSSHServer(t *testing.T, password string, authorized ssh.PublicKey, outputs map[string]string) *testSSHServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return &ssh.Permissions{}, nil
			}

			return nil, errDenied
		},
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}

			return nil, errDenied
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = ln.Close() })

	s := &testSSHServer{addr: ln.Addr().String(), config: config, outputs: outputs}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go s.handle(conn)
		}
	}()

	return s
}

func (s *testSSHServer) handle(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}

		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}

		go s.serve(ch, requests)
	}
}

func (s *testSSHServer) serve(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}

			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}

		_ = req.Reply(true, nil)

		if payload.Command == hangCommand {
			if out, ok := s.outputs[hangCommand]; ok {
				_, _ = ch.Write([]byte(out))
			}

			for r := range requests {
				if r.Type == "signal" {
					return
				}
			}

			return
		}

		out, ok := s.outputs[payload.Command]
		status := uint32(0)

		if !ok {
			out = "% Invalid input detected\n"
			status = 1
		}

		_, _ = ch.Write([]byte(out))
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))

		return
	}
}

func newTestSSHDialer(t *testing.T) *SSHDialer {
	t.Helper()

	d, err := NewSSHDialer(logger.NewTestLogger(), SSHOptions{})
	require.NoError(t, err)

	return d
}

func TestSSHDialerRunsCommands(t *testing.T) {
	srv := startSSHServer(t, "secret", nil, map[string]string{
		"show version": "Cisco Nexus Operating System (NX-OS) Software\n",
	})

	d := newTestSSHDialer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := d.Dial(ctx, srv.addr, CredentialSet{Username: "admin", Secret: "secret"})
	require.NoError(t, err)

	defer func() { _ = sess.Close() }()

	out, err := sess.Run(context.Background(), "show version")
	require.NoError(t, err)
	assert.Contains(t, out, "NX-OS")

	out, err = sess.Run(context.Background(), "show mac address-table")
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, out, "Invalid input")

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestSSHDialerRejectsBadPassword(t *testing.T) {
	srv := startSSHServer(t, "secret", nil, nil)

	c := NewClient(logger.NewTestLogger(), 5*time.Second, map[Transport]Dialer{TransportSSH: newTestSSHDialer(t)})

	_, err := c.Open(context.Background(), srv.addr, []CredentialSet{{Username: "admin", Secret: "wrong"}})
	require.ErrorIs(t, err, ErrAuth)
	require.ErrorIs(t, err, ErrAuthRejected)
}

func TestSSHDialerFallsBackToSecondSet(t *testing.T) {
	srv := startSSHServer(t, "right", nil, map[string]string{"show version": "Arista vEOS\n"})

	c := NewClient(logger.NewTestLogger(), 5*time.Second, map[Transport]Dialer{TransportSSH: newTestSSHDialer(t)})

	h, err := c.Open(context.Background(), srv.addr, []CredentialSet{
		{Name: "first", Username: "admin", Secret: "wrong"},
		{Name: "second", Username: "admin", Secret: "right"},
	})
	require.NoError(t, err)

	defer func() { _ = h.Close() }()

	assert.Equal(t, "second", h.Credentials.Name)
	require.Len(t, h.Failed, 1)
	assert.Equal(t, AttemptAuthRejected, h.Failed[0].Kind)
}

func TestSSHDialerPrivateKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	srv := startSSHServer(t, "", sshPub, map[string]string{"uname -a": "Linux leaf01 cumulus\n"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	creds := CredentialSet{Username: "cumulus", Secret: string(pem.EncodeToMemory(block))}
	require.True(t, creds.IsPrivateKey())

	sess, err := newTestSSHDialer(t).Dial(ctx, srv.addr, creds)
	require.NoError(t, err)

	defer func() { _ = sess.Close() }()

	out, err := sess.Run(ctx, "uname -a")
	require.NoError(t, err)
	assert.Contains(t, out, "cumulus")
}

func TestSSHDialerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := NewClient(logger.NewTestLogger(), 2*time.Second, map[Transport]Dialer{TransportSSH: newTestSSHDialer(t)})

	_, err = c.Open(context.Background(), addr, []CredentialSet{{Username: "admin", Secret: "x"}})

	var failure *OpenFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, AttemptUnreachable, failure.Attempts[0].Kind)
	assert.ErrorIs(t, err, ErrConnect)
}

func TestSSHRunHonoursCancellation(t *testing.T) {
	srv := startSSHServer(t, "secret", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := newTestSSHDialer(t).Dial(ctx, srv.addr, CredentialSet{Username: "admin", Secret: "secret"})
	require.NoError(t, err)

	defer func() { _ = sess.Close() }()

	runCtx, runCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer runCancel()

	start := time.Now()
	_, err = sess.Run(runCtx, hangCommand)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSSHRunKeepsOutputOnTimeout(t *testing.T) {
	srv := startSSHServer(t, "secret", nil, map[string]string{hangCommand: "line one\nline two\n"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := newTestSSHDialer(t).Dial(ctx, srv.addr, CredentialSet{Username: "admin", Secret: "secret"})
	require.NoError(t, err)

	defer func() { _ = sess.Close() }()

	runCtx, runCancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer runCancel()

	out, err := sess.Run(runCtx, hangCommand)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "line one\nline two\n", out)
}

func TestCommandLabel(t *testing.T) {
	assert.Equal(t, "show version", commandLabel("show version"))
	assert.Equal(t, "echo a...", commandLabel("echo a\necho b"))
	assert.Len(t, commandLabel(strings.Repeat("x", 200)), maxCommandLabel+3)
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", hostPort("10.0.0.1", 0, defaultSSHPort))
	assert.Equal(t, "10.0.0.1:2222", hostPort("10.0.0.1", 2222, defaultSSHPort))
	assert.Equal(t, "10.0.0.1:830", hostPort("10.0.0.1:830", 22, defaultSSHPort))
	assert.Equal(t, "[fe80::1]:22", hostPort("fe80::1", 0, defaultSSHPort))
}
