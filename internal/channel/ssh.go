// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/logger"
)

// SSHConfig carries connection parameters for SshChannel, mirroring the
// knobs exposed by the ssh CLI subcommand.
type SSHConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	Timeout  time.Duration
}

// SshChannel opens one persistent connection at Start and runs every
// Execute as a single remote invocation over its own session (the
// underlying protocol multiplexes sessions over one connection).
type SshChannel struct {
	cfg SSHConfig

	mu     sync.Mutex
	state  State
	client *ssh.Client

	logger *logger.Logger
}

// NewSshChannel returns an SshChannel configured for the given target.
// Host-key verification is intentionally left open (InsecureIgnoreHostKey):
// targets are disposable or lab-controlled, not production hosts.
func NewSshChannel(cfg SSHConfig, lg *logger.Logger) (*SshChannel, error) {
	if cfg.Host == "" {
		return nil, errs.NewConfigError("host is empty", nil)
	}
	if cfg.User == "" {
		return nil, errs.NewConfigError("user is empty", nil)
	}
	if cfg.Port <= 0 || cfg.Port >= 65536 {
		return nil, errs.NewConfigError("port is out of range", nil)
	}
	if cfg.KeyFile != "" {
		if _, err := os.Stat(cfg.KeyFile); err != nil {
			return nil, errs.NewConfigError("private key doesn't exist", err)
		}
	}
	return &SshChannel{cfg: cfg, logger: lg}, nil
}

func (s *SshChannel) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *SshChannel) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Executing || s.state == Fetching
}

func (s *SshChannel) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	auth := []ssh.AuthMethod{}
	if s.cfg.Password != "" {
		auth = append(auth, ssh.Password(s.cfg.Password))
	}
	if s.cfg.KeyFile != "" {
		signer, err := signerFromFile(s.cfg.KeyFile)
		if err != nil {
			return errs.NewTransportError("load ssh key", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientCfg := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return errs.NewTransportError("ssh connect", err)
	}
	s.client = client
	return nil
}

func signerFromFile(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

func (s *SshChannel) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.state = Idle
	if err != nil {
		return errs.NewTransportError("close ssh connection", err)
	}
	return nil
}

func (s *SshChannel) ForceStop(ctx context.Context, timeout time.Duration) error {
	return s.Stop(ctx, timeout)
}

// Execute composes "cd <cwd> && export K=V && ... <command>" exactly as
// the prompt-based variants do, since setting the remote environment
// directly would require server-side AcceptEnv configuration.
func (s *SshChannel) Execute(ctx context.Context, command string, timeout time.Duration, cwd string, env []EnvPair, lineCallback func(string)) (ExecutionRecord, error) {
	rec := ExecutionRecord{Command: command, TimeoutSecs: timeout.Seconds(), Cwd: cwd, Env: env, Returncode: -1}

	if command == "" {
		return rec, errs.NewConfigError("command is empty", nil)
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return rec, errs.NewTransportError("ssh channel not started", nil)
	}

	session, err := client.NewSession()
	if err != nil {
		return rec, errs.NewTransportError("open ssh session", err)
	}
	defer session.Close()

	var b strings.Builder
	if cwd != "" {
		fmt.Fprintf(&b, "cd %s && ", cwd)
	}
	for _, kv := range env {
		fmt.Fprintf(&b, "export %s=%s && ", kv.Key, kv.Value)
	}
	b.WriteString(command)

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return rec, errs.NewTransportError("ssh stdout pipe", err)
	}
	session.Stderr = nil

	s.setState(Executing)
	defer s.setState(Idle)

	start := time.Now()
	if err := session.Start(b.String()); err != nil {
		return rec, errs.NewTransportError("ssh exec start", err)
	}

	done := make(chan error, 1)
	var outMu sync.Mutex
	var out strings.Builder
	go func() {
		scanner := bufio.NewScanner(stdoutPipe)
		for scanner.Scan() {
			line := scanner.Text()
			if lineCallback != nil {
				lineCallback(line)
			}
			outMu.Lock()
			out.WriteString(line)
			out.WriteString("\n")
			outMu.Unlock()
		}
		done <- session.Wait()
	}()

	readStdout := func() string {
		outMu.Lock()
		defer outMu.Unlock()
		return out.String()
	}

	select {
	case waitErr := <-done:
		rec.ExecTimeSecs = time.Since(start).Seconds()
		rec.Stdout = readStdout()
		if waitErr == nil {
			rec.Returncode = 0
			return rec, nil
		}
		if exitErr, ok := waitErr.(*ssh.ExitError); ok {
			rec.Returncode = exitErr.ExitStatus()
			return rec, nil
		}
		return rec, errs.NewTransportError("ssh wait", waitErr)
	case <-time.After(timeout):
		session.Close()
		rec.ExecTimeSecs = time.Since(start).Seconds()
		rec.Stdout = readStdout()
		return rec, errs.NewTimeoutError(fmt.Sprintf("%q command timed out (timeout=%s)", command, timeout))
	case <-ctx.Done():
		session.Close()
		return rec, ctx.Err()
	}
}

// FetchFile copies the remote file over an SFTP sub-session opened on
// the same control connection, rather than a second SSH dial.
func (s *SshChannel) FetchFile(ctx context.Context, remotePath, localPath string, timeout time.Duration) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return errs.NewTransportError("ssh channel not started", nil)
	}

	s.setState(Fetching)
	defer s.setState(Idle)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return errs.NewTransportError("open sftp client", err)
	}
	defer sftpClient.Close()

	out, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.NewTransportError("open destination file", err)
	}
	defer out.Close()

	done := make(chan error, 1)
	go func() {
		remoteFile, err := sftpClient.Open(remotePath)
		if err != nil {
			done <- err
			return
		}
		defer remoteFile.Close()
		_, err = io.Copy(out, remoteFile)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return errs.NewTransportError("sftp file transfer", err)
		}
		return nil
	case <-time.After(timeout):
		sftpClient.Close()
		return errs.NewTimeoutError(fmt.Sprintf("transfer timed out (timeout=%s): %s -> %s", timeout, remotePath, localPath))
	case <-ctx.Done():
		sftpClient.Close()
		return ctx.Err()
	}
}
