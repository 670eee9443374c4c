// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package channel

import (
	"context"
	"io"
	"sync"
	"time"

	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/prompt"
	"go.fuchsia.dev/ltpng/internal/transport"
)

// SerialChannel multiplexes commands over a single interactive byte
// stream (a hypervisor guest's login console) via CommandPrompt, and
// fetches files through a second device via FileTransport.
type SerialChannel struct {
	cp        *prompt.CommandPrompt
	transport *transport.FileTransport

	mu    sync.Mutex
	state State

	logger *logger.Logger
}

// NewSerialChannel builds a SerialChannel over an already-connected
// console stream (stdin/stdout of a hypervisor process, or a raw serial
// device). ft may be nil if no secondary transport device was
// configured, in which case FetchFile always fails.
func NewSerialChannel(stdin io.Writer, stdout io.Reader, ft *transport.FileTransport, lg *logger.Logger) *SerialChannel {
	return &SerialChannel{
		cp:        prompt.New(stdin, stdout, true, lg),
		transport: ft,
		logger:    lg,
	}
}

func (s *SerialChannel) Start(ctx context.Context) error {
	return s.cp.Start(ctx)
}

// RawWrite and RawReadUntil give a SUT variant (the hypervisor) access
// to the single underlying byte stream for a login handshake that must
// complete before Start installs the command prompt.
func (s *SerialChannel) RawWrite(text string) error {
	return s.cp.RawWrite(text)
}

func (s *SerialChannel) RawReadUntil(ctx context.Context, predicate func(string) bool, deadline time.Time) (string, bool, error) {
	return s.cp.RawReadUntil(ctx, predicate, deadline)
}

func (s *SerialChannel) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *SerialChannel) IsRunning() bool {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	return st == Executing || st == Fetching || s.cp.IsRunning()
}

func (s *SerialChannel) Stop(ctx context.Context, timeout time.Duration) error {
	return s.cp.Stop(ctx, timeout)
}

func (s *SerialChannel) ForceStop(ctx context.Context, timeout time.Duration) error {
	return s.cp.Stop(ctx, timeout)
}

func (s *SerialChannel) Execute(ctx context.Context, command string, timeout time.Duration, cwd string, env []EnvPair, lineCallback func(string)) (ExecutionRecord, error) {
	rec := ExecutionRecord{Command: command, TimeoutSecs: timeout.Seconds(), Cwd: cwd, Env: env}

	pEnv := make([]prompt.EnvPair, 0, len(env))
	for _, kv := range env {
		pEnv = append(pEnv, prompt.EnvPair{Key: kv.Key, Value: kv.Value})
	}

	s.setState(Executing)
	defer s.setState(Idle)

	retcode, elapsed, stdout, err := s.cp.Execute(ctx, command, timeout, cwd, pEnv, lineCallback)
	rec.Returncode = retcode
	rec.ExecTimeSecs = elapsed.Seconds()
	rec.Stdout = stdout

	if err != nil {
		if errs.IsTimeout(err) {
			rec.Returncode = -1
		}
		return rec, err
	}
	return rec, nil
}

// FetchFile downloads remotePath via the secondary transport device,
// issuing the triggering "cat" through the same CommandPrompt used for
// Execute.
func (s *SerialChannel) FetchFile(ctx context.Context, remotePath, localPath string, timeout time.Duration) error {
	if s.transport == nil {
		return errs.NewConfigError("no file transport device configured", nil)
	}

	s.setState(Fetching)
	defer s.setState(Idle)

	exec := func(ctx context.Context, command string, timeout time.Duration) (int, error) {
		rc, _, _, err := s.cp.Execute(ctx, command, timeout, "", nil, nil)
		return rc, err
	}

	return s.transport.Get(ctx, exec, remotePath, localPath, timeout)
}
