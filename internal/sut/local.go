// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sut

import (
	"context"
	"sync"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
	"go.fuchsia.dev/ltpng/internal/logger"
)

// Local is the SUT variant that runs tests directly on this host.
// Communicate is a no-op beyond creating a ProcessChannel: there is
// nothing to boot or log into.
type Local struct {
	shell  string
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	ch      *channel.ProcessChannel
}

// NewLocal returns a Local SUT that runs commands through shell (empty
// defaults to "/bin/sh").
func NewLocal(shell string, lg *logger.Logger) *Local {
	return &Local{shell: shell, logger: lg}
}

func (l *Local) Name() string { return "host" }

func (l *Local) Communicate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ch = channel.NewProcessChannel(l.shell, l.logger)
	if err := l.ch.Start(ctx); err != nil {
		return err
	}
	l.running = true
	return nil
}

func (l *Local) Channel() channel.Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ch == nil {
		return nil
	}
	return l.ch
}

func (l *Local) Stop(ctx context.Context, timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ch != nil {
		if err := l.ch.Stop(ctx, timeout); err != nil {
			return err
		}
	}
	l.running = false
	return nil
}

func (l *Local) ForceStop(ctx context.Context, timeout time.Duration) error {
	return l.Stop(ctx, timeout)
}

func (l *Local) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
