// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sut

import (
	"context"
	"sync"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/logger"
)

// SSH is the SUT variant that reaches its target over an SSH
// connection. Reboot is not supported: ForceStop simply disconnects,
// matching the source's treatment of SSH targets as pre-existing
// machines this orchestrator does not own the power state of.
type SSH struct {
	cfg    config.SSHConfig
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	ch      *channel.SshChannel
}

// NewSSH returns an SSH SUT for the given connection parameters.
func NewSSH(cfg config.SSHConfig, lg *logger.Logger) *SSH {
	return &SSH{cfg: cfg, logger: lg}
}

func (s *SSH) Name() string { return "ssh" }

func (s *SSH) Communicate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := channel.NewSshChannel(channel.SSHConfig{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		User:     s.cfg.User,
		Password: s.cfg.Password,
		KeyFile:  s.cfg.KeyFile,
		Timeout:  s.cfg.Timeout,
	}, s.logger)
	if err != nil {
		return err
	}
	if err := ch.Start(ctx); err != nil {
		return err
	}
	s.ch = ch
	s.running = true
	return nil
}

func (s *SSH) Channel() channel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return nil
	}
	return s.ch
}

func (s *SSH) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		if err := s.ch.Stop(ctx, timeout); err != nil {
			return err
		}
	}
	s.running = false
	return nil
}

// ForceStop disconnects immediately; SSH targets are not rebooted by
// this orchestrator.
func (s *SSH) ForceStop(ctx context.Context, timeout time.Duration) error {
	return s.Stop(ctx, timeout)
}

func (s *SSH) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
