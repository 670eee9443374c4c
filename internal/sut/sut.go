// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sut implements lifecycle management (boot/login/stop/force-stop)
// for each System Under Test variant: the local host, a remote machine
// over SSH, and a transient hypervisor guest.
package sut

import (
	"context"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
)

// SUT manages the lifecycle of one execution target and hands out the
// Channel used to drive it.
type SUT interface {
	// Name identifies the SUT kind, e.g. "host", "ssh", "qemu". The
	// dispatcher treats "host" specially: it never reboots a local SUT
	// on a new kernel taint.
	Name() string

	// Communicate brings the SUT up: boots/logs in for the hypervisor
	// variant, connects for SSH, or is a no-op for the local host; in
	// every case it ends with a usable Channel.
	Communicate(ctx context.Context) error

	// Channel returns the Channel opened by the last successful
	// Communicate. It is nil before the first Communicate.
	Channel() channel.Channel

	// Stop gracefully shuts the SUT down.
	Stop(ctx context.Context, timeout time.Duration) error

	// ForceStop kills the SUT without graceful shutdown.
	ForceStop(ctx context.Context, timeout time.Duration) error

	// IsRunning reports whether Communicate has succeeded and Stop/
	// ForceStop has not yet completed.
	IsRunning() bool
}
