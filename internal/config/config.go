// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config defines the typed configuration structs that the CLI
// boundary builds from flags/environment and passes explicitly into the
// SUT and Dispatcher constructors. Nothing under internal/ reads the
// environment directly; only cmd/ltpng does.
package config

import "time"

// HostConfig configures the local-host SUT variant. It has no fields of
// its own and is not taken by sut.NewLocal, which receives its shell
// directly.
type HostConfig struct{}

// SSHConfig configures the SSH SUT variant.
type SSHConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	Timeout  time.Duration
}

// SerialType selects the hypervisor's secondary console transport.
type SerialType string

const (
	SerialISA    SerialType = "isa"
	SerialVirtio SerialType = "virtio"
)

// HypervisorConfig configures the QEMU-driven hypervisor SUT variant.
type HypervisorConfig struct {
	Image        string
	ImageOverlay string
	ROImage      string
	Password     string
	System       string // qemu-system-<System>, default "x86_64"
	RAM          string // default "2G"
	SMP          string // default "2"
	Virtfs       string
	SerialType   SerialType
	ExtraOpts    []string
	TmpDir       string
}

// DispatcherConfig configures the suite scheduler.
type DispatcherConfig struct {
	LTPRoot          string
	TmpDir           string
	Suites           []string
	SuiteTimeout     time.Duration
	TestTimeout      time.Duration
	ColorizeOutput   bool
}

// DefaultSuiteTimeout and DefaultTestTimeout match the source's 3600s
// per-suite/per-test defaults.
const (
	DefaultSuiteTimeout = 3600 * time.Second
	DefaultTestTimeout  = 3600 * time.Second
)
