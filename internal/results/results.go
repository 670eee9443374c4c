// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package results defines the TestResult/SuiteResult value types the
// dispatcher accumulates and the report writer serializes.
package results

import (
	"go.fuchsia.dev/ltpng/internal/classifier"
	"go.fuchsia.dev/ltpng/internal/metadata"
)

// TestResult is a completed test plus its classified counters.
type TestResult struct {
	Test        metadata.Test
	Counters    classifier.Counters
	Returncode  int
	ExecTimeSec float64
	Stdout      string
	TimedOut    bool
}

// SuiteEnv snapshots the target environment a suite ran under.
type SuiteEnv struct {
	Distro        string
	DistroVersion string
	Kernel        string
	Arch          string
}

// SuiteResult is a completed suite: its manifest, its ordered test
// results, and the environment snapshot taken after the run.
type SuiteResult struct {
	Suite   metadata.Suite
	Tests   []TestResult
	Env     SuiteEnv
	SUTName string
}
