// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.fuchsia.dev/ltpng/internal/classifier"
	"go.fuchsia.dev/ltpng/internal/metadata"
	"go.fuchsia.dev/ltpng/internal/results"
)

func sampleSuites() []results.SuiteResult {
	return []results.SuiteResult{
		{
			Suite: metadata.Suite{Name: "syscalls"},
			Env:   results.SuiteEnv{Distro: "opensuse", DistroVersion: "15.5", Kernel: "Linux 6.1", Arch: "x86_64"},
			Tests: []results.TestResult{
				{
					Test:        metadata.Test{Name: "read01", Command: "read01", Arguments: nil},
					Counters:    classifier.Counters{Passed: 1},
					Returncode:  0,
					ExecTimeSec: 0.5,
					Stdout:      "TPASS\n",
				},
				{
					Test:        metadata.Test{Name: "write01", Command: "write01", Arguments: nil},
					Counters:    classifier.Counters{Failed: 1},
					Returncode:  1,
					ExecTimeSec: 0.2,
					Stdout:      "TFAIL\n",
				},
			},
		},
	}
}

func TestBuildAggregatesCounters(t *testing.T) {
	b := Build(sampleSuites())

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(doc.Suites) != 1 {
		t.Fatalf("expected 1 suite, got %d", len(doc.Suites))
	}
	s := doc.Suites[0]
	if s.Name != "syscalls" {
		t.Fatalf("expected suite name syscalls, got %s", s.Name)
	}
	if s.Results.Passed != 1 || s.Results.Failed != 1 {
		t.Fatalf("expected aggregate passed=1 failed=1, got %+v", s.Results)
	}
	if len(s.Tests) != 2 {
		t.Fatalf("expected 2 tests, got %d", len(s.Tests))
	}
	if s.SUT.Distro != "opensuse" || s.SUT.Arch != "x86_64" {
		t.Fatalf("unexpected sut doc: %+v", s.SUT)
	}
}

func TestWriteFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteFile(path, sampleSuites()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var doc document
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(doc.Suites) != 1 {
		t.Fatalf("expected 1 suite, got %d", len(doc.Suites))
	}
}
