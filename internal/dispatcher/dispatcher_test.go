// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/events"
	"go.fuchsia.dev/ltpng/internal/metadata"
)

// fakeChannel answers Execute by pattern-matching the command text; it
// exists so tests can drive Dispatcher without a real shell.
type fakeChannel struct {
	responses map[string]channel.ExecutionRecord
	tainted   []int // successive /proc/sys/kernel/tainted readings
	taintIdx  int

	fetchFile func(remote, local string) error
}

func (f *fakeChannel) Start(ctx context.Context) error { return nil }
func (f *fakeChannel) Stop(ctx context.Context, timeout time.Duration) error { return nil }
func (f *fakeChannel) ForceStop(ctx context.Context, timeout time.Duration) error { return nil }
func (f *fakeChannel) IsRunning() bool { return false }

func (f *fakeChannel) Execute(ctx context.Context, command string, timeout time.Duration, cwd string, env []channel.EnvPair, lineCallback func(string)) (channel.ExecutionRecord, error) {
	if command == "cat /proc/sys/kernel/tainted" {
		code := 0
		if f.taintIdx < len(f.tainted) {
			code = f.tainted[f.taintIdx]
		} else if len(f.tainted) > 0 {
			code = f.tainted[len(f.tainted)-1]
		}
		f.taintIdx++
		return channel.ExecutionRecord{Command: command, Stdout: itoa(code) + "\n", Returncode: 0}, nil
	}

	for pattern, rec := range f.responses {
		if strings.Contains(command, pattern) {
			if lineCallback != nil {
				for _, l := range strings.Split(strings.TrimRight(rec.Stdout, "\n"), "\n") {
					if l != "" {
						lineCallback(l)
					}
				}
			}
			return rec, nil
		}
	}
	return channel.ExecutionRecord{Command: command, Returncode: 0}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func (f *fakeChannel) FetchFile(ctx context.Context, remotePath, localPath string, timeout time.Duration) error {
	if f.fetchFile != nil {
		return f.fetchFile(remotePath, localPath)
	}
	return nil
}

type fakeSUT struct {
	name    string
	ch      *fakeChannel
	started int
}

func (s *fakeSUT) Name() string { return s.name }
func (s *fakeSUT) Communicate(ctx context.Context) error { s.started++; return nil }
func (s *fakeSUT) Channel() channel.Channel { return s.ch }
func (s *fakeSUT) Stop(ctx context.Context, timeout time.Duration) error { return nil }
func (s *fakeSUT) ForceStop(ctx context.Context, timeout time.Duration) error { return nil }
func (s *fakeSUT) IsRunning() bool { return true }

func newFakeSUTAndChannel(name string) (*fakeSUT, *fakeChannel) {
	fc := &fakeChannel{responses: map[string]channel.ExecutionRecord{
		"ls -1": {Returncode: 0, Stdout: "syscalls\n"},
		"read01": {Returncode: 0, Stdout: "read01 1 TPASS\n"},
		". /etc/os-release; echo \"$ID\"":         {Returncode: 0, Stdout: "opensuse\n"},
		". /etc/os-release; echo \"$VERSION_ID\"": {Returncode: 0, Stdout: "15.5\n"},
		"uname -s -r -v": {Returncode: 0, Stdout: "Linux 6.1\n"},
		"uname -m":       {Returncode: 0, Stdout: "x86_64\n"},
		"dmesg":          {Returncode: 0, Stdout: "kernel log\n"},
	}}
	return &fakeSUT{name: name, ch: fc}, fc
}

func writeSuiteFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("read01 read01\n"), 0o644); err != nil {
		t.Fatalf("write suite file: %v", err)
	}
}

func TestDispatcherExecSuitesHappyPath(t *testing.T) {
	tmp := t.TempDir()
	target, fc := newFakeSUTAndChannel("host")
	fc.fetchFile = func(remote, local string) error {
		writeSuiteFile(t, local)
		return nil
	}

	d, err := New(config.DispatcherConfig{LTPRoot: "/opt/ltp", TmpDir: tmp}, target, events.NopObserver{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := d.ExecSuites(context.Background(), []string{"syscalls"})
	if err != nil {
		t.Fatalf("ExecSuites failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 suite result, got %d", len(out))
	}
	sr := out[0]
	if len(sr.Tests) != 1 || sr.Tests[0].Counters.Passed != 1 {
		t.Fatalf("expected 1 passing test, got %+v", sr.Tests)
	}
	if sr.Env.Distro != "opensuse" || sr.Env.Arch != "x86_64" {
		t.Fatalf("unexpected env snapshot: %+v", sr.Env)
	}

	dmesgPath := filepath.Join(tmp, "dmesg_syscalls.log")
	if _, err := os.Stat(dmesgPath); err != nil {
		t.Fatalf("expected dmesg log to be written: %v", err)
	}
}

func TestDispatcherRejectsUnavailableSuite(t *testing.T) {
	tmp := t.TempDir()
	target, _ := newFakeSUTAndChannel("host")

	d, err := New(config.DispatcherConfig{LTPRoot: "/opt/ltp", TmpDir: tmp}, target, events.NopObserver{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := d.ExecSuites(context.Background(), []string{"nonexistent"}); err == nil {
		t.Fatal("expected error for unavailable suite")
	}
}

func TestDispatcherEmitsKernelTaintedOnChange(t *testing.T) {
	tmp := t.TempDir()
	target, fc := newFakeSUTAndChannel("host")
	fc.tainted = []int{0, 1} // before=0 (clean), after=1 (bit 0 set)
	fc.fetchFile = func(remote, local string) error {
		writeSuiteFile(t, local)
		return nil
	}

	var tainted []string
	obs := &recordingObs{onTainted: func(msg string) { tainted = append(tainted, msg) }}

	d, err := New(config.DispatcherConfig{LTPRoot: "/opt/ltp", TmpDir: tmp}, target, obs, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := d.ExecSuites(context.Background(), []string{"syscalls"}); err != nil {
		t.Fatalf("ExecSuites failed: %v", err)
	}

	if len(tainted) == 0 {
		t.Fatal("expected at least one kernel_tainted notification")
	}
}

type recordingObs struct {
	events.NopObserver
	onTainted func(string)
}

func (r *recordingObs) KernelTainted(msg string) {
	if r.onTainted != nil {
		r.onTainted(msg)
	}
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	target, _ := newFakeSUTAndChannel("host")

	d, err := New(config.DispatcherConfig{LTPRoot: "/opt/ltp", TmpDir: tmp}, target, events.NopObserver{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Stop(context.Background(), 0); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := d.Stop(context.Background(), 0); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if d.IsRunning() {
		t.Fatal("expected IsRunning false after Stop")
	}
}

func TestMetadataReaderOverrideIsUsed(t *testing.T) {
	tmp := t.TempDir()
	target, fc := newFakeSUTAndChannel("host")
	fc.fetchFile = func(remote, local string) error {
		return os.WriteFile(local, nil, 0o644)
	}

	d, err := New(config.DispatcherConfig{LTPRoot: "/opt/ltp", TmpDir: tmp}, target, events.NopObserver{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	called := false
	d.metadataReader = func(path string) (metadata.Suite, error) {
		called = true
		return metadata.Suite{Name: "syscalls", Tests: []metadata.Test{{Name: "read01", Command: "read01"}}}, nil
	}

	if _, err := d.ExecSuites(context.Background(), []string{"syscalls"}); err != nil {
		t.Fatalf("ExecSuites failed: %v", err)
	}
	if !called {
		t.Fatal("expected metadataReader override to be invoked")
	}
}
