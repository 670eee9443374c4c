// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dispatcher implements the serial test scheduler: for each
// configured suite it downloads the manifest, runs every test through
// the SUT's Channel, classifies the result, watches for kernel taint
// and panic, and reboots the SUT when either appears.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
	"go.fuchsia.dev/ltpng/internal/classifier"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/events"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/metadata"
	"go.fuchsia.dev/ltpng/internal/results"
	"go.fuchsia.dev/ltpng/internal/sut"
)

// taintedMessages decodes the kernel's /proc/sys/kernel/tainted bitfield,
// one description per bit, least-significant first.
var taintedMessages = []string{
	"proprietary module was loaded",
	"module was force loaded",
	"kernel running on an out of specification system",
	"module was force unloaded",
	"processor reported a Machine Check Exception (MCE)",
	"bad page referenced or some unexpected page flags",
	"taint requested by userspace application",
	"kernel died recently, i.e. there was an OOPS or BUG",
	"ACPI table overridden by user",
	"kernel issued warning",
	"staging driver was loaded",
	"workaround for bug in platform firmware applied",
	`externally-built ("out-of-tree") module was loaded`,
	"unsigned module was loaded",
	"soft lockup occurred",
	"kernel has been live patched",
	"auxiliary taint, defined for and used by distros",
	"kernel was built with the struct randomization plugin",
}

const dispatcherDefaultStopWait = 30 * time.Second

const (
	diagTimeout  = 10 * time.Second
	dmesgTimeout = 60 * time.Second
)

// Dispatcher runs suites against one SUT, one test at a time.
type Dispatcher struct {
	cfg      config.DispatcherConfig
	target   sut.SUT
	observer events.Observer
	logger   *logger.Logger

	metadataReader func(path string) (metadata.Suite, error)

	running       atomic.Bool
	stopRequested atomic.Bool
}

// New returns a Dispatcher for target, reporting through observer.
// observer must not be nil; pass events.NopObserver{} if nothing needs
// to watch.
func New(cfg config.DispatcherConfig, target sut.SUT, observer events.Observer, lg *logger.Logger) (*Dispatcher, error) {
	if cfg.LTPRoot == "" {
		return nil, errs.NewConfigError("LTP directory is not defined", nil)
	}
	if cfg.TmpDir == "" {
		return nil, errs.NewConfigError("temporary directory doesn't exist", nil)
	}
	if info, err := os.Stat(cfg.TmpDir); err != nil || !info.IsDir() {
		return nil, errs.NewConfigError("temporary directory doesn't exist", err)
	}
	if target == nil {
		return nil, errs.NewConfigError("SUT is empty", nil)
	}
	if observer == nil {
		return nil, errs.NewConfigError("no events observer given", nil)
	}
	if cfg.SuiteTimeout <= 0 {
		cfg.SuiteTimeout = config.DefaultSuiteTimeout
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = config.DefaultTestTimeout
	}

	return &Dispatcher{
		cfg:            cfg,
		target:         target,
		observer:       observer,
		logger:         lg,
		metadataReader: metadata.ReadSuite,
	}, nil
}

// IsRunning reports whether ExecSuites is currently executing.
func (d *Dispatcher) IsRunning() bool { return d.running.Load() }

// Stop requests the current and any subsequent suite to abort, then
// waits up to timeout (<=0 clamped to a 30s default, never "return
// immediately": see the Stop(timeout=0) open question) for the run to
// actually settle.
func (d *Dispatcher) Stop(ctx context.Context, timeout time.Duration) error {
	d.logf(ctx, "stopping dispatcher")
	d.stopRequested.Store(true)

	if !d.IsRunning() {
		return nil
	}
	if timeout <= 0 {
		timeout = dispatcherDefaultStopWait
	}

	deadline := time.Now().Add(timeout)
	for d.IsRunning() {
		if time.Now().After(deadline) {
			return errs.NewTimeoutError("dispatcher timed out during stop")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

func (d *Dispatcher) ch() channel.Channel { return d.target.Channel() }

func (d *Dispatcher) checkTainted(ctx context.Context) (int, []string, error) {
	rec, err := d.ch().Execute(ctx, "cat /proc/sys/kernel/tainted", diagTimeout, "", nil, nil)
	if err != nil {
		return 0, nil, err
	}
	if rec.Returncode != 0 {
		return 0, nil, errs.NewInternalError("reading /proc/sys/kernel/tainted failed")
	}

	code, err := strconv.Atoi(strings.TrimSpace(rec.Stdout))
	if err != nil {
		return 0, nil, errs.NewInternalError("tainted register is not an integer")
	}

	var msgs []string
	for i, msg := range taintedMessages {
		if code&(1<<uint(i)) != 0 {
			msgs = append(msgs, msg)
		}
	}
	return code, msgs, nil
}

func (d *Dispatcher) rebootSUT(ctx context.Context, force bool) error {
	d.logf(ctx, "rebooting SUT")
	d.observer.SUTRestart(d.target.Name())

	var err error
	if force {
		err = d.target.ForceStop(ctx, 0)
	} else {
		err = d.target.Stop(ctx, 0)
	}
	if err != nil {
		return err
	}

	if err := d.target.Communicate(ctx); err != nil {
		return err
	}
	d.logf(ctx, "SUT rebooted")
	return nil
}

func (d *Dispatcher) runTest(ctx context.Context, test metadata.Test, env []channel.EnvPair, cwd string) (results.TestResult, error) {
	d.logf(ctx, "running test %s", test.Name)
	d.observer.TestStarted(test)

	tCodeBefore, tMsgBefore, err := d.checkTainted(ctx)
	if err != nil {
		return results.TestResult{}, err
	}
	// Reports every bit already set before this test runs, not just new
	// ones; a SUT tainted from a prior test re-fires the same messages
	// here on each subsequent test. Matches serial.py's preflight check.
	for _, msg := range tMsgBefore {
		d.observer.KernelTainted(msg)
	}

	var stdoutLines []string
	lineCb := func(line string) {
		d.observer.TestStdoutLine(test, line)
		stdoutLines = append(stdoutLines, line)
	}

	cmd := test.Command
	if len(test.Arguments) > 0 {
		cmd = cmd + " " + strings.Join(test.Arguments, " ")
	}

	rec, execErr := d.ch().Execute(ctx, cmd, d.cfg.TestTimeout, cwd, env, lineCb)

	timedOut := false
	if execErr != nil {
		if !errs.IsTimeout(execErr) {
			return results.TestResult{}, execErr
		}
		timedOut = true

		if hasKernelPanic(stdoutLines) {
			d.observer.KernelPanic()
			if err := d.rebootSUT(ctx, true); err != nil {
				return results.TestResult{}, err
			}
		} else if d.probeAlive(ctx) {
			d.observer.TestTimedOut(test.Name, d.cfg.TestTimeout.Seconds())
		} else {
			d.logf(ctx, "SUT is not responding")
			d.observer.SUTNotResponding(d.target.Name())
			if err := d.rebootSUT(ctx, true); err != nil {
				return results.TestResult{}, err
			}
		}

		rec = channel.ExecutionRecord{
			Command:      cmd,
			Returncode:   -1,
			Stdout:       strings.Join(stdoutLines, "\n"),
			ExecTimeSecs: d.cfg.TestTimeout.Seconds(),
			Cwd:          cwd,
			Env:          env,
		}
	}

	tr := results.TestResult{
		Test:        test,
		Counters:    classifier.Classify(rec.Stdout, rec.Returncode),
		Returncode:  rec.Returncode,
		ExecTimeSec: rec.ExecTimeSecs,
		Stdout:      rec.Stdout,
		TimedOut:    timedOut,
	}

	tCodeAfter, tMsgAfter, err := d.checkTainted(ctx)
	if err != nil {
		return results.TestResult{}, err
	}
	if tCodeBefore != tCodeAfter {
		for _, msg := range tMsgAfter {
			d.observer.KernelTainted(msg)
		}
	}

	d.observer.TestCompleted(tr)
	d.logf(ctx, "test completed")

	if tCodeBefore != tCodeAfter && d.target.Name() != "host" {
		if err := d.rebootSUT(ctx, false); err != nil {
			return results.TestResult{}, err
		}
	}

	return tr, nil
}

func hasKernelPanic(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, "Kernel panic") {
			return true
		}
	}
	return false
}

// probeAlive reports whether the SUT still replies to a trivial
// command within a short bound, distinguishing a merely-slow test from
// a dead target.
func (d *Dispatcher) probeAlive(ctx context.Context) bool {
	_, err := d.ch().Execute(ctx, "test .", 3*time.Second, "", nil, nil)
	return err == nil
}

func (d *Dispatcher) readDiag(ctx context.Context, cmd string) (string, error) {
	rec, err := d.ch().Execute(ctx, cmd, diagTimeout, "", nil, nil)
	if err != nil {
		return "", err
	}
	if rec.Returncode != 0 {
		return "", errs.NewInternalError(fmt.Sprintf("can't read information from SUT: %s", cmd))
	}
	return strings.TrimSpace(rec.Stdout), nil
}

func (d *Dispatcher) runSuite(ctx context.Context, suite metadata.Suite) (*results.SuiteResult, error) {
	d.logf(ctx, "running suite %s", suite.Name)
	d.observer.SuiteStarted(suite)

	env := []channel.EnvPair{
		{Key: "LTPROOT", Value: d.cfg.LTPRoot},
		{Key: "LTP_COLORIZE_OUTPUT", Value: colorizeFlag(d.cfg.ColorizeOutput)},
		{Key: "PATH", Value: "/sbin:/usr/sbin:/usr/local/sbin:/root/bin:/usr/local/bin:/usr/bin:/bin:" +
			filepath.Join(d.cfg.LTPRoot, "testcases", "bin")},
	}

	var testResults []results.TestResult
	start := time.Now()

	for _, test := range suite.Tests {
		if d.stopRequested.Load() {
			break
		}

		tr, err := d.runTest(ctx, test, env, d.cfg.LTPRoot)
		if err != nil {
			return nil, err
		}
		testResults = append(testResults, tr)

		if time.Since(start) >= d.cfg.SuiteTimeout {
			return nil, errs.NewSuiteTimeoutError(
				fmt.Sprintf("%s suite timed out (timeout=%s)", suite.Name, d.cfg.SuiteTimeout))
		}
	}

	d.logf(ctx, "reading SUT information")
	distro, err := d.readDiag(ctx, `. /etc/os-release; echo "$ID"`)
	if err != nil {
		return nil, err
	}
	distroVer, err := d.readDiag(ctx, `. /etc/os-release; echo "$VERSION_ID"`)
	if err != nil {
		return nil, err
	}
	kernel, err := d.readDiag(ctx, "uname -s -r -v")
	if err != nil {
		return nil, err
	}
	arch, err := d.readDiag(ctx, "uname -m")
	if err != nil {
		return nil, err
	}

	sr := &results.SuiteResult{
		Suite:   suite,
		Tests:   testResults,
		SUTName: d.target.Name(),
		Env: results.SuiteEnv{
			Distro:        distro,
			DistroVersion: distroVer,
			Kernel:        kernel,
			Arch:          arch,
		},
	}

	d.logf(ctx, "storing dmesg information")
	dmesgRec, err := d.ch().Execute(ctx, "dmesg", dmesgTimeout, "", nil, nil)
	if err != nil {
		return nil, err
	}
	dmesgPath := filepath.Join(d.cfg.TmpDir, fmt.Sprintf("dmesg_%s.log", suite.Name))
	if err := os.WriteFile(dmesgPath, []byte(dmesgRec.Stdout), 0o644); err != nil {
		return nil, errs.NewInternalError("write dmesg log: " + err.Error())
	}

	d.observer.SuiteCompleted(*sr)
	d.logf(ctx, "suite completed")

	return sr, nil
}

func colorizeFlag(on bool) string {
	if on {
		return "y"
	}
	return "n"
}

// ExecSuites downloads and runs every named suite in order, returning
// the accumulated results. Stop, once requested, ends the run after
// the in-flight test completes; suites and tests already run are kept.
func (d *Dispatcher) ExecSuites(ctx context.Context, suiteNames []string) ([]results.SuiteResult, error) {
	if len(suiteNames) == 0 {
		return nil, errs.NewConfigError("suites list is empty", nil)
	}

	tmpSuites := filepath.Join(d.cfg.TmpDir, "suites")
	if err := os.MkdirAll(tmpSuites, 0o755); err != nil {
		return nil, errs.NewConfigError("create suites directory", err)
	}

	d.running.Store(true)
	defer func() {
		d.running.Store(false)
		d.stopRequested.Store(false)
	}()

	avail, err := d.readAvailableSuites(ctx)
	if err != nil {
		return nil, err
	}
	availSet := make(map[string]bool, len(avail))
	for _, n := range avail {
		availSet[n] = true
	}
	for _, name := range suiteNames {
		if !availSet[name] {
			return nil, errs.NewConfigError(
				fmt.Sprintf("suite %q is not available. Available suites are: %s", name, strings.Join(avail, " ")), nil)
		}
	}

	var out []results.SuiteResult

	for _, name := range suiteNames {
		if d.stopRequested.Load() {
			break
		}

		target := filepath.Join(d.cfg.LTPRoot, "runtest", name)
		local := filepath.Join(tmpSuites, name)

		d.observer.SuiteDownloadStarted(name, target, local)
		if err := d.ch().FetchFile(ctx, target, local, diagTimeout); err != nil {
			return out, err
		}
		d.observer.SuiteDownloadCompleted(name, target, local)

		suite, err := d.metadataReader(local)
		if err != nil {
			return out, err
		}

		sr, err := d.runSuite(ctx, suite)
		if _, ok := err.(*errs.SuiteTimeoutError); ok {
			d.logf(ctx, "%v", err)
			continue
		}
		if err != nil {
			return out, err
		}
		if sr == nil {
			break
		}
		out = append(out, *sr)
	}

	return out, nil
}

// readAvailableSuites lists the runtest directory on the SUT, used to
// validate the requested suite names before a run starts.
func (d *Dispatcher) readAvailableSuites(ctx context.Context) ([]string, error) {
	runtestDir := filepath.Join(d.cfg.LTPRoot, "runtest")
	rec, err := d.ch().Execute(ctx, fmt.Sprintf("ls -1 %s", runtestDir), diagTimeout, "", nil, nil)
	if err != nil {
		return nil, err
	}
	if rec.Returncode != 0 {
		return nil, errs.NewInternalError("can't read runtest folder")
	}

	var names []string
	for _, line := range strings.Split(rec.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (d *Dispatcher) logf(ctx context.Context, format string, a ...interface{}) {
	if d.logger == nil {
		return
	}
	d.logger.Infof(ctx, format, a...)
}
