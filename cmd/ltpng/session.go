// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.fuchsia.dev/ltpng/internal/command"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/dispatcher"
	"go.fuchsia.dev/ltpng/internal/events"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/report"
	"go.fuchsia.dev/ltpng/internal/sut"
	"go.fuchsia.dev/ltpng/internal/tmpdir"
)

// sessionFlags holds the flags common to every SUT-driving subcommand.
// Defaults for ltpRoot/tmpRoot/colorizeOutput come from the environment,
// read here at the CLI boundary and nowhere else (spec's redesign note).
type sessionFlags struct {
	runSuite       command.StringsFlag
	jsonReport     string
	ltpRoot        string
	tmpRoot        string
	suiteTimeout   time.Duration
	testTimeout    time.Duration
	colorizeOutput bool
}

func (s *sessionFlags) SetFlags(f *flag.FlagSet) {
	ltpRoot := os.Getenv("LTPROOT")
	if ltpRoot == "" {
		ltpRoot = "/opt/ltp"
	}
	tmpRoot := os.Getenv("TMPDIR")
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}
	colorize := os.Getenv("LTP_COLORIZE_OUTPUT") == "y"

	f.Var(&s.runSuite, "run-suite", "LTP suite to run (repeatable)")
	f.StringVar(&s.jsonReport, "json-report", "", "path to write the JSON results report to")
	f.StringVar(&s.ltpRoot, "ltp-root", ltpRoot, "path to the LTP installation on the SUT")
	f.StringVar(&s.tmpRoot, "tmp-root", tmpRoot, "root directory under which session temp dirs are rotated")
	f.DurationVar(&s.suiteTimeout, "suite-timeout", config.DefaultSuiteTimeout, "cumulative time budget per suite")
	f.DurationVar(&s.testTimeout, "test-timeout", config.DefaultTestTimeout, "time budget per test")
	f.BoolVar(&s.colorizeOutput, "colorize-output", colorize, "set LTP_COLORIZE_OUTPUT=y for dispatched tests")
}

func (s *sessionFlags) options() sessionOptions {
	return sessionOptions{
		ltpRoot:        s.ltpRoot,
		tmpRoot:        s.tmpRoot,
		suites:         []string(s.runSuite),
		jsonReport:     s.jsonReport,
		suiteTimeout:   s.suiteTimeout,
		testTimeout:    s.testTimeout,
		colorizeOutput: s.colorizeOutput,
	}
}

// keepSessions bounds how many past session directories tmpdir.Rotator
// keeps around; matches the source's default rotation depth.
const keepSessions = 5

// sessionOptions collects the flags common to every SUT-driving
// subcommand (host/qemu/ssh).
type sessionOptions struct {
	ltpRoot        string
	tmpRoot        string
	suites         []string
	jsonReport     string
	suiteTimeout   time.Duration
	testTimeout    time.Duration
	colorizeOutput bool
}

// runSession boots target, runs every configured suite through a
// Dispatcher, writes the JSON report if requested, and always stops
// target before returning.
func runSession(ctx context.Context, target sut.SUT, opts sessionOptions, log *logger.Logger) error {
	if len(opts.suites) == 0 {
		return fmt.Errorf("no suites given: pass --run-suite at least once")
	}

	rotator, err := tmpdir.NewRotator(opts.tmpRoot, keepSessions)
	if err != nil {
		return fmt.Errorf("temp directory setup: %w", err)
	}
	sessionDir, err := rotator.Rotate()
	if err != nil {
		return fmt.Errorf("temp directory rotation: %w", err)
	}

	observer := events.NewBroadcaster(newTerminalObserver(ctx, log))
	observer.SessionStarted(sessionDir)

	log.Infof(ctx, "starting SUT %s", target.Name())
	if err := target.Communicate(ctx); err != nil {
		observer.SessionError(err)
		return fmt.Errorf("SUT startup: %w", err)
	}
	defer func() {
		if err := target.Stop(ctx, 0); err != nil {
			log.Errorf(ctx, "stopping SUT: %v", err)
		}
	}()

	d, err := dispatcher.New(config.DispatcherConfig{
		LTPRoot:        opts.ltpRoot,
		TmpDir:         sessionDir,
		Suites:         opts.suites,
		SuiteTimeout:   opts.suiteTimeout,
		TestTimeout:    opts.testTimeout,
		ColorizeOutput: opts.colorizeOutput,
	}, target, observer, log)
	if err != nil {
		observer.SessionError(err)
		return fmt.Errorf("dispatcher setup: %w", err)
	}

	suiteResults, err := d.ExecSuites(ctx, opts.suites)
	if err != nil {
		observer.SessionError(err)
		return fmt.Errorf("running suites: %w", err)
	}

	if opts.jsonReport != "" {
		if err := report.WriteFile(opts.jsonReport, suiteResults); err != nil {
			observer.SessionError(err)
			return fmt.Errorf("writing report: %w", err)
		}
		log.Infof(ctx, "report written to %s", opts.jsonReport)
	}

	observer.SessionCompleted(suiteResults)
	return nil
}
