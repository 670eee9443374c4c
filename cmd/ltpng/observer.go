// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"

	"go.fuchsia.dev/ltpng/internal/events"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/metadata"
	"go.fuchsia.dev/ltpng/internal/results"
)

// terminalObserver renders session progress through the shared Logger.
// It embeds NopObserver so it only has to override the notifications
// worth printing at the default verbosity.
type terminalObserver struct {
	events.NopObserver

	ctx context.Context
	log *logger.Logger
}

func newTerminalObserver(ctx context.Context, log *logger.Logger) *terminalObserver {
	return &terminalObserver{ctx: ctx, log: log}
}

func (o *terminalObserver) SUTStart(name string) {
	o.log.Infof(o.ctx, "starting SUT %q", name)
}

func (o *terminalObserver) SUTRestart(name string) {
	o.log.Warningf(o.ctx, "rebooting SUT %q", name)
}

func (o *terminalObserver) SUTStop(name string) {
	o.log.Infof(o.ctx, "stopping SUT %q", name)
}

func (o *terminalObserver) SUTNotResponding(name string) {
	o.log.Warningf(o.ctx, "SUT %q is not responding", name)
}

func (o *terminalObserver) SuiteStarted(suite metadata.Suite) {
	o.log.Infof(o.ctx, "suite %s: %d tests", suite.Name, len(suite.Tests))
}

func (o *terminalObserver) SuiteCompleted(result results.SuiteResult) {
	o.log.Infof(o.ctx, "suite %s completed: %d tests", result.Suite.Name, len(result.Tests))
}

func (o *terminalObserver) TestCompleted(result results.TestResult) {
	c := result.Counters
	o.log.Debugf(o.ctx, "test %s: passed=%d failed=%d broken=%d skipped=%d warnings=%d",
		result.Test.Name, c.Passed, c.Failed, c.Broken, c.Skipped, c.Warnings)
}

func (o *terminalObserver) TestTimedOut(testName string, timeoutSecs float64) {
	o.log.Warningf(o.ctx, "test %s timed out after %.0fs", testName, timeoutSecs)
}

func (o *terminalObserver) KernelTainted(message string) {
	o.log.Warningf(o.ctx, "kernel tainted: %s", message)
}

func (o *terminalObserver) KernelPanic() {
	o.log.Errorf(o.ctx, "kernel panic detected")
}
