// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/sut"
)

// HostCommand runs suites directly on the machine ltpng is invoked on.
type HostCommand struct {
	sessionFlags
	shell string
}

func (*HostCommand) Name() string     { return "host" }
func (*HostCommand) Synopsis() string { return "run LTP suites on the local host" }
func (*HostCommand) Usage() string {
	return "host [flags...]\n\nruns LTP suites directly on the local machine.\n"
}

func (cmd *HostCommand) SetFlags(f *flag.FlagSet) {
	cmd.sessionFlags.SetFlags(f)
	f.StringVar(&cmd.shell, "shell", "/bin/sh", "shell used to run test commands")
}

func (cmd *HostCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger.FromContext(ctx)
	target := sut.NewLocal(cmd.shell, log)

	if err := runSession(ctx, target, cmd.options(), log); err != nil {
		log.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
