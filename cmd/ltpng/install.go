// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ltpng/internal/deps"
	"go.fuchsia.dev/ltpng/internal/logger"
)

// InstallCommand prints (or, with --apply, runs) the refresh+install
// command line for the local distro's package manager. Building and
// installing LTP itself from the cloned source tree is left to an
// external collaborator, per the spec's Non-goals; this subcommand only
// covers the package-dependency half of that process.
type InstallCommand struct {
	distro  string
	build   bool
	runtime bool
	tools   bool
	apply   bool
}

func (*InstallCommand) Name() string { return "install" }
func (*InstallCommand) Synopsis() string {
	return "install the distro packages LTP needs to build and run"
}
func (*InstallCommand) Usage() string {
	return "install [flags...]\n\nprints the distro package manager command that satisfies LTP's dependencies, or runs it with --apply.\n"
}

func (cmd *InstallCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.distro, "distro", "", "distro ID as it appears in /etc/os-release (default: this host's)")
	f.BoolVar(&cmd.build, "build", true, "include build packages")
	f.BoolVar(&cmd.runtime, "runtime", true, "include runtime packages")
	f.BoolVar(&cmd.tools, "tools", true, "include tool packages")
	f.BoolVar(&cmd.apply, "apply", false, "run the command instead of just printing it")
}

func (cmd *InstallCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger.FromContext(ctx)

	distroID := cmd.distro
	if distroID == "" {
		var err error
		distroID, err = hostDistroID()
		if err != nil {
			log.Errorf(ctx, "%v", err)
			return subcommands.ExitFailure
		}
	}

	d, err := deps.Lookup(distroID)
	if err != nil {
		log.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}

	pkgs := d.Packages(cmd.build, cmd.runtime, cmd.tools)
	if len(pkgs) == 0 {
		fmt.Println("no packages selected")
		return subcommands.ExitSuccess
	}

	cmdLine := d.RefreshCmd + " && " + d.InstallCmd + " " + strings.Join(pkgs, " ")
	if !cmd.apply {
		fmt.Println(cmdLine)
		return subcommands.ExitSuccess
	}

	log.Infof(ctx, "running: %s", cmdLine)
	c := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		log.Errorf(ctx, "install failed: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
