// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ltpng/internal/deps"
)

// ShowDepsCommand prints the packages a distro needs to build and run
// LTP from source, without installing anything.
type ShowDepsCommand struct {
	distro  string
	build   bool
	runtime bool
	tools   bool
}

func (*ShowDepsCommand) Name() string     { return "show-deps" }
func (*ShowDepsCommand) Synopsis() string { return "print LTP's build/runtime package dependencies" }
func (*ShowDepsCommand) Usage() string {
	return "show-deps [flags...]\n\nprints the packages needed to build and run LTP.\n"
}

func (cmd *ShowDepsCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.distro, "distro", "", "distro ID as it appears in /etc/os-release (default: this host's)")
	f.BoolVar(&cmd.build, "build", true, "include build packages")
	f.BoolVar(&cmd.runtime, "runtime", true, "include runtime packages")
	f.BoolVar(&cmd.tools, "tools", true, "include tool packages")
}

func (cmd *ShowDepsCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	distroID := cmd.distro
	if distroID == "" {
		var err error
		distroID, err = hostDistroID()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	d, err := deps.Lookup(distroID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	pkgs := d.Packages(cmd.build, cmd.runtime, cmd.tools)
	fmt.Println(strings.Join(pkgs, " "))
	return subcommands.ExitSuccess
}

// hostDistroID reads the ID field out of /etc/os-release, matching the
// source installer's own detection.
func hostDistroID() (string, error) {
	b, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "", fmt.Errorf("reading /etc/os-release: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		if id, ok := strings.CutPrefix(line, "ID="); ok {
			return strings.Trim(id, `"`), nil
		}
	}
	return "", fmt.Errorf("/etc/os-release has no ID field")
}
