// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/sut"
)

// SSHCommand runs suites against a target reached over SSH.
type SSHCommand struct {
	sessionFlags

	host    string
	port    int
	user    string
	pass    string
	keyFile string
	timeout time.Duration
}

func (*SSHCommand) Name() string     { return "ssh" }
func (*SSHCommand) Synopsis() string { return "run LTP suites against a target reached over SSH" }
func (*SSHCommand) Usage() string {
	return "ssh [flags...]\n\nruns LTP suites on a pre-existing machine reached over SSH.\n"
}

func (cmd *SSHCommand) SetFlags(f *flag.FlagSet) {
	cmd.sessionFlags.SetFlags(f)
	f.StringVar(&cmd.host, "host", "", "SSH host")
	f.IntVar(&cmd.port, "port", 22, "SSH port")
	f.StringVar(&cmd.user, "user", "root", "SSH user")
	f.StringVar(&cmd.pass, "password", "", "SSH password (offered alongside the key when --key-file is also set)")
	f.StringVar(&cmd.keyFile, "key-file", "", "path to an SSH private key")
	f.DurationVar(&cmd.timeout, "timeout", 30*time.Second, "SSH connection timeout")
}

func (cmd *SSHCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger.FromContext(ctx)

	if cmd.host == "" {
		log.Errorf(ctx, "--host is required")
		return subcommands.ExitUsageError
	}

	target := sut.NewSSH(config.SSHConfig{
		Host:     cmd.host,
		Port:     cmd.port,
		User:     cmd.user,
		Password: cmd.pass,
		KeyFile:  cmd.keyFile,
		Timeout:  cmd.timeout,
	}, log)

	if err := runSession(ctx, target, cmd.options(), log); err != nil {
		log.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
