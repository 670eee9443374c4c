// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ltpng/internal/command"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/sut"
)

// QEMUCommand runs suites against a guest booted in a hypervisor.
type QEMUCommand struct {
	sessionFlags

	image        string
	imageOverlay string
	roImage      string
	password     string
	system       string
	ram          string
	smp          string
	virtfs       string
	serialType   string
	extraOpts    command.StringsFlag
}

func (*QEMUCommand) Name() string { return "qemu" }
func (*QEMUCommand) Synopsis() string {
	return "run LTP suites inside a QEMU-booted guest"
}
func (*QEMUCommand) Usage() string {
	return "qemu [flags...]\n\nboots a disposable QEMU guest and runs LTP suites inside it.\n"
}

func (cmd *QEMUCommand) SetFlags(f *flag.FlagSet) {
	cmd.sessionFlags.SetFlags(f)
	f.StringVar(&cmd.image, "image", "", "path to the disk image to boot")
	f.StringVar(&cmd.imageOverlay, "image-overlay", "", "path to a writable overlay image, if the base image is read-only")
	f.StringVar(&cmd.roImage, "ro-image", "", "path to an additional read-only disk image")
	f.StringVar(&cmd.password, "password", "root", "root password for the login handshake")
	f.StringVar(&cmd.system, "system", "x86_64", "qemu-system-<system> architecture")
	f.StringVar(&cmd.ram, "ram", "2G", "guest RAM size")
	f.StringVar(&cmd.smp, "smp", "2", "guest CPU count")
	f.StringVar(&cmd.virtfs, "virtfs", "", "host directory to share into the guest over 9p")
	f.StringVar(&cmd.serialType, "serial-type", "isa", "secondary console transport: isa or virtio")
	f.Var(&cmd.extraOpts, "extra-opt", "extra qemu command-line argument (repeatable)")
}

func (cmd *QEMUCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger.FromContext(ctx)

	target, err := sut.NewHypervisor(config.HypervisorConfig{
		Image:        cmd.image,
		ImageOverlay: cmd.imageOverlay,
		ROImage:      cmd.roImage,
		Password:     cmd.password,
		System:       cmd.system,
		RAM:          cmd.ram,
		SMP:          cmd.smp,
		Virtfs:       cmd.virtfs,
		SerialType:   config.SerialType(cmd.serialType),
		ExtraOpts:    []string(cmd.extraOpts),
		TmpDir:       cmd.tmpRoot,
	}, log)
	if err != nil {
		log.Errorf(ctx, "%v", err)
		return subcommands.ExitUsageError
	}

	if err := runSession(ctx, target, cmd.options(), log); err != nil {
		log.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
