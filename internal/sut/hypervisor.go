// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sut

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.fuchsia.dev/ltpng/internal/channel"
	"go.fuchsia.dev/ltpng/internal/config"
	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/transport"
)

const (
	loginTimeout    = 180 * time.Second
	passwordTimeout = 30 * time.Second
	shellTimeout    = 30 * time.Second
)

// Hypervisor is the SUT variant that boots a transient QEMU guest and
// drives it over its serial login console, with a secondary console
// device used for bulk file transfer.
type Hypervisor struct {
	cfg    config.HypervisorConfig
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	logged  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ch      *channel.SerialChannel
}

// NewHypervisor returns a Hypervisor SUT for the given QEMU
// configuration.
func NewHypervisor(cfg config.HypervisorConfig, lg *logger.Logger) (*Hypervisor, error) {
	if cfg.Image == "" {
		return nil, errs.NewConfigError("image location is not defined", nil)
	}
	if _, err := os.Stat(cfg.Image); err != nil {
		return nil, errs.NewConfigError("image location doesn't exist", err)
	}
	if cfg.ROImage != "" {
		if _, err := os.Stat(cfg.ROImage); err != nil {
			return nil, errs.NewConfigError("read-only image location doesn't exist", err)
		}
	}
	if cfg.RAM == "" {
		cfg.RAM = "2G"
	}
	if cfg.SMP == "" {
		cfg.SMP = "2"
	}
	if cfg.System == "" {
		cfg.System = "x86_64"
	}
	if cfg.Password == "" {
		cfg.Password = "root"
	}
	if cfg.SerialType == "" {
		cfg.SerialType = config.SerialISA
	}
	if cfg.SerialType != config.SerialISA && cfg.SerialType != config.SerialVirtio {
		return nil, errs.NewConfigError("serial protocol must be isa or virtio", nil)
	}
	if cfg.Virtfs != "" {
		if info, err := os.Stat(cfg.Virtfs); err != nil || !info.IsDir() {
			return nil, errs.NewConfigError("virtual fs directory doesn't exist", err)
		}
	}
	if cfg.TmpDir == "" {
		return nil, errs.NewConfigError("temporary directory is not defined", nil)
	}

	return &Hypervisor{cfg: cfg, logger: lg}, nil
}

func (h *Hypervisor) Name() string { return "qemu" }

func (h *Hypervisor) transportDevAndFile() (dev, path string) {
	pid := os.Getpid()
	path = filepath.Join(h.cfg.TmpDir, fmt.Sprintf("transport-%d", pid))
	switch h.cfg.SerialType {
	case config.SerialVirtio:
		dev = "vport1p1"
	default:
		dev = "ttyS1"
	}
	return dev, path
}

func (h *Hypervisor) buildArgs() []string {
	pid := os.Getpid()
	ttyLog := filepath.Join(h.cfg.TmpDir, fmt.Sprintf("ttyS0-%d.log", pid))

	image := h.cfg.Image
	if h.cfg.ImageOverlay != "" {
		image = h.cfg.ImageOverlay
	}

	_, transportFile := h.transportDevAndFile()

	args := []string{
		"-enable-kvm",
		"-display", "none",
		"-m", h.cfg.RAM,
		"-smp", h.cfg.SMP,
		"-device", "virtio-rng-pci",
		"-drive", fmt.Sprintf("if=virtio,cache=unsafe,file=%s", image),
		"-chardev", fmt.Sprintf("stdio,id=tty,logfile=%s", ttyLog),
	}

	switch h.cfg.SerialType {
	case config.SerialVirtio:
		args = append(args,
			"-device", "virtio-serial",
			"-device", "virtconsole,chardev=tty",
			"-device", "virtserialport,chardev=transport")
	default:
		args = append(args, "-serial", "chardev:tty", "-serial", "chardev:transport")
	}

	args = append(args, "-chardev", fmt.Sprintf("file,id=transport,path=%s", transportFile))

	if h.cfg.ROImage != "" {
		args = append(args, "-drive", fmt.Sprintf("read-only,if=virtio,cache=unsafe,file=%s", h.cfg.ROImage))
	}

	if h.cfg.Virtfs != "" {
		args = append(args, "-virtfs",
			fmt.Sprintf("local,path=%s,mount_tag=host0,security_model=mapped-xattr,readonly=on", h.cfg.Virtfs))
	}

	args = append(args, h.cfg.ExtraOpts...)

	return args
}

// CommandLine returns the full qemu-system-<arch> invocation this
// Hypervisor would launch, for logging/diagnostics.
func (h *Hypervisor) CommandLine() string {
	bin := fmt.Sprintf("qemu-system-%s", h.cfg.System)
	return bin + " " + strings.Join(h.buildArgs(), " ")
}

func (h *Hypervisor) Communicate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd != nil {
		return errs.NewConfigError("virtual machine is already running", nil)
	}

	bin := fmt.Sprintf("qemu-system-%s", h.cfg.System)
	if _, err := exec.LookPath(bin); err != nil {
		return errs.NewTransportError(fmt.Sprintf("command not found: %s", bin), err)
	}

	cmd := exec.Command(bin, h.buildArgs()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errs.NewTransportError("qemu stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errs.NewTransportError("qemu stdout pipe", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return errs.NewTransportError("spawn qemu", err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.logged = false

	transportDev, transportFile := h.transportDevAndFile()
	ft := transport.New("/dev/"+transportDev, transportFile)

	// Built once, up front: SerialChannel (via CommandPrompt) owns the
	// single pump goroutine over stdout for the lifetime of the
	// session. The login handshake below borrows its raw read/write
	// passthrough rather than starting a second reader over the same
	// pipe, which would race the two goroutines against each other.
	h.ch = channel.NewSerialChannel(stdin, stdout, ft, h.logger)

	if err := h.loginHandshake(ctx, h.ch); err != nil {
		return err
	}

	if err := h.ch.Start(ctx); err != nil {
		return err
	}

	if h.cfg.Virtfs != "" {
		if _, err := h.ch.Execute(ctx, "mount -t 9p -o trans=virtio host0 /mnt", 30*time.Second, "", nil, nil); err != nil {
			return errs.NewProtocolError("failed to mount virtfs", err)
		}
	}

	h.logged = true
	h.running = true
	return nil
}

func (h *Hypervisor) loginHandshake(ctx context.Context, ch *channel.SerialChannel) error {
	if _, timedOut, err := ch.RawReadUntil(ctx, func(s string) bool {
		return strings.HasSuffix(s, "login:")
	}, time.Now().Add(loginTimeout)); err != nil {
		return errs.NewTransportError("read login prompt", err)
	} else if timedOut {
		return errs.NewProtocolError("can't find login prompt", nil)
	}

	if err := ch.RawWrite("root\n"); err != nil {
		return errs.NewTransportError("write login user", err)
	}

	if _, timedOut, err := ch.RawReadUntil(ctx, func(s string) bool {
		return strings.HasSuffix(s, "Password:") || strings.HasSuffix(s, "password:")
	}, time.Now().Add(passwordTimeout)); err != nil {
		return errs.NewTransportError("read password prompt", err)
	} else if timedOut {
		return errs.NewProtocolError("can't find password prompt", nil)
	}

	if err := ch.RawWrite(h.cfg.Password + "\n"); err != nil {
		return errs.NewTransportError("write password", err)
	}

	if _, timedOut, err := ch.RawReadUntil(ctx, func(s string) bool {
		return strings.HasSuffix(s, "#")
	}, time.Now().Add(shellTimeout)); err != nil || timedOut {
		return errs.NewProtocolError("can't find shell prompt", err)
	}

	return nil
}

func (h *Hypervisor) Channel() channel.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ch == nil {
		return nil
	}
	return h.ch
}

// Stop sends "poweroff" over the console (if logged in) and waits for
// the process to exit up to timeout. A broken pipe on the flush after
// poweroff is non-fatal: the guest may have already torn down its side.
func (h *Hypervisor) Stop(ctx context.Context, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked(ctx, timeout, false)
}

func (h *Hypervisor) ForceStop(ctx context.Context, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopLocked(ctx, timeout, true)
}

func (h *Hypervisor) stopLocked(ctx context.Context, timeout time.Duration, force bool) error {
	if h.cmd == nil {
		return nil
	}

	if h.ch != nil {
		_ = h.ch.Stop(ctx, timeout)
		h.ch = nil
	}

	if force {
		h.logf(ctx, "killing virtual machine")
		syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
	} else if h.logged {
		h.logf(ctx, "shutting down virtual machine")
		io.WriteString(h.stdin, "poweroff\n") // broken pipe here is non-fatal
	} else {
		syscall.Kill(-h.cmd.Process.Pid, syscall.SIGTERM)
	}

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
	case <-time.After(timeout):
		syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
		<-done
		h.cmd = nil
		h.running = false
		return errs.NewTimeoutError("virtual machine timed out during shutdown")
	}

	h.cmd = nil
	h.running = false
	return nil
}

func (h *Hypervisor) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Hypervisor) logf(ctx context.Context, format string, a ...interface{}) {
	if h.logger == nil {
		return
	}
	h.logger.Infof(ctx, format, a...)
}
