// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package transport implements the secondary bulk-download path used by
// the serial SUT variant: a second character device whose write side is
// visible inside the guest and whose read side is a host-side file that
// this package polls and copies in chunks.
package transport

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.fuchsia.dev/ltpng/internal/errs"
)

// Executor runs a single shell command to completion, returning its
// returncode. It is satisfied by prompt.CommandPrompt.Execute with its
// cwd/env/callback arguments curried away, and lets FileTransport stay
// independent of the prompt package.
type Executor func(ctx context.Context, command string, timeout time.Duration) (returncode int, err error)

const pollInterval = 50 * time.Millisecond

// FileTransport fetches files out of a hypervisor guest through a
// secondary transport device, without needing a second interactive
// shell. The cumulative read offset into the host-side transport file
// persists across fetches so repeated use of the same device is safe.
type FileTransport struct {
	deviceInGuest string // e.g. "/dev/vport0p2"
	hostPath      string // host-side file backing the device

	mu         sync.Mutex
	lastOffset int64
}

// New returns a FileTransport reading the host-visible side (hostPath)
// of a device mounted as deviceInGuest inside the guest.
func New(deviceInGuest, hostPath string) *FileTransport {
	return &FileTransport{deviceInGuest: deviceInGuest, hostPath: hostPath}
}

// Get fetches remotePath from the guest into localPath using exec to
// issue "cat remotePath > device" and then polling the host-side
// transport file for newly-appended bytes.
func (ft *FileTransport) Get(ctx context.Context, exec Executor, remotePath, localPath string, timeout time.Duration) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	deadline := time.Now().Add(timeout)

	retcode, err := exec(ctx, "cat "+remotePath+" > "+ft.deviceInGuest, timeout)
	if err != nil {
		return err
	}
	// SIGTERM (-15) here means a concurrent Stop canceled the cat; the
	// caller is expected to treat that as "nothing to fetch" rather
	// than an error, same as a clean exit.
	if retcode != 0 && retcode != -15 {
		return errs.NewTransportError("cat into transport device failed", nil)
	}

	info, err := os.Stat(ft.hostPath)
	if err != nil {
		return errs.NewTransportError("stat transport file", err)
	}
	fileSize := info.Size()

	transport, err := os.Open(ft.hostPath)
	if err != nil {
		return errs.NewTransportError("open transport file", err)
	}
	defer transport.Close()

	local, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.NewTransportError("open destination file", err)
	}
	defer local.Close()

	buf := make([]byte, 4096)
	for ft.lastOffset < fileSize {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if time.Now().After(deadline) {
			return errs.NewTimeoutError("transfer timed out")
		}

		time.Sleep(pollInterval)

		if _, err := transport.Seek(ft.lastOffset, io.SeekStart); err != nil {
			return errs.NewTransportError("seek transport file", err)
		}
		n, rerr := transport.Read(buf)
		if n > 0 {
			if _, werr := local.Write(buf[:n]); werr != nil {
				return errs.NewTransportError("write destination chunk", werr)
			}
			ft.lastOffset += int64(n)
		}
		if rerr != nil && rerr != io.EOF {
			return errs.NewTransportError("read transport file", rerr)
		}
	}

	return nil
}
