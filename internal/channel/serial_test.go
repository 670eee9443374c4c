// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.fuchsia.dev/ltpng/internal/transport"
)

// fakeConsole is a minimal stand-in for a hypervisor login console: it
// answers the PS1/sentinel framing protocol, and for a "cat X > dev"
// command writes a fixed payload into a host-backed transport file so
// FetchFile's poll loop has something to read.
type fakeConsole struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	ps1         string
	transportOut string
	payload     []byte
}

var ps1Re2 = regexp.MustCompile(`^export PS1='(#[^#]+#)'$`)
var sentinelRe2 = regexp.MustCompile(`^echo \$\?-(\S+)$`)
var catRe = regexp.MustCompile(`^cat \S+ > \S+$`)

func newFakeConsole(transportOut string, payload []byte) *fakeConsole {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	fc := &fakeConsole{stdinR: inR, stdinW: inW, stdoutR: outR, stdoutW: outW, transportOut: transportOut, payload: payload}
	go fc.run()
	return fc
}

func (fc *fakeConsole) run() {
	scanner := bufio.NewScanner(fc.stdinR)
	var pendingCmd string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if fc.ps1 != "" {
				fmt.Fprintf(fc.stdoutW, "\n%s", fc.ps1)
			}
		case ps1Re2.MatchString(line):
			fc.ps1 = ps1Re2.FindStringSubmatch(line)[1]
		case sentinelRe2.MatchString(line):
			code := sentinelRe2.FindStringSubmatch(line)[1]
			if catRe.MatchString(pendingCmd) {
				os.WriteFile(fc.transportOut, fc.payload, 0o644)
			}
			fmt.Fprintf(fc.stdoutW, "0-%s\n%s", code, fc.ps1)
			pendingCmd = ""
		default:
			pendingCmd = line
		}
	}
}

func (fc *fakeConsole) close() {
	fc.stdinW.Close()
	fc.stdoutW.Close()
}

func TestSerialChannelExecute(t *testing.T) {
	fc := newFakeConsole("", nil)
	defer fc.close()

	sc := NewSerialChannel(fc.stdinW, fc.stdoutR, nil, nil)
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec, err := sc.Execute(context.Background(), "true", 2*time.Second, "", nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rec.Returncode != 0 {
		t.Fatalf("expected returncode 0, got %d", rec.Returncode)
	}
}

func TestSerialChannelFetchFile(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "transport")
	localPath := filepath.Join(dir, "out")
	if err := os.WriteFile(hostPath, nil, 0o644); err != nil {
		t.Fatalf("seed transport file: %v", err)
	}

	payload := []byte(strings.Repeat("A a X a Z z", 400))
	fc := newFakeConsole(hostPath, payload)
	defer fc.close()

	ft := transport.New("/dev/vport0p2", hostPath)
	sc := NewSerialChannel(fc.stdinW, fc.stdoutR, ft, nil)
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := sc.FetchFile(context.Background(), "/tmp/blob", localPath, 5*time.Second); err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}

	got, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected round-tripped payload, got %d bytes want %d", len(got), len(payload))
	}
}
