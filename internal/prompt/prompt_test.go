// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"
)

// fakeShell is a minimal in-process stand-in for an interactive shell: it
// reads lines written to its stdin and, for anything matching the
// export-PS1 dance or a sentinel echo, writes the expected reply to its
// stdout side. It lets us exercise CommandPrompt's framing protocol
// without a real pty.
type fakeShell struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	ps1 string

	// echoPromptPrefixedCmd, when set, reproduces a real tty's behavior
	// of echoing the typed command only after the previous prompt that
	// was never consumed off the wire, i.e. one line reading
	// "<ps1><composed command>" rather than the composed command alone.
	echoPromptPrefixedCmd bool
}

func newFakeShell() *fakeShell {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	fs := &fakeShell{stdinR: inR, stdinW: inW, stdoutR: outR, stdoutW: outW}
	go fs.run()
	return fs
}

func newFakeShellEchoingPromptPrefixedCmd() *fakeShell {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	fs := &fakeShell{stdinR: inR, stdinW: inW, stdoutR: outR, stdoutW: outW, echoPromptPrefixedCmd: true}
	go fs.run()
	return fs
}

var ps1Re = regexp.MustCompile(`^export PS1='(#[^#]+#)'$`)
var sentinelRe = regexp.MustCompile(`^echo \$\?-(\S+)$`)

func (fs *fakeShell) run() {
	scanner := bufio.NewScanner(fs.stdinR)
	var pendingCmd string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if fs.ps1 != "" {
				fmt.Fprintf(fs.stdoutW, "\n%s", fs.ps1)
			}
		case ps1Re.MatchString(line):
			fs.ps1 = ps1Re.FindStringSubmatch(line)[1]
		case sentinelRe.MatchString(line):
			code := sentinelRe.FindStringSubmatch(line)[1]
			rc := "0"
			if strings.Contains(pendingCmd, "false") {
				rc = "1"
			}
			fmt.Fprintf(fs.stdoutW, "%s-%s\n%s", rc, code, fs.ps1)
			pendingCmd = ""
		default:
			pendingCmd = line
			if fs.echoPromptPrefixedCmd {
				fmt.Fprintf(fs.stdoutW, "%s%s\n", fs.ps1, line)
			}
			if strings.HasPrefix(line, "echo ") {
				fmt.Fprintf(fs.stdoutW, "%s\n", strings.TrimPrefix(line, "echo "))
			}
		}
	}
}

func (fs *fakeShell) close() {
	fs.stdinW.Close()
	fs.stdoutW.Close()
}

func TestStartInstallsPrompt(t *testing.T) {
	fs := newFakeShell()
	defer fs.close()

	cp := New(fs.stdinW, fs.stdoutR, true, nil)
	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestExecuteReturnsCode(t *testing.T) {
	fs := newFakeShell()
	defer fs.close()

	cp := New(fs.stdinW, fs.stdoutR, true, nil)
	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rc, _, stdout, err := cp.Execute(context.Background(), "echo hello", 2*time.Second, "", nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rc != 0 {
		t.Fatalf("expected returncode 0, got %d", rc)
	}
	if stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	fs := newFakeShell()
	defer fs.close()

	cp := New(fs.stdinW, fs.stdoutR, true, nil)
	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rc, _, _, err := cp.Execute(context.Background(), "false", 2*time.Second, "", nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rc != 1 {
		t.Fatalf("expected returncode 1, got %d", rc)
	}
}

func TestExecuteEchoSuppressed(t *testing.T) {
	fs := newFakeShell()
	defer fs.close()

	cp := New(fs.stdinW, fs.stdoutR, true, nil)
	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, _, stdout, err := cp.Execute(context.Background(), "true", 2*time.Second, "", nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Contains(stdout, "true") {
		t.Fatalf("echoed command leaked into stdout: %q", stdout)
	}
}

// TestExecuteEchoSuppressedPromptPrefixed reproduces a real tty echoing
// the composed command right after an unconsumed prompt from the
// previous command, so the line on the wire reads "<ps1><command>"
// rather than "<command>" alone. Suppression must match on containment,
// not equality, or this line leaks into stdout.
func TestExecuteEchoSuppressedPromptPrefixed(t *testing.T) {
	fs := newFakeShellEchoingPromptPrefixedCmd()
	defer fs.close()

	cp := New(fs.stdinW, fs.stdoutR, true, nil)
	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, _, stdout, err := cp.Execute(context.Background(), "true", 2*time.Second, "", nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Contains(stdout, "true") {
		t.Fatalf("prompt-prefixed echoed command leaked into stdout: %q", stdout)
	}
}
