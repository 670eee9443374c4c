// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package prompt implements CommandPrompt, a command multiplexer over an
// interactive shell byte stream. It is the hard core of the serial
// Channel variant: it synthesizes synchronous request/response
// semantics (command boundaries, exit codes, cancellation) out of a
// single unframed stream of bytes.
package prompt

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/logger"
	"go.fuchsia.dev/ltpng/internal/reader"
)

const (
	ctrlC = "\x03"

	initPromptTimeout = 5 * time.Second
	ctrlCPromptWait   = 10 * time.Second
	defaultStopWait   = 30 * time.Second
)

// SIGTERM is the returncode reported for a command canceled via Stop,
// matching the convention that a negative/signal returncode indicates
// the command was killed by that signal.
const SIGTERM = -15

// CommandPrompt multiplexes Execute calls over a single interactive
// shell stream. Two concurrent callers are forbidden; access is
// serialized internally.
type CommandPrompt struct {
	stdin  io.Writer
	lr     *reader.LineReader
	logger *logger.Logger

	ignoreEcho bool
	ps1        string

	cmdLock  sync.Mutex
	stopLock sync.Mutex

	mu              sync.Mutex
	initialized     bool
	runningCommand  bool
	cancelRequested bool
}

// New builds a CommandPrompt over stdin/stdout of an already-opened
// interactive shell session. ignoreEcho, when true (the default in
// practice), drops stdout lines that textually contain the emitted
// command or sentinel, so an echo printed right after an unconsumed
// prompt is dropped as well.
func New(stdin io.Writer, stdout io.Reader, ignoreEcho bool, lg *logger.Logger) *CommandPrompt {
	return &CommandPrompt{
		stdin:      stdin,
		lr:         reader.NewLineReader(stdout),
		logger:     lg,
		ignoreEcho: ignoreEcho,
		ps1:        fmt.Sprintf("#%s#", token(10)),
	}
}

// token returns a random alphanumeric string of length n, derived from
// a UUID rather than hand-rolled randomness.
func token(n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(raw) < n {
		raw = raw + raw
	}
	return raw[:n]
}

func (c *CommandPrompt) setRunning(v bool) {
	c.mu.Lock()
	c.runningCommand = v
	c.mu.Unlock()
}

// IsRunning reports whether a command is currently executing.
func (c *CommandPrompt) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningCommand
}

func (c *CommandPrompt) setCancelRequested(v bool) {
	c.mu.Lock()
	c.cancelRequested = v
	c.mu.Unlock()
}

func (c *CommandPrompt) isCancelRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelRequested
}

// Start installs the shell prompt marker. It must be called exactly
// once before the first Execute.
func (c *CommandPrompt) Start(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.initPrompt(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *CommandPrompt) initPrompt(ctx context.Context) error {
	c.logf(ctx, "installing command prompt %s", c.ps1)
	if _, err := io.WriteString(c.stdin, fmt.Sprintf("export PS1='%s'\n", c.ps1)); err != nil {
		return errs.NewTransportError("write PS1", err)
	}
	return c.waitPrompt(ctx, initPromptTimeout)
}

func (c *CommandPrompt) waitPrompt(ctx context.Context, timeout time.Duration) error {
	if _, err := io.WriteString(c.stdin, "\n"); err != nil {
		return errs.NewTransportError("write newline", err)
	}

	deadline := time.Now().Add(timeout)
	suffix := "\n" + c.ps1
	buf, timedOut, err := c.lr.ReadUntil(ctx, func(s string) bool {
		return strings.HasSuffix(s, suffix)
	}, deadline, nil)

	if err != nil {
		return errs.NewTransportError("read prompt", err)
	}
	if timedOut {
		return errs.NewTimeoutError("prompt is not replying")
	}
	if buf == "" {
		return errs.NewProtocolError("prompt is not available", nil)
	}
	return nil
}

// RawWrite writes text directly to stdin, bypassing command framing.
// It exists for protocol handshakes (e.g. a login sequence) that must
// happen before Start installs the command prompt, over the same
// stream Execute will later multiplex.
func (c *CommandPrompt) RawWrite(text string) error {
	if _, err := io.WriteString(c.stdin, text); err != nil {
		return errs.NewTransportError("raw write", err)
	}
	return nil
}

// RawReadUntil reads from the same underlying stream Execute uses,
// until predicate holds over the accumulated buffer or deadline
// elapses. Like RawWrite, it is for handshakes that precede Start.
func (c *CommandPrompt) RawReadUntil(ctx context.Context, predicate func(string) bool, deadline time.Time) (string, bool, error) {
	return c.lr.ReadUntil(ctx, predicate, deadline, nil)
}

func (c *CommandPrompt) sendCtrlC(ctx context.Context) error {
	c.logf(ctx, "sending CTRL+C")
	if _, err := io.WriteString(c.stdin, ctrlC); err != nil {
		return errs.NewTransportError("write ctrl-c", err)
	}
	return nil
}

// Stop interrupts the currently running command, if any, waiting up to
// timeout (0 is internally clamped to defaultStopWait) for the shell to
// settle back at its prompt. It is idempotent: calling Stop when no
// command is running returns immediately.
func (c *CommandPrompt) Stop(ctx context.Context, timeout time.Duration) error {
	if !c.IsRunning() {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultStopWait
	}

	c.stopLock.Lock()
	defer c.stopLock.Unlock()

	if !c.IsRunning() {
		return nil
	}

	c.setCancelRequested(true)
	if err := c.sendCtrlC(ctx); err != nil {
		return err
	}
	if err := c.waitPrompt(ctx, timeout); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for c.IsRunning() {
		if time.Now().After(deadline) {
			return errs.NewTimeoutError("stop timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return nil
}

// Execute runs command on the shell, returning its exit status, elapsed
// time, and captured stdout. cwd and env, if non-empty, are folded into
// the composed command line exactly as spec'd: "cd <cwd> && " then
// "export K=V && " per entry in order, then the command itself.
func (c *CommandPrompt) Execute(ctx context.Context, command string, timeout time.Duration, cwd string, env []EnvPair, stdoutCallback func(string)) (retcode int, elapsed time.Duration, stdout string, err error) {
	if command == "" {
		return 0, 0, "", errs.NewConfigError("command is empty", nil)
	}

	c.cmdLock.Lock()
	defer c.cmdLock.Unlock()

	c.setCancelRequested(false)

	var b strings.Builder
	if cwd != "" {
		fmt.Fprintf(&b, "cd %s && ", cwd)
	}
	for _, kv := range env {
		fmt.Fprintf(&b, "export %s=%s && ", kv.Key, kv.Value)
	}
	b.WriteString(command)
	composed := b.String()

	c.logf(ctx, "running command: %s", command)

	c.setRunning(true)
	defer func() {
		c.setCancelRequested(false)
		c.setRunning(false)
	}()

	retcode, elapsed, stdout, err = c.send(ctx, composed, command, timeout, stdoutCallback)
	return
}

func (c *CommandPrompt) send(ctx context.Context, composed, original string, timeout time.Duration, stdoutCallback func(string)) (int, time.Duration, string, error) {
	code := token(10)
	cmdEnd := fmt.Sprintf("echo $?-%s", code)
	matcher := regexp.MustCompile(fmt.Sprintf(`^(\d+)-%s`, regexp.QuoteMeta(code)))

	if _, err := io.WriteString(c.stdin, composed+"\n"+cmdEnd+"\n"); err != nil {
		return -1, 0, "", errs.NewTransportError("write command", err)
	}

	var stdout strings.Builder
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		line, timedOut, err := c.lr.ReadUntil(ctx, func(s string) bool {
			return strings.HasSuffix(s, "\n")
		}, deadline, nil)

		if err != nil {
			return -1, time.Since(start), stdout.String(), errs.NewTransportError("read command output", err)
		}

		if timedOut {
			_ = c.sendCtrlC(ctx)
			_ = c.waitPrompt(ctx, ctrlCPromptWait)
			return -1, time.Since(start), stdout.String(),
				errs.NewTimeoutError(fmt.Sprintf("%q timed out (timeout=%s)", original, timeout))
		}

		if c.isCancelRequested() {
			return SIGTERM, time.Since(start), stdout.String(), nil
		}

		trimmed := strings.TrimRight(line, "\r\n")

		if c.ignoreEcho && (strings.Contains(trimmed, composed) || strings.Contains(trimmed, cmdEnd)) {
			continue
		}

		if m := matcher.FindStringSubmatch(trimmed); m != nil {
			n, convErr := strconv.Atoi(m[1])
			if convErr != nil {
				return -1, time.Since(start), stdout.String(), errs.NewInternalError("sentinel retcode not an integer")
			}
			return n, time.Since(start), stdout.String(), nil
		}

		if stdoutCallback != nil {
			stdoutCallback(trimmed)
		}
		stdout.WriteString(trimmed)
		stdout.WriteString("\n")
	}
}

func (c *CommandPrompt) logf(ctx context.Context, format string, a ...interface{}) {
	if c.logger == nil {
		return
	}
	c.logger.Debugf(ctx, format, a...)
}

// EnvPair is an ordered environment variable entry; ordering matters
// because each pair becomes its own "export K=V &&" clause.
type EnvPair struct {
	Key   string
	Value string
}
