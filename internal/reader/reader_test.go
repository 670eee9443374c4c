// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reader

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadUntilMatchesPredicate(t *testing.T) {
	src := strings.NewReader("hello\n#TOKEN#")
	lr := NewLineReader(src)

	buf, timedOut, err := lr.ReadUntil(context.Background(), func(s string) bool {
		return strings.HasSuffix(s, "\n#TOKEN#")
	}, time.Now().Add(time.Second), nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timedOut {
		t.Fatalf("expected no timeout")
	}
	if buf != "hello\n#TOKEN#" {
		t.Fatalf("unexpected buffer: %q", buf)
	}
}

func TestReadUntilDeadline(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := NewLineReader(pr)

	_, timedOut, err := lr.ReadUntil(context.Background(), func(string) bool { return false },
		time.Now().Add(20*time.Millisecond), nil)

	if !timedOut {
		t.Fatalf("expected timeout")
	}
	if err != nil {
		t.Fatalf("timeout should not be reported as an error: %v", err)
	}
}

func TestReadUntilLineCallback(t *testing.T) {
	src := strings.NewReader("one\ntwo\n")
	lr := NewLineReader(src)

	var lines []string
	_, _, err := lr.ReadUntil(context.Background(), func(s string) bool {
		return strings.Count(s, "\n") >= 2
	}, time.Now().Add(time.Second), func(l string) {
		lines = append(lines, l)
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestReadUntilContextCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := NewLineReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, timedOut, err := lr.ReadUntil(ctx, func(string) bool { return false },
		time.Now().Add(5*time.Second), nil)

	if !timedOut {
		t.Fatalf("expected cancellation to report timed_out = true")
	}
	if err == nil {
		t.Fatalf("expected context error")
	}
}
