// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reader implements a predicate-driven, deadline-bounded reader
// over an interactive byte stream, used by CommandPrompt to frame
// command boundaries on a raw shell session.
package reader

import (
	"context"
	"strings"
	"time"
)

// LineReader wraps a byte source and exposes ReadUntil: accumulate
// bytes until a predicate holds over the accumulated buffer, or a
// deadline elapses.
type LineReader struct {
	bytesCh chan byte
	errCh   chan error
}

// byteSource is satisfied by io.Reader; kept narrow so callers can plug
// in anything from an os.Pipe to an SSH session's stdout to a
// context-aware serial device.
type byteSource interface {
	Read(p []byte) (int, error)
}

// NewLineReader starts a background pump that reads one byte at a time
// from src so that ReadUntil calls can be interrupted precisely by a
// deadline or a canceled context without losing bytes already in
// flight between calls.
func NewLineReader(src byteSource) *LineReader {
	lr := &LineReader{
		bytesCh: make(chan byte, 4096),
		errCh:   make(chan error, 1),
	}
	go lr.pump(src)
	return lr
}

func (lr *LineReader) pump(src byteSource) {
	buf := make([]byte, 1)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			lr.bytesCh <- buf[0]
		}
		if err != nil {
			lr.errCh <- err
			return
		}
	}
}

// ReadUntil accumulates bytes into a buffer, evaluating predicate(buf)
// after every byte, until the predicate returns true, the deadline
// elapses, ctx is canceled, or the source ends. lineCallback, if
// non-nil, is invoked synchronously with each completed line (trailing
// CR/LF trimmed) as it is observed, in arrival order. On a timed-out or
// canceled return, already-accumulated bytes are still returned.
func (lr *LineReader) ReadUntil(ctx context.Context, predicate func(string) bool, deadline time.Time, lineCallback func(string)) (buffer string, timedOut bool, err error) {
	var buf strings.Builder
	var line strings.Builder

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return buf.String(), true, ctx.Err()
		case <-timer.C:
			return buf.String(), true, nil
		case b := <-lr.bytesCh:
			buf.WriteByte(b)
			line.WriteByte(b)
			if b == '\n' {
				if lineCallback != nil {
					lineCallback(strings.TrimRight(line.String(), "\r\n"))
				}
				line.Reset()
			}
			if predicate(buf.String()) {
				return buf.String(), false, nil
			}
		case readErr := <-lr.errCh:
			// The pump queues every byte before its error; hand the error
			// back until the bytes still buffered have been consumed.
			if len(lr.bytesCh) > 0 {
				lr.errCh <- readErr
				continue
			}
			return buf.String(), false, readErr
		}
	}
}
