// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logger

import (
	"context"
	goLog "log"
	"os"
	"testing"

	"go.fuchsia.dev/ltpng/internal/color"
)

func TestWithContext(t *testing.T) {
	l := NewLogger(DebugLevel, color.NewColor(color.ColorAuto), os.Stdout, os.Stderr)
	ctx := context.Background()
	if v, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); ok || v != nil {
		t.Fatalf("Default context should not have globalLoggerKeyType. Expected:\nnil\nbut got:\n%+v", v)
	}
	ctx = WithLogger(ctx, l)
	if v, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); !ok || v == nil {
		t.Fatalf("Updated context should have globalLoggerKeyType, but got nil")
	}
}

func TestNewLogger(t *testing.T) {
	l := NewLogger(InfoLevel, color.NewColor(color.ColorAuto), nil, nil)
	logFlags, errFlags := l.goLogger.Flags(), l.goErrorLogger.Flags()

	if logFlags != goLog.LstdFlags || errFlags != goLog.LstdFlags {
		t.Fatalf("New loggers should have the proper flags set for both standard and error logging. Expected:\n%+v and %+v\nbut got:\n%+v and %+v", goLog.LstdFlags, goLog.LstdFlags, logFlags, errFlags)
	}
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatalf("FromContext on a bare context should return a usable default logger")
	}
}

func TestLevelFlagRoundTrip(t *testing.T) {
	var level LogLevel
	if err := level.Set("debug"); err != nil {
		t.Fatalf("Set(\"debug\") returned error: %v", err)
	}
	if level != DebugLevel {
		t.Fatalf("expected DebugLevel, got %v", level)
	}
	if level.String() != "debug" {
		t.Fatalf("expected \"debug\", got %q", level.String())
	}
	if err := level.Set("bogus"); err == nil {
		t.Fatalf("Set(\"bogus\") should have returned an error")
	}
}
