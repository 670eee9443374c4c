// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logger provides the leveled, colorized logging sink shared by
// every component of the orchestrator.
package logger

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"io"

	"github.com/lmittmann/tint"

	"go.fuchsia.dev/ltpng/internal/color"
)

// LogLevel controls which calls produce output. It implements flag.Value
// so it can be registered directly as a CLI flag.
type LogLevel int

const (
	FatalLevel LogLevel = iota
	ErrorLevel
	WarningLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func (l *LogLevel) String() string {
	switch *l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarningLevel:
		return "warning"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case TraceLevel:
		return "trace"
	}
	return ""
}

func (l *LogLevel) Set(s string) error {
	switch s {
	case "fatal":
		*l = FatalLevel
	case "error":
		*l = ErrorLevel
	case "warning":
		*l = WarningLevel
	case "info":
		*l = InfoLevel
	case "debug":
		*l = DebugLevel
	case "trace":
		*l = TraceLevel
	default:
		return fmt.Errorf("%s is not a valid log level", s)
	}
	return nil
}

// Logger is a leveled logger writing to separate standard and error
// streams, with colorized output rendered through slog/tint.
type Logger struct {
	level LogLevel
	color color.Color

	goLogger      *stdlog.Logger
	goErrorLogger *stdlog.Logger

	out *slog.Logger
	err *slog.Logger
}

// NewLogger builds a Logger at the given level writing to stdout/stderr.
// Either writer may be nil, in which case that stream is discarded.
func NewLogger(level LogLevel, c color.Color, stdout, stderr io.Writer) *Logger {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	return &Logger{
		level:         level,
		color:         c,
		goLogger:      stdlog.New(stdout, "", stdlog.LstdFlags),
		goErrorLogger: stdlog.New(stderr, "", stdlog.LstdFlags),
		out: slog.New(tint.NewHandler(stdout, &tint.Options{
			NoColor: !c.Enabled(),
		})),
		err: slog.New(tint.NewHandler(stderr, &tint.Options{
			NoColor: !c.Enabled(),
		})),
	}
}

func (l *Logger) logf(ctx context.Context, level LogLevel, sink *slog.Logger, format string, a ...interface{}) {
	if l == nil || level > l.level {
		return
	}
	sink.Log(ctx, slog.LevelInfo, fmt.Sprintf(format, a...))
}

func (l *Logger) Tracef(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, TraceLevel, l.out, format, a...)
}

func (l *Logger) Debugf(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, DebugLevel, l.out, format, a...)
}

func (l *Logger) Infof(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, InfoLevel, l.out, format, a...)
}

func (l *Logger) Warningf(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, WarningLevel, l.err, format, a...)
}

func (l *Logger) Errorf(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, ErrorLevel, l.err, format, a...)
}

func (l *Logger) Fatalf(ctx context.Context, format string, a ...interface{}) {
	l.logf(ctx, FatalLevel, l.err, format, a...)
}

type globalLoggerKeyType struct{}

// WithLogger attaches logger to ctx, retrievable via FromContext.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, globalLoggerKeyType{}, logger)
}

// FromContext returns the Logger attached to ctx, or a disabled logger
// (both streams discarded, so nothing is written at any level) if none
// was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); ok && l != nil {
		return l
	}
	return NewLogger(FatalLevel, color.NewColor(color.ColorNever), nil, nil)
}
