// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package events defines the Observer interface the dispatcher and
// session report their progress through, so a terminal UI or any other
// outer collaborator can subscribe without the dispatcher knowing
// anything about presentation.
package events

import (
	"go.fuchsia.dev/ltpng/internal/metadata"
	"go.fuchsia.dev/ltpng/internal/results"
)

// Observer receives session/SUT/suite/test lifecycle notifications.
// Every method is called synchronously from the dispatcher's single
// goroutine, in the order the corresponding activity happens.
type Observer interface {
	SessionStarted(tmpDir string)
	SessionCompleted(suites []results.SuiteResult)
	SessionStopped()
	SessionError(err error)

	SUTStart(name string)
	SUTRestart(name string)
	SUTStop(name string)
	SUTStdoutLine(name, line string)
	SUTNotResponding(name string)

	SuiteDownloadStarted(name, target, local string)
	SuiteDownloadCompleted(name, target, local string)
	SuiteStarted(suite metadata.Suite)
	SuiteCompleted(result results.SuiteResult)

	TestStarted(test metadata.Test)
	TestStdoutLine(test metadata.Test, line string)
	TestTimedOut(testName string, timeoutSecs float64)
	TestCompleted(result results.TestResult)

	KernelTainted(message string)
	KernelPanic()
}

// NopObserver implements Observer with no-op methods. Embed it in a
// concrete observer to only override the notifications it cares about,
// the same way a single Fuchsia/LTP collaborator only implements the
// events its interface layer needs.
type NopObserver struct{}

func (NopObserver) SessionStarted(tmpDir string)                      {}
func (NopObserver) SessionCompleted(suites []results.SuiteResult)      {}
func (NopObserver) SessionStopped()                                   {}
func (NopObserver) SessionError(err error)                            {}
func (NopObserver) SUTStart(name string)                              {}
func (NopObserver) SUTRestart(name string)                            {}
func (NopObserver) SUTStop(name string)                                {}
func (NopObserver) SUTStdoutLine(name, line string)                   {}
func (NopObserver) SUTNotResponding(name string)                      {}
func (NopObserver) SuiteDownloadStarted(name, target, local string)   {}
func (NopObserver) SuiteDownloadCompleted(name, target, local string) {}
func (NopObserver) SuiteStarted(suite metadata.Suite)                 {}
func (NopObserver) SuiteCompleted(result results.SuiteResult)         {}
func (NopObserver) TestStarted(test metadata.Test)                    {}
func (NopObserver) TestStdoutLine(test metadata.Test, line string)    {}
func (NopObserver) TestTimedOut(testName string, timeoutSecs float64) {}
func (NopObserver) TestCompleted(result results.TestResult)           {}
func (NopObserver) KernelTainted(message string)                      {}
func (NopObserver) KernelPanic()                                      {}

// Broadcaster fans every notification out to a set of observers, so the
// dispatcher can be constructed with exactly one Observer regardless of
// how many collaborators (a JSON report writer, a terminal UI) are
// actually listening.
type Broadcaster struct {
	observers []Observer
}

// NewBroadcaster returns an Observer that forwards to every observer in
// order.
func NewBroadcaster(observers ...Observer) *Broadcaster {
	return &Broadcaster{observers: observers}
}

func (b *Broadcaster) SessionStarted(tmpDir string) {
	for _, o := range b.observers {
		o.SessionStarted(tmpDir)
	}
}

func (b *Broadcaster) SessionCompleted(suites []results.SuiteResult) {
	for _, o := range b.observers {
		o.SessionCompleted(suites)
	}
}

func (b *Broadcaster) SessionStopped() {
	for _, o := range b.observers {
		o.SessionStopped()
	}
}

func (b *Broadcaster) SessionError(err error) {
	for _, o := range b.observers {
		o.SessionError(err)
	}
}

func (b *Broadcaster) SUTStart(name string) {
	for _, o := range b.observers {
		o.SUTStart(name)
	}
}

func (b *Broadcaster) SUTRestart(name string) {
	for _, o := range b.observers {
		o.SUTRestart(name)
	}
}

func (b *Broadcaster) SUTStop(name string) {
	for _, o := range b.observers {
		o.SUTStop(name)
	}
}

func (b *Broadcaster) SUTStdoutLine(name, line string) {
	for _, o := range b.observers {
		o.SUTStdoutLine(name, line)
	}
}

func (b *Broadcaster) SUTNotResponding(name string) {
	for _, o := range b.observers {
		o.SUTNotResponding(name)
	}
}

func (b *Broadcaster) SuiteDownloadStarted(name, target, local string) {
	for _, o := range b.observers {
		o.SuiteDownloadStarted(name, target, local)
	}
}

func (b *Broadcaster) SuiteDownloadCompleted(name, target, local string) {
	for _, o := range b.observers {
		o.SuiteDownloadCompleted(name, target, local)
	}
}

func (b *Broadcaster) SuiteStarted(suite metadata.Suite) {
	for _, o := range b.observers {
		o.SuiteStarted(suite)
	}
}

func (b *Broadcaster) SuiteCompleted(result results.SuiteResult) {
	for _, o := range b.observers {
		o.SuiteCompleted(result)
	}
}

func (b *Broadcaster) TestStarted(test metadata.Test) {
	for _, o := range b.observers {
		o.TestStarted(test)
	}
}

func (b *Broadcaster) TestStdoutLine(test metadata.Test, line string) {
	for _, o := range b.observers {
		o.TestStdoutLine(test, line)
	}
}

func (b *Broadcaster) TestTimedOut(testName string, timeoutSecs float64) {
	for _, o := range b.observers {
		o.TestTimedOut(testName, timeoutSecs)
	}
}

func (b *Broadcaster) TestCompleted(result results.TestResult) {
	for _, o := range b.observers {
		o.TestCompleted(result)
	}
}

func (b *Broadcaster) KernelTainted(message string) {
	for _, o := range b.observers {
		o.KernelTainted(message)
	}
}

func (b *Broadcaster) KernelPanic() {
	for _, o := range b.observers {
		o.KernelPanic()
	}
}
