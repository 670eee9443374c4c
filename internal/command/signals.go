// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"context"
	"os"
	"os/signal"
)

// CancelOnSignals returns a context that is canceled when any of sigs is
// received, provided the process can handle them.
func CancelOnSignals(ctx context.Context, sigs ...os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, sigs...)
	go func() {
		if s := <-signals; s != nil {
			cancel()
		}
	}()
	return ctx
}
