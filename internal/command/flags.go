// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command holds small CLI helpers shared by the ltpng
// subcommands: repeated-flag collection and signal-driven cancellation.
package command

import "strings"

// StringsFlag implements flag.Value so that a flag may be repeated on
// the command line, accumulating one entry per occurrence (used for
// --run-suite).
type StringsFlag []string

func (s *StringsFlag) Set(val string) error {
	*s = append(*s, val)
	return nil
}

func (s *StringsFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join([]string(*s), ", ")
}
