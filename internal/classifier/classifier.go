// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package classifier turns a completed test's raw stdout and exit
// status into the LTP result taxonomy: passed/failed/broken/skipped/
// warnings counters.
package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Counters is the LTP result taxonomy produced for one test.
type Counters struct {
	Passed   int
	Failed   int
	Broken   int
	Skipped  int
	Warnings int
}

// Total reports the sum of all counters.
func (c Counters) Total() int {
	return c.Passed + c.Failed + c.Broken + c.Skipped + c.Warnings
}

var summaryRe = regexp.MustCompile(
	`Summary:\n` +
		`passed\s*(\d+)\n` +
		`failed\s*(\d+)\n` +
		`broken\s*(\d+)\n` +
		`skipped\s*(\d+)\n` +
		`warnings\s*(\d+)\n`)

// Classify produces Counters from a test's stdout and returncode.
//
// 1. If the trailing LTP summary block matches, its counters are taken
//    directly.
// 2. Else, the TPASS/TFAIL/TBROK/TSKIP/TWARN tokens are counted.
// 3. Else (all zero), the result is synthesized from returncode: exit 0
//    is one pass, non-zero is one failure.
//
// Classify always has a returncode to fall back to in this
// implementation (unlike the dynamically-typed original, where a
// missing returncode was representable and triggered an InternalError);
// that degenerate case cannot arise here and so is not modeled.
func Classify(stdout string, returncode int) Counters {
	if m := summaryRe.FindStringSubmatch(stdout); m != nil {
		return Counters{
			Passed:   atoi(m[1]),
			Failed:   atoi(m[2]),
			Broken:   atoi(m[3]),
			Skipped:  atoi(m[4]),
			Warnings: atoi(m[5]),
		}
	}

	c := Counters{
		Passed:   strings.Count(stdout, "TPASS"),
		Failed:   strings.Count(stdout, "TFAIL"),
		Broken:   strings.Count(stdout, "TBROK"),
		Skipped:  strings.Count(stdout, "TSKIP"),
		Warnings: strings.Count(stdout, "TWARN"),
	}

	if c.Total() == 0 {
		if returncode != 0 {
			c.Failed = 1
		} else {
			c.Passed = 1
		}
	}

	return c
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
