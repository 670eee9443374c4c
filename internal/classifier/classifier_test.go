// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package classifier

import "testing"

func TestClassifySummaryBlock(t *testing.T) {
	stdout := "\n\nSummary:\npassed   1\nfailed   0\nbroken   0\nskipped  0\nwarnings 0\n"
	c := Classify(stdout, 0)
	if c != (Counters{Passed: 1}) {
		t.Fatalf("unexpected counters: %#v", c)
	}
}

func TestClassifyTokenCounts(t *testing.T) {
	stdout := "TFAIL: x\nTFAIL: y\n"
	c := Classify(stdout, 1)
	if c.Failed != 2 || c.Passed != 0 {
		t.Fatalf("unexpected counters: %#v", c)
	}
}

func TestClassifySynthesizedPass(t *testing.T) {
	c := Classify("no recognizable markers\n", 0)
	if c.Passed != 1 || c.Total() != 1 {
		t.Fatalf("unexpected counters: %#v", c)
	}
}

func TestClassifySynthesizedFail(t *testing.T) {
	c := Classify("no recognizable markers\n", 1)
	if c.Failed != 1 || c.Total() != 1 {
		t.Fatalf("unexpected counters: %#v", c)
	}
}

func TestClassifyTotality(t *testing.T) {
	cases := []struct {
		stdout string
		rc     int
	}{
		{"", 0},
		{"", -1},
		{"garbage", 137},
	}
	for _, tc := range cases {
		if Classify(tc.stdout, tc.rc).Total() < 1 {
			t.Fatalf("classifier produced zero total for %q/%d", tc.stdout, tc.rc)
		}
	}
}
