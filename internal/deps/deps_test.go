// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deps

import "testing"

func TestLookupExactAndSubstringMatch(t *testing.T) {
	tests := []struct {
		distroID string
		wantID   string
		wantErr  bool
	}{
		{distroID: "debian", wantID: "debian"},
		{distroID: "opensuse-leap", wantID: "opensuse"},
		{distroID: "plan9", wantErr: true},
	}

	for _, tt := range tests {
		d, err := Lookup(tt.distroID)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Lookup(%q): expected error, got none", tt.distroID)
			}
			continue
		}
		if err != nil {
			t.Errorf("Lookup(%q): unexpected error: %v", tt.distroID, err)
			continue
		}
		if d.ID != tt.wantID {
			t.Errorf("Lookup(%q): got ID %q, want %q", tt.distroID, d.ID, tt.wantID)
		}
	}
}

func TestPackagesRespectsGroupFlags(t *testing.T) {
	d, err := Lookup("ubuntu")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	none := d.Packages(false, false, false)
	if len(none) != 0 {
		t.Fatalf("expected no packages, got %v", none)
	}

	all := d.Packages(true, true, true)
	wantLen := len(d.Build) + len(d.Libs) + len(d.Runtime) + len(d.Tools)
	if len(all) != wantLen {
		t.Fatalf("expected %d packages, got %d", wantLen, len(all))
	}
}
