// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tmpdir rotates the per-session temporary directory a session
// runs under: it prunes old runs beyond a keep count and maintains a
// "latest" symlink, mirroring the rotation scheme every run of this
// tool has always used.
package tmpdir

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"

	"go.fuchsia.dev/ltpng/internal/errs"
)

const symlinkName = "latest"

// Rotator creates and prunes session temporary directories under a
// fixed root, keeping at most keep of the most recent ones, and always
// the one just created even when keep is 0 (the "latest" symlink
// itself doesn't count toward that limit).
type Rotator struct {
	base string // root/runltp-of-<user>
	keep int
}

// NewRotator returns a Rotator rooted at root, which must already
// exist. keep is clamped to a non-negative value.
func NewRotator(root string, keep int) (*Rotator, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errs.NewConfigError("temporary root doesn't exist", err)
	}
	if keep < 0 {
		keep = 0
	}

	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}

	return &Rotator{
		base: filepath.Join(root, fmt.Sprintf("runltp-of-%s", name)),
		keep: keep,
	}, nil
}

// Rotate prunes directories beyond the keep count (oldest first, by
// modification time, skipping the "latest" symlink), creates a new
// session directory, repoints "latest" at it, and returns its path.
func (r *Rotator) Rotate() (string, error) {
	if err := os.MkdirAll(r.base, 0o755); err != nil {
		return "", errs.NewConfigError("create temporary root", err)
	}

	entries, err := os.ReadDir(r.base)
	if err != nil {
		return "", errs.NewConfigError("list temporary root", err)
	}

	type aged struct {
		name    string
		modTime int64
	}
	var paths []aged
	for _, e := range entries {
		if e.Name() == symlinkName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		paths = append(paths, aged{name: e.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].modTime < paths[j].modTime })

	if len(paths) >= r.keep {
		prune := len(paths) - r.keep + 1
		for i := 0; i < prune && i < len(paths); i++ {
			os.RemoveAll(filepath.Join(r.base, paths[i].name))
		}
	}

	folder, err := os.MkdirTemp(r.base, "")
	if err != nil {
		return "", errs.NewConfigError("create session directory", err)
	}

	latest := filepath.Join(r.base, symlinkName)
	os.Remove(latest) // ignore error: may not exist yet
	if err := os.Symlink(folder, latest); err != nil {
		return "", errs.NewConfigError("symlink latest session directory", err)
	}

	return folder, nil
}
