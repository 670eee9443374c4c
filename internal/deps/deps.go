// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deps holds the static, per-distro package tables needed to
// build and run LTP from source. It backs the "show-deps" and
// "install" subcommands; it does not itself install anything.
package deps

import (
	"fmt"
	"strings"
)

// Distro is one entry in the package table: build packages needed to
// compile LTP, runtime packages its tests exercise, and the refresh/
// install commands for the distro's package manager.
type Distro struct {
	ID          string
	Build       []string
	Runtime     []string
	Libs        []string
	Tools       []string
	RefreshCmd  string
	InstallCmd  string
}

// Table lists every distro this repo knows package names for, grounded
// on the source installer's per-distro classes.
var Table = []Distro{
	{
		ID:         "opensuse",
		Build:      []string{"autoconf", "automake", "gcc", "git", "kernel-devel", "make", "pkg-config", "unzip"},
		Runtime:    []string{"bc", "btrfsprogs", "dosfstools", "e2fsprogs", "nfs-kernel-server", "quota", "xfsprogs"},
		Libs:       []string{"libacl-devel", "libaio-devel", "libattr-devel", "libcap-devel", "libnuma-devel"},
		Tools:      []string{"libssh4"},
		RefreshCmd: "zypper --non-interactive refresh",
		InstallCmd: "zypper --non-interactive --ignore-unknown install",
	},
	{
		ID:         "sles",
		Build:      []string{"autoconf", "automake", "gcc", "git", "kernel-devel", "make", "pkg-config", "unzip"},
		Runtime:    []string{"bc", "btrfsprogs", "dosfstools", "e2fsprogs", "nfs-kernel-server", "quota", "xfsprogs"},
		Libs:       []string{"libacl-devel", "libaio-devel", "libattr-devel", "libcap-devel", "libnuma-devel"},
		Tools:      []string{"libssh4"},
		RefreshCmd: "zypper --non-interactive refresh",
		InstallCmd: "zypper --non-interactive --ignore-unknown install",
	},
	{
		ID:         "debian",
		Build:      []string{"automake", "autoconf", "git", "make", "pkg-config", "unzip", "gcc"},
		Runtime:    []string{"bc", "btrfs-progs", "dosfstools", "e2fsprogs", "nfs-kernel-server", "quota", "xfsprogs"},
		Libs:       []string{"libacl1-dev", "libaio-dev", "libattr1-dev", "libcap-dev", "libnuma-dev"},
		Tools:      []string{"libssh-4"},
		RefreshCmd: "apt-get -y update",
		InstallCmd: "DEBIAN_FRONTEND=noninteractive apt-get -y --no-install-recommends install",
	},
	{
		ID:         "ubuntu",
		Build:      []string{"automake", "autoconf", "git", "make", "pkg-config", "unzip", "gcc"},
		Runtime:    []string{"bc", "btrfs-progs", "dosfstools", "e2fsprogs", "linux-headers-generic", "nfs-kernel-server", "quota", "xfsprogs"},
		Libs:       []string{"libacl1-dev", "libaio-dev", "libattr1-dev", "libcap-dev", "libnuma-dev"},
		Tools:      []string{"libssh-4"},
		RefreshCmd: "apt-get -y update",
		InstallCmd: "DEBIAN_FRONTEND=noninteractive apt-get -y --no-install-recommends install",
	},
	{
		ID:         "alpine",
		Build:      []string{"autoconf", "automake", "build-base", "git", "linux-headers", "make", "pkgconf", "unzip"},
		Runtime:    []string{"bc", "btrfs-progs", "dosfstools", "e2fsprogs", "nfs-utils", "quota-tools", "xfsprogs"},
		Libs:       []string{"acl-dev", "attr-dev", "libaio-dev", "libcap-dev", "numactl-dev"},
		Tools:      []string{"libssh"},
		RefreshCmd: "apk update",
		InstallCmd: "apk add",
	},
	{
		ID:         "fedora",
		Build:      []string{"autoconf", "automake", "gcc", "git", "kernel-devel", "make", "pkg-config", "unzip"},
		Runtime:    []string{"bc", "btrfs-progs", "dosfstools", "e2fsprogs", "nfs-utils", "quota", "xfsprogs"},
		Libs:       []string{"libacl-devel", "libaio-devel", "libattr-devel", "libcap-devel", "numactl-libs"},
		Tools:      []string{"libssh"},
		RefreshCmd: "yum update -y",
		InstallCmd: "yum install -y",
	},
}

// Lookup returns the Distro entry whose ID is contained in distroID
// (e.g. "opensuse-leap" matches "opensuse"), mirroring the source
// installer's substring match against /etc/os-release.
func Lookup(distroID string) (Distro, error) {
	for _, d := range Table {
		if d.ID == distroID {
			return d, nil
		}
	}
	for _, d := range Table {
		if strings.Contains(distroID, d.ID) {
			return d, nil
		}
	}
	return Distro{}, fmt.Errorf("%s is not a supported distro", distroID)
}

// Packages returns the concatenation of the requested package groups,
// in build+libs+runtime+tools order; the libs group is included
// together with build.
func (d Distro) Packages(build, runtime, tools bool) []string {
	var pkgs []string
	if build {
		pkgs = append(pkgs, d.Build...)
		pkgs = append(pkgs, d.Libs...)
	}
	if runtime {
		pkgs = append(pkgs, d.Runtime...)
	}
	if tools {
		pkgs = append(pkgs, d.Tools...)
	}
	return pkgs
}
