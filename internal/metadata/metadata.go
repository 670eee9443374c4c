// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package metadata parses LTP runtest suite manifests into an ordered
// list of tests.
package metadata

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"go.fuchsia.dev/ltpng/internal/errs"
)

// Test is one enumerated entry from a suite manifest, immutable after
// parse.
type Test struct {
	Name      string
	Command   string
	Arguments []string
}

// Suite is a manifest's name plus its ordered tests, immutable after
// parse.
type Suite struct {
	Name  string
	Tests []Test
}

// ReadSuite parses the LTP runtest file at path. Blank lines and lines
// beginning with '#' (after trimming leading whitespace) are ignored.
// A valid line has at least two whitespace-separated tokens: name,
// command, and zero or more arguments. A line with only one token is a
// parse error.
func ReadSuite(path string) (Suite, error) {
	if path == "" {
		return Suite{}, errs.NewConfigError("runtest file path is empty", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return Suite{}, errs.NewConfigError("runtest file doesn't exist", err)
	}
	defer f.Close()

	var tests []Test
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return Suite{}, errs.NewConfigError("test declaration is not defining command", nil)
		}

		tests = append(tests, Test{
			Name:      parts[0],
			Command:   parts[1],
			Arguments: append([]string(nil), parts[2:]...),
		})
	}
	if err := scanner.Err(); err != nil {
		return Suite{}, errs.NewTransportError("read runtest file", err)
	}

	return Suite{Name: filepath.Base(path), Tests: tests}, nil
}
