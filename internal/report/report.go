// Copyright 2024 The LTP-NG Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package report writes the session's SuiteResults out as the JSON
// report document external collaborators consume; it is otherwise
// unaware of how the dispatcher produced them.
package report

import (
	"encoding/json"
	"os"

	"go.fuchsia.dev/ltpng/internal/errs"
	"go.fuchsia.dev/ltpng/internal/results"
)

type testDoc struct {
	Name       string   `json:"name"`
	Command    string   `json:"command"`
	Arguments  []string `json:"arguments"`
	Stdout     string   `json:"stdout"`
	Returncode int      `json:"returncode"`
	ExecTime   float64  `json:"exec_time"`
	Passed     int      `json:"passed"`
	Failed     int      `json:"failed"`
	Broken     int      `json:"broken"`
	Skipped    int      `json:"skipped"`
	Warnings   int      `json:"warnings"`
}

type sutDoc struct {
	Distro     string `json:"distro"`
	DistroVer  string `json:"distro_ver"`
	Kernel     string `json:"kernel"`
	Arch       string `json:"arch"`
}

type suiteResultsDoc struct {
	ExecTime float64 `json:"exec_time"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Broken   int     `json:"broken"`
	Skipped  int     `json:"skipped"`
	Warnings int     `json:"warnings"`
}

type suiteDoc struct {
	Name    string           `json:"name"`
	SUT     sutDoc           `json:"sut"`
	Results suiteResultsDoc  `json:"results"`
	Tests   []testDoc        `json:"tests"`
}

type document struct {
	Suites []suiteDoc `json:"suites"`
}

// Build converts accumulated SuiteResults into the wire document
// described by the report schema.
func Build(suites []results.SuiteResult) []byte {
	doc := document{Suites: make([]suiteDoc, 0, len(suites))}

	for _, suite := range suites {
		sd := suiteDoc{
			Name: suite.Suite.Name,
			SUT: sutDoc{
				Distro:    suite.Env.Distro,
				DistroVer: suite.Env.DistroVersion,
				Kernel:    suite.Env.Kernel,
				Arch:      suite.Env.Arch,
			},
			Tests: make([]testDoc, 0, len(suite.Tests)),
		}

		for _, tr := range suite.Tests {
			sd.Tests = append(sd.Tests, testDoc{
				Name:       tr.Test.Name,
				Command:    tr.Test.Command,
				Arguments:  tr.Test.Arguments,
				Stdout:     tr.Stdout,
				Returncode: tr.Returncode,
				ExecTime:   tr.ExecTimeSec,
				Passed:     tr.Counters.Passed,
				Failed:     tr.Counters.Failed,
				Broken:     tr.Counters.Broken,
				Skipped:    tr.Counters.Skipped,
				Warnings:   tr.Counters.Warnings,
			})
			sd.Results.ExecTime += tr.ExecTimeSec
			sd.Results.Passed += tr.Counters.Passed
			sd.Results.Failed += tr.Counters.Failed
			sd.Results.Broken += tr.Counters.Broken
			sd.Results.Skipped += tr.Counters.Skipped
			sd.Results.Warnings += tr.Counters.Warnings
		}

		doc.Suites = append(doc.Suites, sd)
	}

	// encoding/json.Marshal on a value built entirely from this
	// package's own structs cannot fail.
	b, _ := json.MarshalIndent(doc, "", "  ")
	return b
}

// WriteFile renders suites and writes them to path.
func WriteFile(path string, suites []results.SuiteResult) error {
	if err := os.WriteFile(path, Build(suites), 0o644); err != nil {
		return errs.NewInternalError("write report: " + err.Error())
	}
	return nil
}
