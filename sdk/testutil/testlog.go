// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

var sendTestLogsToStdout = os.Getenv("NOLOGBUFFER") == "1"

// Logger returns a trace level logger named after the test. Output goes to
// the test log so it is only shown for failing or verbose tests, unless
// NOLOGBUFFER=1 is set.
func Logger(t testing.TB) hclog.InterceptLogger {
	var output io.Writer = &testWriter{t: t}
	if sendTestLogsToStdout {
		output = os.Stdout
	}
	return LoggerWithOutput(t, output)
}

func LoggerWithOutput(t testing.TB, output io.Writer) hclog.InterceptLogger {
	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:       t.Name(),
		Level:      hclog.Trace,
		Output:     output,
		TimeFormat: "04:05.000",
	})
}

type testWriter struct {
	t testing.TB
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	// t.Log panics once the test has returned, which can happen while
	// background goroutines are still draining.
	defer func() { _ = recover() }()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
