// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"

	mcli "github.com/mitchellh/cli"
)

// Ui implements the mitchellh/cli.Ui interface, while exposing the underlying
// io.Writer used for stdout and stderr. The agent sends its log output to
// Stderr.
type Ui interface {
	mcli.Ui
	Stdout() io.Writer
	Stderr() io.Writer
}

// BasicUI augments mitchellh/cli.BasicUi by exposing the underlying io.Writer.
type BasicUI struct {
	mcli.BasicUi
}

func (b *BasicUI) Stdout() io.Writer {
	return b.BasicUi.Writer
}

func (b *BasicUI) Stderr() io.Writer {
	return b.BasicUi.ErrorWriter
}

// MockUI wraps mitchellh/cli.MockUi for command tests.
type MockUI struct {
	*mcli.MockUi
}

// NewMockUI returns a Ui whose output can be inspected.
func NewMockUI() *MockUI {
	return &MockUI{MockUi: mcli.NewMockUi()}
}

func (m *MockUI) Stdout() io.Writer {
	return m.OutputWriter
}

func (m *MockUI) Stderr() io.Writer {
	return m.ErrorWriter
}
