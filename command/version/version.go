// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package version

import (
	"runtime"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/version"
)

func New(ui cli.Ui) *cmd {
	return &cmd{UI: ui}
}

type cmd struct {
	UI cli.Ui
}

func (c *cmd) Run(_ []string) int {
	c.UI.Output("AMS " + version.GetHumanVersion())
	c.UI.Output("Go " + runtime.Version())
	return 0
}

func (c *cmd) Synopsis() string {
	return "Prints the AMS version"
}

func (c *cmd) Help() string {
	return ""
}
