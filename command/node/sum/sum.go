// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package sum

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
)

func New(ui cli.Ui) *cmd {
	c := &cmd{UI: ui}
	c.init()
	return c
}

type cmd struct {
	UI    cli.Ui
	flags *flags.ClientFlags
	fs    *flag.FlagSet
	help  string
}

func (c *cmd) init() {
	c.fs = flag.NewFlagSet("", flag.ContinueOnError)
	c.flags = &flags.ClientFlags{}
	flags.Merge(c.fs, c.flags.Flags())
	c.help = flags.Usage(help, c.fs)
}

func (c *cmd) Run(args []string) int {
	if err := c.fs.Parse(args); err != nil {
		return 1
	}

	args = c.fs.Args()
	if len(args) != 3 {
		c.UI.Error("A node id and two integers must be specified")
		return 1
	}
	var operands [2]int32
	for i, arg := range args[1:] {
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			c.UI.Error(fmt.Sprintf("Invalid operand %q: %s", arg, err))
			return 1
		}
		operands[i] = int32(v)
	}

	client, err := c.flags.APIClient()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error creating client: %s", err))
		return 1
	}
	defer client.Close()

	h, err := c.flags.NodeHandle(client, args[0])
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error reaching node: %s", err))
		return 1
	}

	sum, err := h.ComputeSum(operands[0], operands[1])
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error computing sum: %s", err))
		return 1
	}

	c.UI.Output(strconv.FormatInt(int64(sum), 10))
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Add two numbers on a node"
const help = `
Usage: ams node sum [options] <node-id> <x> <y>

  Asks the node to compute x+y and prints the result.

      $ ams node sum 1b4e28ba-2fa1-11d2-883f-0016d3cca427 42 51
      93
`
