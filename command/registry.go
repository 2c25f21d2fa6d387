// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"
	"os/signal"
	"syscall"

	mcli "github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/agent"
	"github.com/hashicorp/ams/command/cli"
	"github.com/hashicorp/ams/command/node"
	nodeCheck "github.com/hashicorp/ams/command/node/check"
	nodeClose "github.com/hashicorp/ams/command/node/close"
	nodeCreate "github.com/hashicorp/ams/command/node/create"
	nodeDestroy "github.com/hashicorp/ams/command/node/destroy"
	nodeDrain "github.com/hashicorp/ams/command/node/drain"
	nodeHello "github.com/hashicorp/ams/command/node/hello"
	nodeOpen "github.com/hashicorp/ams/command/node/open"
	nodeStatus "github.com/hashicorp/ams/command/node/status"
	nodeSubmit "github.com/hashicorp/ams/command/node/submit"
	nodeSum "github.com/hashicorp/ams/command/node/sum"
	"github.com/hashicorp/ams/command/shutdown"
	"github.com/hashicorp/ams/command/version"
)

// RegisteredCommands returns a realized mapping of available CLI commands in a format that
// the CLI class can consume.
func RegisteredCommands(ui cli.Ui) map[string]mcli.CommandFactory {
	registry := map[string]mcli.CommandFactory{}
	registerCommands(ui, registry,
		entry{"agent", func(ui cli.Ui) (mcli.Command, error) {
			return agent.New(ui, MakeShutdownCh()), nil
		}},
		entry{"node", func(cli.Ui) (mcli.Command, error) { return node.New(), nil }},
		entry{"node check", func(ui cli.Ui) (mcli.Command, error) { return nodeCheck.New(ui), nil }},
		entry{"node close", func(ui cli.Ui) (mcli.Command, error) { return nodeClose.New(ui), nil }},
		entry{"node create", func(ui cli.Ui) (mcli.Command, error) { return nodeCreate.New(ui), nil }},
		entry{"node destroy", func(ui cli.Ui) (mcli.Command, error) { return nodeDestroy.New(ui), nil }},
		entry{"node drain", func(ui cli.Ui) (mcli.Command, error) { return nodeDrain.New(ui), nil }},
		entry{"node hello", func(ui cli.Ui) (mcli.Command, error) { return nodeHello.New(ui), nil }},
		entry{"node open", func(ui cli.Ui) (mcli.Command, error) { return nodeOpen.New(ui), nil }},
		entry{"node status", func(ui cli.Ui) (mcli.Command, error) { return nodeStatus.New(ui), nil }},
		entry{"node submit", func(ui cli.Ui) (mcli.Command, error) { return nodeSubmit.New(ui), nil }},
		entry{"node sum", func(ui cli.Ui) (mcli.Command, error) { return nodeSum.New(ui), nil }},
		entry{"shutdown", func(ui cli.Ui) (mcli.Command, error) { return shutdown.New(ui), nil }},
		entry{"version", func(ui cli.Ui) (mcli.Command, error) { return version.New(ui), nil }},
	)
	return registry
}

// factory is a function that returns a new instance of a CLI-sub command.
type factory func(cli.Ui) (mcli.Command, error)

// entry is a struct that contains a command's name and a factory for that command.
type entry struct {
	name string
	fn   factory
}

func registerCommands(ui cli.Ui, m map[string]mcli.CommandFactory, cmdEntries ...entry) {
	for _, ent := range cmdEntries {
		thisFn := ent.fn
		if _, ok := m[ent.name]; ok {
			panic("duplicate command: " + ent.name)
		}
		m[ent.name] = func() (mcli.Command, error) {
			return thisFn(ui)
		}
	}
}

// MakeShutdownCh returns a channel that can be used for shutdown notifications
// for commands. This channel will send a message for every interrupt or SIGTERM
// received.
func MakeShutdownCh() <-chan struct{} {
	resultCh := make(chan struct{})
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			<-signalCh
			resultCh <- struct{}{}
		}
	}()

	return resultCh
}
