// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/config"
	"github.com/hashicorp/ams/agent/server"
	"github.com/hashicorp/ams/command/cli"
	"github.com/hashicorp/ams/command/flags"
	"github.com/hashicorp/ams/lib/routine"
	"github.com/hashicorp/ams/lib/telemetry"
	"github.com/hashicorp/ams/logging"
	"github.com/hashicorp/ams/version"
)

// gracefulTimeout controls how long we wait before forcefully terminating
var gracefulTimeout = 15 * time.Second

func New(ui cli.Ui, shutdownCh <-chan struct{}) *cmd {
	c := &cmd{
		UI:         ui,
		shutdownCh: shutdownCh,
	}
	c.init()
	return c
}

// cmd runs an AMS server until it is interrupted, asked to shut down
// remotely, or receives a value on shutdownCh.
type cmd struct {
	UI         cli.Ui
	flags      *flag.FlagSet
	help       string
	shutdownCh <-chan struct{}
	logger     hclog.InterceptLogger

	// flags
	configFiles flags.AppendSliceValue
	nodeName    flags.StringValue
	bind        flags.StringValue
	port        flags.IntValue
	logLevel    flags.StringValue
	logJSON     flags.BoolValue
	eager       flags.BoolValue
	rank        flags.IntValue
	size        flags.IntValue
	root        flags.StringValue
	check       flags.StringValue
	provider    flags.IntValue
	token       flags.StringValue
}

func (c *cmd) init() {
	c.flags = flag.NewFlagSet("", flag.ContinueOnError)
	c.flags.Var(&c.configFiles, "config-file",
		"Path to an HCL or JSON file to read configuration from. Directories are "+
			"read in lexical order, every file ending in .hcl or .json. This can be "+
			"specified multiple times; later files override earlier ones.")
	c.flags.Var(&c.nodeName, "node", "Name of this server in logs.")
	c.flags.Var(&c.bind, "bind", "The IP address to bind the RPC listener to.")
	c.flags.Var(&c.port, "port", fmt.Sprintf("The RPC port. Defaults to %d; 0 picks a free port.", server.DefaultRPCPort))
	c.flags.Var(&c.logLevel, "log-level", "Log level of the agent. One of "+strings.Join(logging.AllowedLogLevels(), ", ")+".")
	c.flags.Var(&c.logJSON, "log-json", "Output logs in JSON format.")
	c.flags.Var(&c.eager, "eager-rounds",
		"Run one agreement round per accepted submission. When false rounds only "+
			"run on an explicit drain.")
	c.flags.Var(&c.rank, "rank", "Rank of this server in the collective.")
	c.flags.Var(&c.size, "size", "Number of servers in the collective.")
	c.flags.Var(&c.root, "root", "Address of the rank 0 server. Required when rank is above 0.")
	c.flags.Var(&c.check, "check", "How agreement is judged: exact or sum.")
	c.flags.Var(&c.provider, "provider",
		"Id of the single provider to host. Replaces any providers from the "+
			"configuration files.")
	c.flags.Var(&c.token, "token", "Security token of the provider given with -provider.")
	c.help = flags.Usage(help, c.flags)
}

// flagConfig returns the configuration set on the command line.
func (c *cmd) flagConfig() config.FileConfig {
	fc := config.FileConfig{
		NodeName:    c.nodeName.Ptr(),
		BindAddr:    c.bind.Ptr(),
		Port:        c.port.Ptr(),
		LogLevel:    c.logLevel.Ptr(),
		LogJSON:     c.logJSON.Ptr(),
		EagerRounds: c.eager.Ptr(),
		Collective: config.Collective{
			Rank:        c.rank.Ptr(),
			Size:        c.size.Ptr(),
			RootAddress: c.root.Ptr(),
			Check:       c.check.Ptr(),
		},
	}
	if c.provider.Ptr() != nil || c.token.Ptr() != nil {
		id := 0
		c.provider.Merge(&id)
		fc.Providers = []config.Provider{{ID: &id, Token: c.token.Ptr()}}
	}
	return fc
}

// readConfig merges the configuration files with the flags.
func (c *cmd) readConfig() (*config.RuntimeConfig, error) {
	var fc config.FileConfig
	if len(c.configFiles) > 0 {
		var err error
		fc, err = config.ReadPaths(c.configFiles)
		if err != nil {
			return nil, err
		}
	}
	return config.Build(config.Merge(fc, c.flagConfig()))
}

func (c *cmd) Run(args []string) int {
	if err := c.flags.Parse(args); err != nil {
		if err != flag.ErrHelp {
			c.UI.Error(fmt.Sprintf("Error parsing flags: %v", err))
		}
		return 1
	}

	rt, err := c.readConfig()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error loading configuration: %v", err))
		return 1
	}

	logger, err := logging.Setup(rt.Logging, c.UI.Stderr())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.logger = logger

	inm, err := telemetry.Init(rt.Telemetry)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error initializing telemetry: %v", err))
		return 1
	}
	sig := metrics.DefaultInmemSignal(inm)
	defer sig.Stop()

	rt.Server.Logger = logger
	srv, err := server.NewServer(rt.Server)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error starting server: %v", err))
		return 1
	}
	defer srv.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routines := routine.NewManager(logger.Named(logging.Routine))
	defer routines.StopAll()

	var changed <-chan struct{}
	if len(c.configFiles) > 0 {
		w, err := config.NewWatcher(c.configFiles, logger.Named(logging.Agent))
		if err != nil {
			logger.Warn("not watching configuration files", "error", err)
		} else {
			routines.Start(ctx, "config-watcher", w.Run)
			changed = w.Changed()
		}
	}

	s := rt.Server
	c.UI.Output("AMS agent running!")
	c.UI.Info(fmt.Sprintf("     Version: '%s'", version.GetHumanVersion()))
	c.UI.Info(fmt.Sprintf("   Node name: '%s'", s.NodeName))
	c.UI.Info(fmt.Sprintf("    RPC addr: %v", srv.Addr()))
	c.UI.Info(fmt.Sprintf("  Collective: rank %d of %d (check: %s, eager rounds: %v)", s.Rank, s.Size, s.Check, s.EagerRounds))
	c.UI.Info(fmt.Sprintf("   Providers: %d", len(s.Providers)))
	c.UI.Info("")
	c.UI.Output("Log data will now stream in as it occurs:\n")

	return c.handleSignals(srv, changed)
}

// handleSignals blocks until shutdownCh fires or the server shuts down.
// SIGHUP and configuration file changes reload the configuration. A second
// value on shutdownCh while shutting down exits at once.
func (c *cmd) handleSignals(srv *server.Server, changed <-chan struct{}) int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, syscall.SIGHUP)
	defer signal.Stop(signalCh)

WAIT:
	select {
	case sig := <-signalCh:
		c.logger.Info("Caught", "signal", sig)
		c.handleReload()
		goto WAIT
	case <-changed:
		c.logger.Info("Configuration files changed")
		c.handleReload()
		goto WAIT
	case <-c.shutdownCh:
	case <-srv.ShutdownCh():
		// Server is already shutdown!
		return 0
	}

	gracefulCh := make(chan error, 1)
	c.logger.Info("Gracefully shutting down agent...")
	go func() {
		gracefulCh <- srv.Shutdown()
	}()

	select {
	case <-c.shutdownCh:
		return 1
	case <-time.After(gracefulTimeout):
		c.logger.Error("Timed out waiting for the server to shut down")
		return 1
	case err := <-gracefulCh:
		if err != nil {
			c.logger.Error("Error during shutdown", "error", err)
			return 1
		}
		return 0
	}
}

// handleReload re-reads the configuration. Only the log level can change
// while running; other changes need a restart.
func (c *cmd) handleReload() {
	c.logger.Info("Reloading configuration...")
	rt, err := c.readConfig()
	if err != nil {
		c.logger.Error("Failed to reload configuration", "error", err)
		return
	}
	c.logger.SetLevel(logging.LevelFromString(rt.Logging.LogLevel))
	c.logger.Info("Reloaded configuration", "log_level", rt.Logging.LogLevel)
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Runs an AMS server"
const help = `
Usage: ams agent [options]

  Starts an AMS server and runs until an interrupt is received or the
  server is shut down remotely. Every server of a collective must be
  started with the same size and a distinct rank; rank 0 must be started
  first so the others can reach it.

  Sending SIGHUP, or changing a file given with -config-file, reloads the
  log level.
`
