// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"math"
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/ams/agent/pending"
	"github.com/hashicorp/ams/agent/server"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/ipaddr"
	"github.com/hashicorp/ams/lib/telemetry"
	"github.com/hashicorp/ams/logging"
)

const defaultBindAddr = "127.0.0.1"

// RuntimeConfig is the configuration the agent runs with once every source
// has been merged and validated.
type RuntimeConfig struct {
	Server    *server.Config
	Logging   logging.Config
	Telemetry telemetry.Config
}

// Build turns a merged FileConfig into a RuntimeConfig. Unset values take
// their defaults. Every problem found is reported.
func Build(c FileConfig) (*RuntimeConfig, error) {
	var result error
	errorf := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	s := server.DefaultConfig()
	s.NodeName = stringVal(c.NodeName, s.NodeName)
	s.EagerRounds = boolVal(c.EagerRounds, s.EagerRounds)

	bind := stringVal(c.BindAddr, defaultBindAddr)
	port := intVal(c.Port, server.DefaultRPCPort)
	if port < 0 || port > math.MaxUint16 {
		errorf("port %d is out of range", port)
	}
	ip, err := ipaddr.ParseSingleIP(bind)
	if err != nil {
		errorf("bind_addr: %v", err)
	}
	s.RPCAddr = &net.TCPAddr{IP: ip, Port: port}

	if len(c.Providers) > 0 {
		s.Providers = s.Providers[:0]
		for i, p := range c.Providers {
			if p.ID == nil {
				errorf("provider %d: id is required", i)
				continue
			}
			if *p.ID < 0 || *p.ID > math.MaxUint16 {
				errorf("provider %d: id %d is out of range", i, *p.ID)
				continue
			}
			s.Providers = append(s.Providers, server.ProviderConfig{
				ID:    structs.ProviderID(*p.ID),
				Token: stringVal(p.Token, ""),
			})
		}
	}

	cc := c.Collective
	s.Rank = intVal(cc.Rank, s.Rank)
	s.Size = intVal(cc.Size, s.Size)
	if root := stringVal(cc.RootAddress, ""); root != "" {
		addr, err := resolveRoot(root)
		if err != nil {
			errorf("collective root_address: %v", err)
		}
		s.RootAddr = addr
	}
	check, err := pending.ParseCheck(stringVal(cc.Check, ""))
	if err != nil {
		errorf("collective check: %v", err)
	}
	s.Check = check
	if cc.ReduceTimeout != nil {
		s.ReduceTimeout = *cc.ReduceTimeout
	}
	if cc.RetryInterval != nil {
		s.RetryInterval = *cc.RetryInterval
	}
	s.RetryBurst = intVal(cc.RetryBurst, s.RetryBurst)

	if err := s.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	rt := &RuntimeConfig{
		Server: s,
		Logging: logging.Config{
			Name:        s.NodeName,
			LogLevel:    stringVal(c.LogLevel, "INFO"),
			LogJSON:     boolVal(c.LogJSON, false),
			LogFilePath: stringVal(c.LogFile, ""),
		},
		Telemetry: telemetry.Config{
			StatsdAddr:      stringVal(c.Telemetry.StatsdAddress, ""),
			StatsiteAddr:    stringVal(c.Telemetry.StatsiteAddress, ""),
			DisableHostname: boolVal(c.Telemetry.DisableHostname, false),
			MetricsPrefix:   stringVal(c.Telemetry.MetricsPrefix, ""),
		},
	}
	if !logging.ValidateLogLevel(rt.Logging.LogLevel) {
		errorf("invalid log_level %q, must be one of %v", rt.Logging.LogLevel, logging.AllowedLogLevels())
	}

	if result != nil {
		return nil, result
	}
	return rt, nil
}

// resolveRoot accepts host:port or a bare host, which gets the default port.
func resolveRoot(s string) (*net.TCPAddr, error) {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		host = s
		s = net.JoinHostPort(s, strconv.Itoa(server.DefaultRPCPort))
	}
	if ipaddr.IsAny(host) {
		return nil, fmt.Errorf("%q is not a reachable address", host)
	}
	return net.ResolveTCPAddr("tcp", s)
}

func stringVal(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func intVal(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolVal(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
