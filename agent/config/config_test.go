// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/pending"
	"github.com/hashicorp/ams/agent/server"
	"github.com/hashicorp/ams/agent/structs"
)

const fullHCL = `
node_name = "ams-1"
bind_addr = "0.0.0.0"
port = 9000
log_level = "debug"
eager_rounds = false

provider {
  id = 1
  token = "secret"
}

provider {
  id = 2
}

collective {
  rank = 1
  size = 3
  root_address = "127.0.0.1:9100"
  check = "sum"
  reduce_timeout = "2s"
  retry_interval = "10ms"
  retry_burst = 2
}

telemetry {
  statsd_address = "127.0.0.1:8125"
  metrics_prefix = "test"
}
`

func TestParse_HCL(t *testing.T) {
	c, err := Parse(fullHCL)
	require.NoError(t, err)

	require.Equal(t, "ams-1", *c.NodeName)
	require.Equal(t, 9000, *c.Port)
	require.False(t, *c.EagerRounds)
	require.Len(t, c.Providers, 2)
	require.Equal(t, 1, *c.Providers[0].ID)
	require.Equal(t, "secret", *c.Providers[0].Token)
	require.Nil(t, c.Providers[1].Token)
	require.Equal(t, 3, *c.Collective.Size)
	require.Equal(t, 2*time.Second, *c.Collective.ReduceTimeout)
	require.Equal(t, "test", *c.Telemetry.MetricsPrefix)
}

func TestParse_SingleProviderStaysList(t *testing.T) {
	c, err := Parse(`provider { id = 7 }`)
	require.NoError(t, err)
	require.Len(t, c.Providers, 1)
	require.Equal(t, 7, *c.Providers[0].ID)
}

func TestParse_JSON(t *testing.T) {
	c, err := Parse(`{"node_name": "json", "collective": {"size": 2, "rank": 0}}`)
	require.NoError(t, err)
	require.Equal(t, "json", *c.NodeName)
	require.Equal(t, 2, *c.Collective.Size)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse(`bogus = 1`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(`node_name = `)
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	a, err := Parse(`node_name = "a"
port = 1
collective { size = 2 }`)
	require.NoError(t, err)
	b, err := Parse(`port = 2
collective { rank = 1 }`)
	require.NoError(t, err)

	m := Merge(a, b)
	require.Equal(t, "a", *m.NodeName)
	require.Equal(t, 2, *m.Port)
	require.Equal(t, 2, *m.Collective.Size)
	require.Equal(t, 1, *m.Collective.Rank)
}

func TestReadPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`node_name = "a"
port = 1`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"port": 2}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte(`not config`), 0600))

	c, err := ReadPaths([]string{dir})
	require.NoError(t, err)
	require.Equal(t, "a", *c.NodeName)
	require.Equal(t, 2, *c.Port)

	_, err = ReadPaths([]string{filepath.Join(dir, "missing.hcl")})
	require.Error(t, err)
}

func TestBuild_Defaults(t *testing.T) {
	rt, err := Build(FileConfig{})
	require.NoError(t, err)

	require.Equal(t, server.DefaultRPCPort, rt.Server.RPCAddr.Port)
	require.Equal(t, "127.0.0.1", rt.Server.RPCAddr.IP.String())
	require.Equal(t, 1, rt.Server.Size)
	require.Equal(t, pending.CheckExact, rt.Server.Check)
	require.True(t, rt.Server.EagerRounds)
	require.Len(t, rt.Server.Providers, 1)
	require.Equal(t, "INFO", rt.Logging.LogLevel)
}

func TestBuild_Full(t *testing.T) {
	c, err := Parse(fullHCL)
	require.NoError(t, err)

	rt, err := Build(c)
	require.NoError(t, err)

	s := rt.Server
	require.Equal(t, "ams-1", s.NodeName)
	require.Equal(t, 9000, s.RPCAddr.Port)
	require.False(t, s.EagerRounds)
	require.Equal(t, []server.ProviderConfig{
		{ID: structs.ProviderID(1), Token: "secret"},
		{ID: structs.ProviderID(2)},
	}, s.Providers)
	require.Equal(t, 1, s.Rank)
	require.Equal(t, 3, s.Size)
	require.Equal(t, 9100, s.RootAddr.Port)
	require.Equal(t, pending.CheckSum, s.Check)
	require.Equal(t, 2*time.Second, s.ReduceTimeout)
	require.Equal(t, 10*time.Millisecond, s.RetryInterval)
	require.Equal(t, 2, s.RetryBurst)

	require.Equal(t, "debug", rt.Logging.LogLevel)
	require.Equal(t, "ams-1", rt.Logging.Name)
	require.Equal(t, "127.0.0.1:8125", rt.Telemetry.StatsdAddr)
	require.Equal(t, "test", rt.Telemetry.MetricsPrefix)
}

func TestBuild_RootWithoutPort(t *testing.T) {
	c, err := Parse(`collective {
  rank = 1
  size = 2
  root_address = "127.0.0.1"
}`)
	require.NoError(t, err)

	rt, err := Build(c)
	require.NoError(t, err)
	require.Equal(t, server.DefaultRPCPort, rt.Server.RootAddr.Port)
}

func TestBuild_ReportsEveryProblem(t *testing.T) {
	c, err := Parse(`
bind_addr = "not-an-ip"
log_level = "loud"
provider { id = 70000 }
collective {
  rank = 4
  size = 2
  check = "majority"
}`)
	require.NoError(t, err)

	_, err = Build(c)
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "bind_addr")
	require.Contains(t, msg, "log_level")
	require.Contains(t, msg, "out of range")
	require.Contains(t, msg, "majority")
	require.Contains(t, msg, "rank 4")
}

func TestBuild_AddressTemplates(t *testing.T) {
	c, err := Parse(`bind_addr = "{{ \"127.0.0.2\" }}"`)
	require.NoError(t, err)
	rt, err := Build(c)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.2", rt.Server.RPCAddr.IP.String())

	c, err = Parse(`collective {
  rank = 1
  size = 2
  root_address = "0.0.0.0:8700"
}`)
	require.NoError(t, err)
	_, err = Build(c)
	require.Error(t, err)
	require.Contains(t, err.Error(), "root_address")
}
