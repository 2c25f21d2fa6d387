// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/structs"
)

type fakeBackend struct {
	Backend
	config map[string]interface{}
}

func fakeFactory(logger hclog.Logger, config map[string]interface{}) (Backend, error) {
	return &fakeBackend{config: config}, nil
}

func failingFactory(logger hclog.Logger, config map[string]interface{}) (Backend, error) {
	return nil, errors.New("no space left")
}

func TestRegistry_CreateOpen(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("fake", fakeFactory, fakeFactory))

	b, err := r.Create("fake", map[string]interface{}{"path": "/tmp/a"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/a", b.(*fakeBackend).config["path"])

	b, err = r.Open("fake", nil)
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Create("missing", nil)
	require.ErrorIs(t, err, ErrUnknownBackendType)
	require.True(t, structs.IsErrUnknownBackendType(err))

	_, err = r.Open("missing", nil)
	require.ErrorIs(t, err, ErrUnknownBackendType)
}

func TestRegistry_ConstructionError(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("broken", fakeFactory, failingFactory))

	_, err := r.Open("broken", nil)
	require.Error(t, err)

	var cerr *ConstructionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "broken", cerr.Type)
	require.Equal(t, "open", cerr.Op)
	require.EqualError(t, cerr.Unwrap(), "no space left")
	require.ErrorIs(t, err, structs.ErrBackendConstruction)
	require.True(t, structs.IsErrBackendConstruction(err))
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("b", fakeFactory, fakeFactory))
	require.NoError(t, r.Register("a", fakeFactory, fakeFactory))

	require.Error(t, r.Register("a", fakeFactory, fakeFactory))
	require.Error(t, r.Register("", fakeFactory, fakeFactory))
	require.Error(t, r.Register("Not Basic", fakeFactory, fakeFactory))
	require.Error(t, r.Register("c", nil, fakeFactory))

	require.Equal(t, []string{"a", "b"}, r.Types())
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig("")
	require.NoError(t, err)
	require.Empty(t, config)

	config, err = ParseConfig(`{"path": "/data/mesh", "fail_on": ["execute"]}`)
	require.NoError(t, err)
	require.Equal(t, "/data/mesh", config["path"])
	require.Equal(t, []interface{}{"execute"}, config["fail_on"])

	config, err = ParseConfig("path: /data/mesh\n")
	require.NoError(t, err)
	require.Equal(t, "/data/mesh", config["path"])

	_, err = ParseConfig(`{"path": `)
	require.ErrorIs(t, err, structs.ErrConfigParse)

	_, err = ParseConfig("- a\n- b\n")
	require.True(t, structs.IsErrConfigParse(err))
}
