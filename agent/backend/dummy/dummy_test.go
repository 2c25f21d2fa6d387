// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package dummy

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/sdk/testutil"
)

func testNode(t *testing.T, config map[string]interface{}) *Node {
	t.Helper()
	b, err := New(testutil.Logger(t), config)
	require.NoError(t, err)
	return b.(*Node)
}

func TestDummy_Register(t *testing.T) {
	r := backend.NewRegistry(testutil.Logger(t))
	require.NoError(t, Register(r))
	require.Equal(t, []string{TypeName}, r.Types())

	_, err := r.Create(TypeName, map[string]interface{}{"path": "/tmp/x"})
	require.NoError(t, err)

	// opening requires a path
	_, err = r.Open(TypeName, nil)
	require.ErrorIs(t, err, structs.ErrBackendConstruction)

	_, err = r.Create(TypeName, map[string]interface{}{"colour": "red"})
	require.ErrorIs(t, err, structs.ErrBackendConstruction)

	_, err = r.Create(TypeName, map[string]interface{}{"fail_on": []interface{}{"explode"}})
	require.ErrorIs(t, err, structs.ErrBackendConstruction)
}

func TestDummy_SayHello(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf})
	b, err := New(logger, nil)
	require.NoError(t, err)

	b.SayHello()
	require.Contains(t, buf.String(), "Hello World")
}

func TestDummy_ComputeSum(t *testing.T) {
	n := testNode(t, nil)
	sum, err := n.ComputeSum(42, 51)
	require.NoError(t, err)
	require.Equal(t, int32(93), sum)
}

func TestDummy_OpenPublishExecute(t *testing.T) {
	n := testNode(t, nil)

	require.NoError(t, n.OpenPublishExecute("camera: front", "vertices: [0, 1, 2]", 19, "- render"))
	require.Equal(t, []Entry{
		{Op: OpOpen, Detail: "camera: front"},
		{Op: OpPublish, Detail: "vertices: [0, 1, 2]"},
		{Op: OpExecute, Detail: "- render"},
		{Op: OpClose},
	}, n.Journal())
	require.Equal(t, []string{"- render"}, n.Executions())
}

func TestDummy_OpenPublishExecute_MeshSizeMismatch(t *testing.T) {
	n := testNode(t, nil)

	err := n.OpenPublishExecute("", "a: 1", 5, "- render")
	require.Error(t, err)
	require.Contains(t, err.Error(), "mesh size mismatch")
	require.Empty(t, n.Journal())
	require.Empty(t, n.Executions())
}

func TestDummy_OpenPublishExecute_ClosesAfterFailure(t *testing.T) {
	n := testNode(t, map[string]interface{}{"fail_on": []interface{}{OpExecute}})

	err := n.OpenPublishExecute("", "a: 1", 0, "- render")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dummy execute failure")

	journal := n.Journal()
	require.Len(t, journal, 3)
	require.Equal(t, OpClose, journal[2].Op)
	require.Empty(t, n.Executions())
}

func TestDummy_InvalidPayload(t *testing.T) {
	n := testNode(t, nil)
	require.Error(t, n.Publish("a: [1, 2"))
	require.Error(t, n.Open("- not\n- a map\n"))
	require.NoError(t, n.PublishAndExecute("a: 1", "- render"))
}

func TestDummy_Destroy(t *testing.T) {
	n := testNode(t, map[string]interface{}{"path": "/tmp/mesh"})
	require.False(t, n.Destroyed())
	require.NoError(t, n.Destroy())
	require.True(t, n.Destroyed())

	failing := testNode(t, map[string]interface{}{"fail_on": []interface{}{OpDestroy}})
	require.Error(t, failing.Destroy())
	require.False(t, failing.Destroyed())
}
