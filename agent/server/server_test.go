// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/backend/dummy"
	"github.com/hashicorp/ams/agent/collective"
	"github.com/hashicorp/ams/agent/pool"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/sdk/testutil"
	"github.com/hashicorp/ams/types"
)

func testServerConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.NodeName = t.Name()
	config.RPCAddr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	config.Logger = testutil.Logger(t)
	config.RetryInterval = time.Millisecond
	return config
}

func testServerWithConfig(t *testing.T, cb func(*Config)) *Server {
	t.Helper()
	return NewTestServer(t, cb)
}

// testCollective starts size servers, rank 0 first so the others can find
// it.
func testCollective(t *testing.T, size int, cb func(*Config)) []*Server {
	t.Helper()
	servers := make([]*Server, size)
	for rank := 0; rank < size; rank++ {
		servers[rank] = testServerWithConfig(t, func(c *Config) {
			c.NodeName = fmt.Sprintf("%s-rank%d", t.Name(), rank)
			c.Rank = rank
			c.Size = size
			if rank > 0 {
				c.RootAddr = servers[0].Addr().(*net.TCPAddr)
			}
			if cb != nil {
				cb(c)
			}
		})
	}
	return servers
}

func testPool(t *testing.T) *pool.ConnPool {
	p := &pool.ConnPool{Logger: testutil.Logger(t)}
	t.Cleanup(func() { _ = p.Shutdown() })
	return p
}

func createNode(t *testing.T, p *pool.ConnPool, s *Server, token string, config string) types.NodeID {
	t.Helper()
	var out structs.NodeCreateResponse
	err := p.RPC(s.Addr(), "Admin.CreateNode", &structs.NodeCreateRequest{
		Token:       token,
		BackendType: dummy.TypeName,
		Config:      config,
	}, &out)
	require.NoError(t, err)
	require.True(t, out.NodeID.Valid())
	return out.NodeID
}

func dummyNode(t *testing.T, s *Server, id types.NodeID) *dummy.Node {
	t.Helper()
	b, err := s.providers[0].nodes.Lookup(id)
	require.NoError(t, err)
	return b.(*dummy.Node)
}

func pendingStatus(t *testing.T, p *pool.ConnPool, s *Server, id types.NodeID) structs.PendingStatusResponse {
	t.Helper()
	var out structs.PendingStatusResponse
	require.NoError(t, p.RPC(s.Addr(), "Node.PendingStatus", &structs.NodeRequest{NodeID: id}, &out))
	return out
}

func TestServer_ComputeSum(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)
	id := createNode(t, p, s, "", "")

	var out structs.ComputeSumResponse
	require.NoError(t, p.RPC(s.Addr(), "Node.ComputeSum", &structs.ComputeSumRequest{NodeID: id, X: 42, Y: 51}, &out))
	require.Equal(t, int32(93), out.Sum)

	ok, err := p.Ping(s.Addr())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestServer_NodeOperations(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)
	id := createNode(t, p, s, "", `{"path": "/tmp/mesh"}`)

	require.NoError(t, p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{NodeID: id}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.SayHello", &structs.NodeRequest{NodeID: id}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.Open", &structs.NodePayloadRequest{NodeID: id, Payload: "camera: top"}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.Publish", &structs.NodePayloadRequest{NodeID: id, Payload: "points: [1, 2]"}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.Execute", &structs.NodePayloadRequest{NodeID: id, Payload: "- render"}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.PublishAndExecute", &structs.PublishExecuteRequest{NodeID: id, Mesh: "points: []", Actions: "- save"}, &struct{}{}))
	require.NoError(t, p.RPC(s.Addr(), "Node.Close", &structs.NodeRequest{NodeID: id}, &struct{}{}))

	require.Equal(t, []string{"- render", "- save"}, dummyNode(t, s, id).Executions())

	err := p.RPC(s.Addr(), "Node.Publish", &structs.NodePayloadRequest{NodeID: id, Payload: "points: [1,"}, &struct{}{})
	require.True(t, structs.IsErrOperationFailed(err))
}

func TestServer_NodeNotFound(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)

	missing, err := types.GenerateNodeID()
	require.NoError(t, err)

	err = p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{NodeID: missing}, &struct{}{})
	require.True(t, structs.IsErrNodeNotFound(err))
	require.Contains(t, err.Error(), missing.String())

	err = p.RPC(s.Addr(), "Node.ComputeSum", &structs.ComputeSumRequest{NodeID: missing}, &structs.ComputeSumResponse{})
	require.True(t, structs.IsErrNodeNotFound(err))
}

func TestServer_DestroyTwice(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)
	id := createNode(t, p, s, "", "")
	node := dummyNode(t, s, id)

	require.NoError(t, p.RPC(s.Addr(), "Admin.DestroyNode", &structs.NodeAdminRequest{NodeID: id}, &struct{}{}))
	require.True(t, node.Destroyed())

	err := p.RPC(s.Addr(), "Admin.DestroyNode", &structs.NodeAdminRequest{NodeID: id}, &struct{}{})
	require.True(t, structs.IsErrNodeNotFound(err))
}

func TestServer_CloseNodeDoesNotDestroy(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)
	id := createNode(t, p, s, "", "")
	node := dummyNode(t, s, id)

	require.NoError(t, p.RPC(s.Addr(), "Admin.CloseNode", &structs.NodeAdminRequest{NodeID: id}, &struct{}{}))
	require.False(t, node.Destroyed())

	err := p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{NodeID: id}, &struct{}{})
	require.True(t, structs.IsErrNodeNotFound(err))
}

func TestServer_InvalidToken(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.Providers = []ProviderConfig{{ID: 0, Token: "s3cret"}}
	})
	p := testPool(t)
	id := createNode(t, p, s, "s3cret", "")
	table := s.providers[0].nodes

	for _, token := range []string{"", "wrong"} {
		err := p.RPC(s.Addr(), "Admin.CreateNode", &structs.NodeCreateRequest{Token: token, BackendType: dummy.TypeName}, &structs.NodeCreateResponse{})
		require.True(t, structs.IsErrInvalidToken(err))

		err = p.RPC(s.Addr(), "Admin.OpenNode", &structs.NodeCreateRequest{Token: token, BackendType: dummy.TypeName, Config: "path: /x"}, &structs.NodeCreateResponse{})
		require.True(t, structs.IsErrInvalidToken(err))

		err = p.RPC(s.Addr(), "Admin.CloseNode", &structs.NodeAdminRequest{Token: token, NodeID: id}, &struct{}{})
		require.True(t, structs.IsErrInvalidToken(err))

		err = p.RPC(s.Addr(), "Admin.DestroyNode", &structs.NodeAdminRequest{Token: token, NodeID: id}, &struct{}{})
		require.True(t, structs.IsErrInvalidToken(err))

		err = p.RPC(s.Addr(), "Status.Shutdown", &structs.ShutdownRequest{Token: token}, &struct{}{})
		require.True(t, structs.IsErrInvalidToken(err))
	}

	require.Equal(t, []types.NodeID{id}, table.IDs())
	require.False(t, dummyNode(t, s, id).Destroyed())

	// node operations are not token gated
	var out structs.ComputeSumResponse
	require.NoError(t, p.RPC(s.Addr(), "Node.ComputeSum", &structs.ComputeSumRequest{NodeID: id, X: 1, Y: 2}, &out))
}

func TestServer_ConstructionErrors(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)

	err := p.RPC(s.Addr(), "Admin.CreateNode", &structs.NodeCreateRequest{BackendType: "ascent"}, &structs.NodeCreateResponse{})
	require.True(t, structs.IsErrUnknownBackendType(err))

	err = p.RPC(s.Addr(), "Admin.CreateNode", &structs.NodeCreateRequest{BackendType: dummy.TypeName, Config: `{"path": `}, &structs.NodeCreateResponse{})
	require.True(t, structs.IsErrConfigParse(err))

	err = p.RPC(s.Addr(), "Admin.OpenNode", &structs.NodeCreateRequest{BackendType: dummy.TypeName}, &structs.NodeCreateResponse{})
	require.True(t, structs.IsErrBackendConstruction(err))

	require.Zero(t, s.providers[0].nodes.Len())
}

func TestServer_Providers(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.Providers = []ProviderConfig{{ID: 0}, {ID: 7, Token: "seven"}}
	})
	p := testPool(t)

	var out structs.NodeCreateResponse
	require.NoError(t, p.RPC(s.Addr(), "Admin.CreateNode", &structs.NodeCreateRequest{
		ProviderID:  7,
		Token:       "seven",
		BackendType: dummy.TypeName,
	}, &out))

	// the node only exists in provider 7
	err := p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{NodeID: out.NodeID}, &struct{}{})
	require.True(t, structs.IsErrNodeNotFound(err))
	require.NoError(t, p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{ProviderID: 7, NodeID: out.NodeID}, &struct{}{}))

	err = p.RPC(s.Addr(), "Node.Check", &structs.NodeRequest{ProviderID: 3, NodeID: out.NodeID}, &struct{}{})
	require.True(t, structs.IsErrProviderNotFound(err))
}

func TestServer_RemoteShutdown(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.Providers = []ProviderConfig{{ID: 0, Token: "s3cret"}}
	})
	p := testPool(t)
	id := createNode(t, p, s, "s3cret", "")
	node := dummyNode(t, s, id)

	require.NoError(t, p.RPC(s.Addr(), "Status.Shutdown", &structs.ShutdownRequest{Token: "s3cret"}, &struct{}{}))

	select {
	case <-s.ShutdownCh():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	require.Eventually(t, node.Destroyed, 5*time.Second, 10*time.Millisecond)
}

func submit(t *testing.T, p *pool.ConnPool, s *Server, id types.NodeID, taskID, timestamp int64) {
	t.Helper()
	mesh := "points: [0, 1]"
	require.NoError(t, p.RPC(s.Addr(), "Node.OpenPublishExecute", &structs.SubmitRequest{
		NodeID:      id,
		OpenOptions: "camera: front",
		Mesh:        mesh,
		MeshSize:    uint64(len(mesh)),
		Actions:     fmt.Sprintf("- render: %d", taskID),
		TaskID:      taskID,
		Timestamp:   timestamp,
	}, &struct{}{}))
}

func TestServer_AgreementIdenticalRequests(t *testing.T) {
	servers := testCollective(t, 3, nil)
	p := testPool(t)

	ids := make([]types.NodeID, len(servers))
	for i, s := range servers {
		ids[i] = createNode(t, p, s, "", "")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(servers))
	for i, s := range servers {
		wg.Add(1)
		go func(i int, s *Server) {
			defer wg.Done()
			errs[i] = p.RPC(s.Addr(), "Node.OpenPublishExecute", &structs.SubmitRequest{
				NodeID:    ids[i],
				Actions:   "- render: 11",
				TaskID:    11,
				Timestamp: 1000,
			}, &struct{}{})
		}(i, s)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for i, s := range servers {
		node := dummyNode(t, s, ids[i])
		require.Eventually(t, func() bool { return len(node.Executions()) == 1 }, 10*time.Second, 10*time.Millisecond)
		require.Equal(t, []string{"- render: 11"}, node.Executions())

		status := pendingStatus(t, p, s, ids[i])
		require.Zero(t, status.QueueLength)
		require.Equal(t, uint64(1), status.Executed)
	}
}

func TestServer_AgreementMismatchedRequests(t *testing.T) {
	servers := testCollective(t, 3, nil)
	p := testPool(t)

	for i, s := range servers {
		id := createNode(t, p, s, "", "")
		submit(t, p, s, id, int64(i+1), 1000)
	}

	for _, s := range servers {
		id := s.providers[0].nodes.IDs()[0]
		require.Eventually(t, func() bool {
			var out structs.PendingStatusResponse
			err := p.RPC(s.Addr(), "Node.PendingStatus", &structs.NodeRequest{NodeID: id}, &out)
			return err == nil && out.Disagreed == 1
		}, 10*time.Second, 10*time.Millisecond)

		status := pendingStatus(t, p, s, id)
		require.Equal(t, 1, status.QueueLength)
		require.Zero(t, status.Executed)
		require.Empty(t, dummyNode(t, s, id).Executions())
	}
}

func TestServer_DrainInTimestampOrder(t *testing.T) {
	servers := testCollective(t, 3, func(c *Config) {
		c.EagerRounds = false
	})
	p := testPool(t)

	ids := make([]types.NodeID, len(servers))
	for i, s := range servers {
		ids[i] = createNode(t, p, s, "", "")
		for _, ts := range []int64{3, 1, 2} {
			submit(t, p, s, ids[i], ts, ts)
		}
		require.Equal(t, 3, pendingStatus(t, p, s, ids[i]).QueueLength)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(servers))
	for i, s := range servers {
		wg.Add(1)
		go func(i int, s *Server) {
			defer wg.Done()
			errs[i] = p.RPC(s.Addr(), "Node.ExecutePendingRequests", &structs.NodeRequest{NodeID: ids[i]}, &struct{}{})
		}(i, s)
	}
	wg.Wait()

	for i, s := range servers {
		require.NoError(t, errs[i])
		require.Equal(t, []string{"- render: 1", "- render: 2", "- render: 3"}, dummyNode(t, s, ids[i]).Executions())
		status := pendingStatus(t, p, s, ids[i])
		require.Zero(t, status.QueueLength)
		require.Equal(t, uint64(3), status.Rounds)
	}
}

func TestServer_AgreedRequestForRemovedNodeIsDiscarded(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.EagerRounds = false
	})
	p := testPool(t)
	keep := createNode(t, p, s, "", "")
	gone := createNode(t, p, s, "", "")

	submit(t, p, s, gone, 1, 1)
	require.NoError(t, p.RPC(s.Addr(), "Admin.DestroyNode", &structs.NodeAdminRequest{NodeID: gone}, &struct{}{}))

	require.NoError(t, p.RPC(s.Addr(), "Node.ExecutePendingRequests", &structs.NodeRequest{NodeID: keep}, &struct{}{}))
	status := pendingStatus(t, p, s, keep)
	require.Equal(t, uint64(1), status.Discarded)
	require.Zero(t, status.QueueLength)
}

func TestServer_ExecutionFailureConsumesSlot(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.EagerRounds = false
	})
	p := testPool(t)
	id := createNode(t, p, s, "", `{"fail_on": ["publish"]}`)

	submit(t, p, s, id, 1, 1)
	submit(t, p, s, id, 2, 2)
	require.NoError(t, p.RPC(s.Addr(), "Node.ExecutePendingRequests", &structs.NodeRequest{NodeID: id}, &struct{}{}))

	status := pendingStatus(t, p, s, id)
	require.Equal(t, uint64(2), status.ExecuteFailed)
	require.Zero(t, status.QueueLength)
}

func TestServer_MeshSizeMismatchFailsExecution(t *testing.T) {
	s := testServerWithConfig(t, func(c *Config) {
		c.EagerRounds = false
	})
	p := testPool(t)
	id := createNode(t, p, s, "", "")

	require.NoError(t, p.RPC(s.Addr(), "Node.OpenPublishExecute", &structs.SubmitRequest{
		NodeID:    id,
		Mesh:      "points: [0, 1]",
		MeshSize:  99,
		Actions:   "- render",
		TaskID:    1,
		Timestamp: 1,
	}, &struct{}{}))
	submit(t, p, s, id, 2, 2)
	require.NoError(t, p.RPC(s.Addr(), "Node.ExecutePendingRequests", &structs.NodeRequest{NodeID: id}, &struct{}{}))

	status := pendingStatus(t, p, s, id)
	require.Equal(t, uint64(1), status.ExecuteFailed)
	require.Equal(t, uint64(1), status.Executed)
	require.Equal(t, []string{"- render: 2"}, dummyNode(t, s, id).Executions())
}

func TestServer_SubmitToMissingNode(t *testing.T) {
	s := testServerWithConfig(t, nil)
	p := testPool(t)

	missing, err := types.GenerateNodeID()
	require.NoError(t, err)
	err = p.RPC(s.Addr(), "Node.OpenPublishExecute", &structs.SubmitRequest{NodeID: missing, TaskID: 1}, &struct{}{})
	require.True(t, structs.IsErrNodeNotFound(err))
	require.Zero(t, s.providers[0].queue.Len())
}

func TestServer_CollectiveOnlyOnRoot(t *testing.T) {
	servers := testCollective(t, 2, nil)
	p := testPool(t)

	err := p.RPC(servers[1].Addr(), "Collective.Allreduce", &collective.AllreduceRequest{Size: 2}, &collective.AllreduceResponse{})
	require.True(t, structs.IsErrNotRendezvousRoot(err))
	err = p.RPC(servers[1].Addr(), "Collective.Withdraw", &collective.WithdrawRequest{Size: 2}, &collective.WithdrawResponse{})
	require.True(t, structs.IsErrNotRendezvousRoot(err))

	// the root refuses a contribution for a round rank 1 withdrew from
	var reply collective.WithdrawResponse
	err = p.RPC(servers[0].Addr(), "Collective.Withdraw", &collective.WithdrawRequest{Group: "test", Round: 1, Rank: 1, Size: 2}, &reply)
	require.NoError(t, err)
	require.False(t, reply.Completed)
	err = p.RPC(servers[0].Addr(), "Collective.Allreduce", &collective.AllreduceRequest{Group: "test", Round: 1, Rank: 1, Size: 2}, &collective.AllreduceResponse{})
	require.Error(t, err)
	require.Contains(t, err.Error(), collective.ErrRoundAbandoned.Error())
}
