// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/hashicorp/ams/types"
)

// ProviderID selects one provider instance hosted by a server. Every
// provider owns its own node table, pending queue and security token.
type ProviderID uint16

// ReductionGroup names the collective group the provider's agreement
// rounds are reduced in.
func (id ProviderID) ReductionGroup() string {
	return fmt.Sprintf("provider-%d", id)
}

// NodeCreateRequest is used by Admin.CreateNode and Admin.OpenNode.
type NodeCreateRequest struct {
	ProviderID  ProviderID
	Token       string
	BackendType string

	// Config is a JSON or YAML document handed to the backend constructor.
	Config string
}

type NodeCreateResponse struct {
	NodeID types.NodeID
}

// NodeAdminRequest is used by the token gated Admin.CloseNode and
// Admin.DestroyNode.
type NodeAdminRequest struct {
	ProviderID ProviderID
	Token      string
	NodeID     types.NodeID
}

// NodeRequest addresses a single node without a payload.
type NodeRequest struct {
	ProviderID ProviderID
	NodeID     types.NodeID
}

// NodePayloadRequest carries one serialized payload for Node.Open,
// Node.Publish and Node.Execute.
type NodePayloadRequest struct {
	ProviderID ProviderID
	NodeID     types.NodeID
	Payload    string
}

type PublishExecuteRequest struct {
	ProviderID ProviderID
	NodeID     types.NodeID
	Mesh       string
	Actions    string
}

type ComputeSumRequest struct {
	ProviderID ProviderID
	NodeID     types.NodeID
	X          int32
	Y          int32
}

type ComputeSumResponse struct {
	Sum int32
}

// SubmitRequest is an open-publish-execute submission. It is acknowledged
// as soon as it is queued and executed once every server agrees on it.
type SubmitRequest struct {
	ProviderID  ProviderID
	NodeID      types.NodeID
	OpenOptions string
	Mesh        string
	MeshSize    uint64
	Actions     string
	TaskID      int64
	Timestamp   int64
}

// PendingStatusResponse reports the state of a provider's pending queue
// and agreement protocol.
type PendingStatusResponse struct {
	QueueLength   int
	Rounds        uint64
	Agreed        uint64
	Disagreed     uint64
	Executed      uint64
	ExecuteFailed uint64
	Discarded     uint64
}

type ShutdownRequest struct {
	ProviderID ProviderID
	Token      string
}

// MsgpackHandle is a shared handle for encoding/decoding msgpack payloads
var MsgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.RawToString = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}()
