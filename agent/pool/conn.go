// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pool

// RPCType is the first byte written on every connection to a server. It
// selects the protocol spoken for the remainder of the connection.
type RPCType byte

const (
	// RPCSingle serves one net/rpc codec directly on the connection.
	RPCSingle RPCType = 0

	// RPCMultiplexV2 runs a yamux session on the connection with one codec
	// per stream. The pool only dials this type.
	RPCMultiplexV2 RPCType = 4
)

func (t RPCType) String() string {
	switch t {
	case RPCSingle:
		return "single"
	case RPCMultiplexV2:
		return "multiplex"
	default:
		return "unknown"
	}
}
