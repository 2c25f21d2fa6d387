// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package types

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// NodeID is the 128-bit identifier of a backend node, stored in its
// canonical UUID text form so it can be used directly as a map key and
// carried over RPC without a custom encoder.
type NodeID string

// GenerateNodeID returns a new random NodeID.
func GenerateNodeID() (NodeID, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("failed to generate node id: %w", err)
	}
	return NodeID(id), nil
}

// ParseNodeID validates s and returns it in canonical form.
func ParseNodeID(s string) (NodeID, error) {
	buf, err := uuid.ParseUUID(s)
	if err != nil {
		return "", fmt.Errorf("invalid node id %q: %w", s, err)
	}
	canonical, err := uuid.FormatUUID(buf)
	if err != nil {
		return "", err
	}
	return NodeID(canonical), nil
}

func (id NodeID) String() string {
	return string(id)
}

// Valid reports whether id holds a well-formed UUID.
func (id NodeID) Valid() bool {
	_, err := uuid.ParseUUID(string(id))
	return err == nil
}
