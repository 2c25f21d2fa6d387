// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pending

import (
	"fmt"

	"github.com/hashicorp/ams/agent/collective"
)

// Check decides whether a reduction shows every server holding the same
// head.
type Check int

const (
	// CheckExact requires every server to contribute and the smallest and
	// largest task id to equal the local head.
	CheckExact Check = iota

	// CheckSum accepts a round when the task ids sum to head*N. Distinct
	// task ids can satisfy it by coincidence; it exists for compatibility
	// with deployments that relied on it.
	CheckSum
)

func (c Check) String() string {
	switch c {
	case CheckExact:
		return "exact"
	case CheckSum:
		return "sum"
	default:
		return fmt.Sprintf("Check(%d)", int(c))
	}
}

func ParseCheck(s string) (Check, error) {
	switch s {
	case "", "exact":
		return CheckExact, nil
	case "sum":
		return CheckSum, nil
	default:
		return 0, fmt.Errorf("unknown agreement check %q, must be one of: exact, sum", s)
	}
}

// Agreed reports whether the round described by the local contribution and
// the reduction over all size servers authorizes executing the local head.
// A server with nothing to contribute never agrees, and because its missing
// contribution keeps Count below size neither does anyone else.
func Agreed(check Check, local collective.Contribution, r collective.Reduction, size int) bool {
	if !local.Present || r.Count != size || size <= 0 {
		return false
	}
	switch check {
	case CheckSum:
		return r.Sum == local.TaskID*int64(size)
	default:
		return r.Min == local.TaskID && r.Max == local.TaskID
	}
}
