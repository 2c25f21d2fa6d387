// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateBasicName(t *testing.T) {
	for _, ok := range []string{"dummy", "ascent-v2", "my_backend", "x1"} {
		require.NoError(t, ValidateBasicName("backend type", ok), ok)
	}
	for _, bad := range []string{"", "Dummy", "has space", "dot.ted"} {
		err := ValidateBasicName("backend type", bad)
		require.Error(t, err, bad)
		require.Contains(t, err.Error(), "backend type")
	}
}
