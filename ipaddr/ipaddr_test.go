// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package ipaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAny(t *testing.T) {
	for _, host := range []string{"0.0.0.0", "::", "[::]"} {
		require.True(t, IsAny(host), host)
	}
	for _, host := range []string{"127.0.0.1", "::1", "example.com", ""} {
		require.False(t, IsAny(host), host)
	}
}

func TestParseSingleIP(t *testing.T) {
	ip, err := ParseSingleIP("127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", ip.String())

	ip, err = ParseSingleIP(`{{ "10.1.2.3" }}`)
	require.NoError(t, err)
	require.Equal(t, "10.1.2.3", ip.String())

	_, err = ParseSingleIP("127.0.0.1 127.0.0.2")
	require.Error(t, err)

	_, err = ParseSingleIP("not-an-ip")
	require.Error(t, err)

	_, err = ParseSingleIP("{{ bogus")
	require.Error(t, err)
}
