// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package sum

import (
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/server"
	"github.com/hashicorp/ams/api"
)

func TestSumCommand_noTabs(t *testing.T) {
	if strings.ContainsRune(New(cli.NewMockUi()).Help(), '\t') {
		t.Fatal("help has tabs")
	}
}

func TestSumCommand_Validation(t *testing.T) {
	cases := map[string]struct {
		args   []string
		output string
	}{
		"no args":     {nil, "two integers"},
		"bad operand": {[]string{"id", "1", "x"}, "Invalid operand"},
		"overflow":    {[]string{"id", "1", "99999999999"}, "Invalid operand"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ui := cli.NewMockUi()
			require.Equal(t, 1, New(ui).Run(tc.args))
			require.Contains(t, ui.ErrorWriter.String(), tc.output)
		})
	}
}

func TestSumCommand(t *testing.T) {
	s := server.NewTestServer(t, nil)
	addr := s.Addr().String()

	client, err := api.NewClient(nil)
	require.NoError(t, err)
	defer client.Close()
	id, err := client.Admin().CreateNode(addr, 0, "", "dummy", "")
	require.NoError(t, err)

	ui := cli.NewMockUi()
	code := New(ui).Run([]string{"-address=" + addr, id.String(), "42", "51"})
	require.Equal(t, 0, code, ui.ErrorWriter.String())
	require.Equal(t, "93", strings.TrimSpace(ui.OutputWriter.String()))
}

func TestSumCommand_NodeNotFound(t *testing.T) {
	s := server.NewTestServer(t, nil)

	ui := cli.NewMockUi()
	code := New(ui).Run([]string{"-address=" + s.Addr().String(), "1b4e28ba-2fa1-11d2-883f-0016d3cca427", "1", "2"})
	require.Equal(t, 1, code)
	require.Contains(t, ui.ErrorWriter.String(), "Node not found")
}
