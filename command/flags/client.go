// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flags

import (
	"flag"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"

	"github.com/hashicorp/ams/agent/server"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/api"
	"github.com/hashicorp/ams/types"
)

const (
	// EnvAddress sets the default server address.
	EnvAddress = "AMS_ADDRESS"

	// EnvToken sets the default provider token.
	EnvToken = "AMS_TOKEN"
)

// ClientFlags are the flags shared by every command that talks to a
// server.
type ClientFlags struct {
	address  StringValue
	provider IntValue
	token    StringValue
}

func clientFlagNames() map[string]struct{} {
	return map[string]struct{}{
		"address":  {},
		"provider": {},
		"token":    {},
	}
}

// Flags returns the flag set to merge into a command's flags.
func (f *ClientFlags) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.Var(&f.address, "address",
		"The address of the AMS server as host:port. This can also be specified "+
			"via the "+EnvAddress+" environment variable. The default value is "+
			defaultAddress()+".")
	fs.Var(&f.provider, "provider",
		"The id of the provider instance on the server. The default value is 0.")
	fs.Var(&f.token, "token",
		"The security token of the provider, required for node create, open, "+
			"close and destroy and for shutdown when the provider has one. This can "+
			"also be specified via the "+EnvToken+" environment variable.")
	return fs
}

func defaultAddress() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(server.DefaultRPCPort))
}

// Address returns the server address from the flag, the environment or the
// default, in that order.
func (f *ClientFlags) Address() string {
	if v := f.address.Ptr(); v != nil {
		return *v
	}
	if v := os.Getenv(EnvAddress); v != "" {
		return v
	}
	return defaultAddress()
}

func (f *ClientFlags) Token() string {
	if v := f.token.Ptr(); v != nil {
		return *v
	}
	return os.Getenv(EnvToken)
}

func (f *ClientFlags) Provider() (structs.ProviderID, error) {
	v := f.provider.Ptr()
	if v == nil {
		return 0, nil
	}
	if *v < 0 || *v > math.MaxUint16 {
		return 0, fmt.Errorf("provider id %d is out of range", *v)
	}
	return structs.ProviderID(*v), nil
}

// APIClient returns a client configured from the flags.
func (f *ClientFlags) APIClient() (*api.Client, error) {
	if _, err := f.Provider(); err != nil {
		return nil, err
	}
	return api.NewClient(api.DefaultConfig())
}

// NodeHandle parses id and returns a checked handle to it on the
// configured server and provider.
func (f *ClientFlags) NodeHandle(client *api.Client, id string) (*api.NodeHandle, error) {
	nodeID, err := types.ParseNodeID(id)
	if err != nil {
		return nil, err
	}
	provider, err := f.Provider()
	if err != nil {
		return nil, err
	}
	return client.MakeNodeHandle(f.Address(), provider, nodeID, true)
}
