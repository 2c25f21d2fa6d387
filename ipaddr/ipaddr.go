// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package ipaddr

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-sockaddr/template"
)

// IsAny checks if the given host is an IPv4 or IPv6 ANY address.
func IsAny(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

// ParseSingleIP resolves an address that may be a go-sockaddr template,
// such as {{ GetPrivateIP }}, to exactly one IP.
func ParseSingleIP(tmpl string) (net.IP, error) {
	out, err := template.Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("Unable to parse address template %q: %v", tmpl, err)
	}

	ips := strings.Fields(out)
	switch len(ips) {
	case 0:
		return nil, errors.New("No addresses found, please configure one.")
	case 1:
		ip := net.ParseIP(ips[0])
		if ip == nil {
			return nil, fmt.Errorf("%q is not an IP address", ips[0])
		}
		return ip, nil
	default:
		return nil, fmt.Errorf("Multiple addresses found (%q), please configure one.", out)
	}
}
