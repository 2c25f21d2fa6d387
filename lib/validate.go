// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package lib

import (
	"fmt"
	"regexp"
)

var validBasicName = regexp.MustCompile("^[a-z0-9_-]+$")

// ValidateBasicName checks that value is a lower case name made of letters,
// digits, underscores and dashes. kind names the value in the error.
func ValidateBasicName(kind, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if !validBasicName.MatchString(value) {
		return fmt.Errorf("%s %q may only contain lower case letters, digits, '_' and '-'", kind, value)
	}
	return nil
}
