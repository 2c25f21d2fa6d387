// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flags

import (
	"flag"
	"strconv"
	"strings"
	"time"
)

// StringValue provides a flag value that's aware if it has been set.
type StringValue struct {
	v *string
}

var _ flag.Value = (*StringValue)(nil)

// Merge will overlay this value if it has been set.
func (s *StringValue) Merge(onto *string) {
	if s.v != nil {
		*onto = *s.v
	}
}

// Set implements the flag.Value interface.
func (s *StringValue) Set(v string) error {
	if s.v == nil {
		s.v = new(string)
	}
	*(s.v) = v
	return nil
}

// String implements the flag.Value interface.
func (s *StringValue) String() string {
	var current string
	if s.v != nil {
		current = *(s.v)
	}
	return current
}

// Ptr returns the value, or nil if it was never set.
func (s *StringValue) Ptr() *string {
	return s.v
}

// IntValue provides a flag value that's aware if it has been set.
type IntValue struct {
	v *int
}

var _ flag.Value = (*IntValue)(nil)

// Merge will overlay this value if it has been set.
func (i *IntValue) Merge(onto *int) {
	if i.v != nil {
		*onto = *(i.v)
	}
}

// Set implements the flag.Value interface.
func (i *IntValue) Set(v string) error {
	if i.v == nil {
		i.v = new(int)
	}
	var err error
	*(i.v), err = strconv.Atoi(v)
	return err
}

// String implements the flag.Value interface.
func (i *IntValue) String() string {
	var current int
	if i.v != nil {
		current = *(i.v)
	}
	return strconv.Itoa(current)
}

// Ptr returns the value, or nil if it was never set.
func (i *IntValue) Ptr() *int {
	return i.v
}

// BoolValue provides a flag value that's aware if it has been set.
type BoolValue struct {
	v *bool
}

var _ flag.Value = (*BoolValue)(nil)

// IsBoolFlag lets the flag be given without a value.
func (b *BoolValue) IsBoolFlag() bool {
	return true
}

// Set implements the flag.Value interface.
func (b *BoolValue) Set(v string) error {
	if b.v == nil {
		b.v = new(bool)
	}
	var err error
	*(b.v), err = strconv.ParseBool(v)
	return err
}

// String implements the flag.Value interface.
func (b *BoolValue) String() string {
	var current bool
	if b.v != nil {
		current = *(b.v)
	}
	return strconv.FormatBool(current)
}

// Ptr returns the value, or nil if it was never set.
func (b *BoolValue) Ptr() *bool {
	return b.v
}

// DurationValue provides a flag value that's aware if it has been set.
type DurationValue struct {
	v *time.Duration
}

var _ flag.Value = (*DurationValue)(nil)

// Set implements the flag.Value interface.
func (d *DurationValue) Set(v string) error {
	if d.v == nil {
		d.v = new(time.Duration)
	}
	var err error
	*(d.v), err = time.ParseDuration(v)
	return err
}

// String implements the flag.Value interface.
func (d *DurationValue) String() string {
	var current time.Duration
	if d.v != nil {
		current = *(d.v)
	}
	return current.String()
}

// Ptr returns the value, or nil if it was never set.
func (d *DurationValue) Ptr() *time.Duration {
	return d.v
}

// AppendSliceValue implements the flag.Value interface and allows multiple
// calls to the same variable to append a list.
type AppendSliceValue []string

func (s *AppendSliceValue) String() string {
	return strings.Join(*s, ",")
}

func (s *AppendSliceValue) Set(value string) error {
	if *s == nil {
		*s = make([]string, 0, 1)
	}

	*s = append(*s, value)
	return nil
}
