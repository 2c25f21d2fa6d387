// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flags

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"strings"

	text "github.com/kr/text"
)

const maxLineLength int = 72

// Usage renders the help text txt followed by the flags of flags, with
// client connection flags grouped separately from command flags.
func Usage(txt string, flags *flag.FlagSet) string {
	u := &Usager{
		Usage: txt,
		Flags: flags,
	}
	return u.String()
}

type Usager struct {
	Usage string
	Flags *flag.FlagSet
}

func (u *Usager) String() string {
	out := new(bytes.Buffer)
	out.WriteString(strings.TrimSpace(u.Usage))
	out.WriteString("\n")
	out.WriteString("\n")

	if u.Flags != nil {
		var clientFlags *flag.FlagSet
		f := &FlagSetFlags{u.Flags}
		clientFlags, f = f.splitBy(clientFlagNames())

		if countFlags(clientFlags) > 0 {
			printTitle(out, "Client Options")
			clientFlags.VisitAll(func(f *flag.Flag) {
				printFlag(out, f)
			})
		}

		if countFlags(f.FlagSet) > 0 {
			printTitle(out, "Command Options")
			f.VisitAll(func(f *flag.Flag) {
				printFlag(out, f)
			})
		}
	}

	return strings.TrimRight(out.String(), "\n")
}

// FlagSetFlags wraps a flag.FlagSet so it can be split.
type FlagSetFlags struct {
	*flag.FlagSet
}

// splitBy moves the flags named in names into a set of their own. Either
// set may be empty.
func (f *FlagSetFlags) splitBy(names map[string]struct{}) (*flag.FlagSet, *FlagSetFlags) {
	in := flag.NewFlagSet("", flag.ContinueOnError)
	out := flag.NewFlagSet("", flag.ContinueOnError)
	f.VisitAll(func(fl *flag.Flag) {
		if _, ok := names[fl.Name]; ok {
			in.Var(fl.Value, fl.Name, fl.Usage)
		} else {
			out.Var(fl.Value, fl.Name, fl.Usage)
		}
	})
	return in, &FlagSetFlags{out}
}

func countFlags(fs *flag.FlagSet) int {
	n := 0
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n
}

// printTitle prints a consistently-formatted title to the given writer.
func printTitle(w io.Writer, s string) {
	fmt.Fprintf(w, "%s\n\n", s)
}

// printFlag prints a single flag to the given writer.
func printFlag(w io.Writer, f *flag.Flag) {
	example, _ := flag.UnquoteUsage(f)
	if example != "" {
		fmt.Fprintf(w, "  -%s=<%s>\n", f.Name, example)
	} else {
		fmt.Fprintf(w, "  -%s\n", f.Name)
	}

	indented := wrapAtLength(f.Usage, 5)
	fmt.Fprintf(w, "%s\n\n", indented)
}

// wrapAtLength wraps the given text at the maxLineLength, taking into account
// any provided left padding.
func wrapAtLength(s string, pad int) string {
	wrapped := text.Wrap(s, maxLineLength-pad)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
