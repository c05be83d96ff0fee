// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package logwrites

import (
	"fmt"
	"strings"

	"github.com/grailbio/logwrites/limitbuf"
)

// Flags is the bitmask describing an entry.
type Flags uint64

const (
	// Flush marks a cache flush.
	Flush Flags = 1 << iota
	// FUA marks a forced-unit-access write.
	FUA
	// Discard marks a discard of the entry's range. No payload follows.
	Discard
	// Mark marks a named checkpoint.
	Mark
	// Metadata marks a filesystem metadata write.
	Metadata
)

// MaxFlagsLen bounds the length of the string returned by Flags.String.
const MaxFlagsLen = 128

var flagNames = []struct {
	flag Flags
	name string
}{
	{Flush, "FLUSH"},
	{FUA, "FUA"},
	{Discard, "DISCARD"},
	{Mark, "MARK"},
	{Metadata, "METADATA"},
}

// String renders f as a |-separated list of flag names, e.g.
// "FLUSH|FUA". Unknown bits are rendered as "UNKNOWN.<hex>" and a zero
// value as "None". The result is at most MaxFlagsLen bytes, plus a
// truncation marker.
func (f Flags) String() string {
	if f == 0 {
		return "None"
	}
	b := limitbuf.New(MaxFlagsLen)
	sep := func() {
		if b.Len() > 0 {
			b.WriteString("|")
		}
	}
	for _, n := range flagNames {
		if f&n.flag == 0 {
			continue
		}
		sep()
		b.WriteString(n.name)
		f &^= n.flag
	}
	if f != 0 {
		sep()
		fmt.Fprintf(b, "UNKNOWN.%#x", uint64(f))
	}
	return b.String()
}

// ParseFlags parses a |-separated list of flag names, as rendered by
// Flags.String. Names are case-insensitive.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
Next:
	for _, name := range strings.Split(s, "|") {
		name = strings.TrimSpace(name)
		for _, n := range flagNames {
			if strings.EqualFold(name, n.name) {
				f |= n.flag
				continue Next
			}
		}
		return 0, fmt.Errorf("unknown flag %q", name)
	}
	return f, nil
}
