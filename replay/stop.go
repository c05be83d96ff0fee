// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package replay

import "github.com/grailbio/logwrites/logwrites"

// StopPolicy decides when a replay loop halts.
type StopPolicy struct {
	// Mask is the set of flags that trigger a stop. If Mask includes
	// logwrites.Mark, only the checkpoint named Mark triggers a stop.
	Mask logwrites.Flags
	// Mark is the checkpoint at which to stop.
	Mark string
	// Limit is the number of applied entries after which to stop.
	// Zero means no limit.
	Limit uint64
}

// Match tells whether entry triggers a stop by its flags.
func (p StopPolicy) Match(entry *logwrites.Entry) bool {
	if entry.Flags&p.Mask == 0 {
		return false
	}
	if p.Mask&logwrites.Mark == 0 {
		return true
	}
	return entry.IsMark() && entry.Mark == p.Mark
}

// Stop tells whether the loop should halt after applying entry, the
// applied'th entry of the session.
func (p StopPolicy) Stop(entry *logwrites.Entry, applied uint64) bool {
	return p.Match(entry) || (p.Limit > 0 && applied >= p.Limit)
}
