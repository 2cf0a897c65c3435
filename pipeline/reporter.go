/***** BEGIN LICENSE BLOCK *****
# This Source Code Form is subject to the terms of the Mozilla Public
# License, v. 2.0. If a copy of the MPL was not distributed with this file,
# You can obtain one at http://mozilla.org/MPL/2.0/.
#
# The Initial Developer of the Original Code is the Mozilla Foundation.
# Portions created by the Initial Developer are Copyright (C) 2012-2015
# the Initial Developer. All Rights Reserved.
#
# ***** END LICENSE BLOCK *****/

package pipeline

import "time"

// Reporter is the contract every reporter extension satisfies: it's a sink
// for per-tuple outcomes, distinct from the emitter (which sinks extracted
// content).
type Reporter interface {
	Extension
	ReportResult(tuple FetchEmitTuple, result PipesResult, elapsed time.Duration) error
	ReportTotalCount(total TotalCountResult) error
	Close() error
}

// statusFilter implements the includes/excludes precedence rule from
// spec §4.6: include-list takes precedence over exclude-list when both are
// provided.
type statusFilter struct {
	includes map[Status]bool
	excludes map[Status]bool
}

func newStatusFilter(includes, excludes []Status) statusFilter {
	f := statusFilter{includes: make(map[Status]bool), excludes: make(map[Status]bool)}
	for _, s := range includes {
		f.includes[s] = true
	}
	for _, s := range excludes {
		f.excludes[s] = true
	}
	return f
}

func (f statusFilter) allows(s Status) bool {
	if len(f.includes) > 0 {
		return f.includes[s]
	}
	if len(f.excludes) > 0 {
		return !f.excludes[s]
	}
	return true
}
