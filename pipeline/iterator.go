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

import "errors"

// ErrEndOfStream is returned by Iterator.Next when the source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Iterator produces a lazy, possibly infinite, sequence of FetchEmitTuples.
// Next is only ever called from a single consumer goroutine (spec §4.3); an
// implementation need not be safe for concurrent Next calls, though
// TotalCount may be polled concurrently by the orchestrator's reporting
// loop.
type Iterator interface {
	Extension
	// Next returns the next tuple, or ErrEndOfStream, or a transient error.
	Next() (FetchEmitTuple, error)
	// TotalCount returns the iterator's best-effort upper bound, or
	// TotalCountUnsupported if it can't compute one.
	TotalCount() TotalCountResult
}
