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

import (
	"sync"
	"time"
)

func init() {
	RegisterExtension(CategoryReporter, "mem-reporter", func() Extension { return NewMemReporter() })
}

// ReportedResult pairs a tuple with the result reported for it, recorded by
// MemReporter for test assertions.
type ReportedResult struct {
	Tuple   FetchEmitTuple
	Result  PipesResult
	Elapsed time.Duration
}

// MemReporter records every call in memory, for use by tests asserting the
// invariants in spec §8 (exactly one result per tuple, etc).
type MemReporter struct {
	mu      sync.Mutex
	Results []ReportedResult
	Totals  []TotalCountResult
	closed  bool
}

// NewMemReporter returns an empty MemReporter.
func NewMemReporter() *MemReporter { return &MemReporter{} }

func (r *MemReporter) ConfigStruct() interface{} { return &ExtensionConfig{} }

func (r *MemReporter) Init(config interface{}) error { return nil }

func (r *MemReporter) ReportResult(tuple FetchEmitTuple, result PipesResult, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, ReportedResult{Tuple: tuple, Result: result, Elapsed: elapsed})
	return nil
}

func (r *MemReporter) ReportTotalCount(total TotalCountResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Totals = append(r.Totals, total)
	return nil
}

func (r *MemReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *MemReporter) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CountByStatus returns how many results were reported with the given
// status.
func (r *MemReporter) CountByStatus(s Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.Results {
		if res.Result.Status == s {
			n++
		}
	}
	return n
}
