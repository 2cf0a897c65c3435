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

func init() {
	RegisterExtension(CategoryReporter, "noop-reporter", func() Extension { return new(NoopReporter) })
}

// NoopReporter discards everything. Useful for load tests and for config
// files that don't care about per-tuple status.
type NoopReporter struct{}

func (r *NoopReporter) ConfigStruct() interface{} { return &ExtensionConfig{} }
func (r *NoopReporter) Init(config interface{}) error { return nil }
func (r *NoopReporter) ReportResult(FetchEmitTuple, PipesResult, time.Duration) error { return nil }
func (r *NoopReporter) ReportTotalCount(TotalCountResult) error                       { return nil }
func (r *NoopReporter) Close() error                                                  { return nil }
