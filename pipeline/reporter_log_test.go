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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogReporterExcludesFilteredStatus(t *testing.T) {
	r := &LogReporter{}
	require.NoError(t, r.Init(&LogReporterConfig{Excludes: []Status{StatusSkipped}}))

	tuple := newFetchEmitTestTuple("doc-1")
	require.NoError(t, r.ReportResult(tuple, PipesResult{Status: StatusSkipped}, time.Millisecond))
	require.NoError(t, r.ReportResult(tuple, PipesResult{Status: StatusEmitSuccess}, time.Millisecond))
}

func TestLogReporterDefaultsToInfoLoggerWhenNoneGiven(t *testing.T) {
	r := &LogReporter{}
	require.NoError(t, r.Init(&LogReporterConfig{}))
	require.NotNil(t, r.logger)
}

func TestLogReporterReportTotalCountDoesNotError(t *testing.T) {
	r := NewLogReporter(NewLogger("error"))
	require.NoError(t, r.Init(&LogReporterConfig{}))
	require.NoError(t, r.ReportTotalCount(TotalCountResult{Count: 3, Status: TotalCountCompleted}))
}
