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
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestTableReporter(t *testing.T) (*TableReporter, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "status.db")
	r := &TableReporter{}
	require.NoError(t, r.Init(&TableReporterConfig{
		DriverName:     "sqlite",
		DataSourceName: dsn,
		BatchSize:      2,
		BatchTimeoutMs: 50,
	}))
	return r, dsn
}

func TestTableReporterCreatesSchemaOnInit(t *testing.T) {
	r, dsn := newTestTableReporter(t)
	defer r.Close()

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='tika_status'`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "tika_status", name)
}

func TestTableReporterFlushesOnBatchSize(t *testing.T) {
	r, dsn := newTestTableReporter(t)
	defer r.Close()

	tuple := newFetchEmitTestTuple("doc-1")
	require.NoError(t, r.ReportResult(tuple, PipesResult{Status: StatusEmitSuccess}, time.Millisecond))
	require.NoError(t, r.ReportResult(tuple, PipesResult{Status: StatusEmitSuccess}, time.Millisecond))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tika_status`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestTableReporterStatusFilterExcludesSkipped(t *testing.T) {
	r := &TableReporter{}
	require.NoError(t, r.Init(&TableReporterConfig{
		DriverName:     "sqlite",
		DataSourceName: filepath.Join(t.TempDir(), "status2.db"),
		BatchSize:      1,
		BatchTimeoutMs: 50,
		Excludes:       []Status{StatusSkipped},
	}))
	defer r.Close()

	tuple := newFetchEmitTestTuple("doc-1")
	require.NoError(t, r.ReportResult(tuple, PipesResult{Status: StatusSkipped}, time.Millisecond))
	require.Empty(t, r.pending)
}
