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
	"fmt"
	"strings"
	"sync"
	"time"
)

func init() {
	RegisterExtension(CategoryReporter, "table-reporter", func() Extension { return new(TableReporter) })
}

// TableReporterConfig is the table-reporter's typed option block. DriverName
// must name a database/sql driver registered via blank import in main
// (e.g. "sqlite3", "postgres") — the pipes core has no opinion on which.
type TableReporterConfig struct {
	DriverName      string   `toml:"driverName"`
	DataSourceName  string   `toml:"dataSourceName"`
	TableName       string   `toml:"tableName"`
	BatchSize       int      `toml:"batchSize"`
	BatchTimeoutMs  int64    `toml:"batchTimeoutMs"`
	Includes        []Status `toml:"includes"`
	Excludes        []Status `toml:"excludes"`
}

type tableRow struct {
	fetchKey   string
	status     string
	elapsedMs  int64
	reportedAt time.Time
}

// TableReporter batches per-tuple outcomes into a `tika_status` table (spec
// §6), creating the schema on first use if absent. It is built on
// database/sql so it accepts any registered driver; cmd/tikapipes blank-
// imports modernc.org/sqlite as the concrete default (see DESIGN.md), the
// one pure-Go SQL driver found in the retrieval pack.
type TableReporter struct {
	conf   TableReporterConfig
	db     *sql.DB
	filter statusFilter

	mu      sync.Mutex
	pending []tableRow
	closeCh chan struct{}
	doneCh  chan struct{}
}

func (r *TableReporter) ConfigStruct() interface{} { return &TableReporterConfig{} }

func (r *TableReporter) Init(config interface{}) error {
	conf, ok := config.(*TableReporterConfig)
	if !ok {
		return fmt.Errorf("table-reporter: unexpected config type %T", config)
	}
	if conf.TableName == "" {
		conf.TableName = "tika_status"
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = 100
	}
	if conf.BatchTimeoutMs <= 0 {
		conf.BatchTimeoutMs = 1000
	}
	r.conf = *conf
	r.filter = newStatusFilter(conf.Includes, conf.Excludes)

	db, err := sql.Open(conf.DriverName, conf.DataSourceName)
	if err != nil {
		return fmt.Errorf("table-reporter: open: %w", err)
	}
	schema := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (fetch_key TEXT, status TEXT, elapsed_ms BIGINT, reported_at TIMESTAMP)`,
		r.conf.TableName)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("table-reporter: create schema: %w", err)
	}
	r.db = db
	r.closeCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.drain()
	return nil
}

func (r *TableReporter) drain() {
	defer close(r.doneCh)
	ticker := time.NewTicker(time.Duration(r.conf.BatchTimeoutMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.closeCh:
			r.flush()
			return
		}
	}
}

func (r *TableReporter) flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	rows := r.pending
	r.pending = nil
	r.mu.Unlock()

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)
	for _, row := range rows {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, row.fetchKey, row.status, row.elapsedMs, row.reportedAt)
	}
	query := fmt.Sprintf("INSERT INTO %s (fetch_key, status, elapsed_ms, reported_at) VALUES %s",
		r.conf.TableName, strings.Join(placeholders, ", "))
	_, _ = r.db.Exec(query, args...)
}

func (r *TableReporter) ReportResult(tuple FetchEmitTuple, result PipesResult, elapsed time.Duration) error {
	if !r.filter.allows(result.Status) {
		return nil
	}
	r.mu.Lock()
	r.pending = append(r.pending, tableRow{
		fetchKey:   tuple.FetchKey.Key,
		status:     string(result.Status),
		elapsedMs:  elapsed.Milliseconds(),
		reportedAt: time.Now(),
	})
	flushNow := len(r.pending) >= r.conf.BatchSize
	r.mu.Unlock()
	if flushNow {
		r.flush()
	}
	return nil
}

func (r *TableReporter) ReportTotalCount(total TotalCountResult) error { return nil }

func (r *TableReporter) Close() error {
	close(r.closeCh)
	<-r.doneCh
	return r.db.Close()
}
