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
	"fmt"
	"time"
)

func init() {
	RegisterExtension(CategoryReporter, "log-reporter", func() Extension { return new(LogReporter) })
}

// LogReporterConfig is the log-reporter's typed option block.
type LogReporterConfig struct {
	Includes []Status `toml:"includes"`
	Excludes []Status `toml:"excludes"`
}

// LogReporter streams each reported outcome as a structured log line, per
// spec §4.6.
type LogReporter struct {
	logger *Logger
	filter statusFilter
}

// NewLogReporter builds a LogReporter writing through logger.
func NewLogReporter(logger *Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) ConfigStruct() interface{} { return &LogReporterConfig{} }

func (r *LogReporter) Init(config interface{}) error {
	conf, ok := config.(*LogReporterConfig)
	if !ok {
		return fmt.Errorf("log-reporter: unexpected config type %T", config)
	}
	r.filter = newStatusFilter(conf.Includes, conf.Excludes)
	if r.logger == nil {
		r.logger = NewLogger("info")
	}
	return nil
}

func (r *LogReporter) ReportResult(tuple FetchEmitTuple, result PipesResult, elapsed time.Duration) error {
	if !r.filter.allows(result.Status) {
		return nil
	}
	r.logger.Info("tuple result",
		"id", tuple.ID,
		"status", string(result.Status),
		"elapsedMs", elapsed.Milliseconds(),
		"error", result.ErrorMsg,
	)
	return nil
}

func (r *LogReporter) ReportTotalCount(total TotalCountResult) error {
	r.logger.Info("total count", "count", total.Count, "status", string(total.Status))
	return nil
}

func (r *LogReporter) Close() error { return nil }
