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
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the structured logger shared by every component. It replaces
// the bare LogInfo/LogError globals with leveled, key/value output while
// keeping the same call-site shape (logger.Info(msg), logger.Error(msg)).
type Logger struct {
	base kitlog.Logger
}

// NewLogger builds a Logger writing logfmt lines to stderr, filtered to the
// given minimum level ("debug", "info", "warn", "error").
func NewLogger(minLevel string) *Logger {
	base := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC)
	filtered := level.NewFilter(base, levelOption(minLevel))
	return &Logger{base: filtered}
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) {
	level.Debug(l.base).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	level.Info(l.base).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	level.Warn(l.base).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	level.Error(l.base).Log(append([]interface{}{"msg", msg}, kv...)...)
}

// With returns a Logger with additional key/value pairs attached to every
// subsequent log line, mirroring go-kit/log's With convention.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{base: kitlog.With(l.base, kv...)}
}
