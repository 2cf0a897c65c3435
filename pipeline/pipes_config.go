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

// PipesConfig is the reserved `[pipes]` TOML block from spec §6.
type PipesConfig struct {
	NumWorkers             int    `toml:"numWorkers"`
	MaxForkedChildren      int    `toml:"maxForkedChildren"`
	ParseTimeoutMillis     int64  `toml:"parseTimeoutMillis"`
	ClientTimeoutMillis    int64  `toml:"clientTimeoutMillis"`
	PingIntervalMillis     int64  `toml:"pingIntervalMillis"`
	PingTimeoutMillis      int64  `toml:"pingTimeoutMillis"`
	ShutdownGraceMillis    int64  `toml:"shutdownGraceMillis"`
	WorkQueueCapacity      int    `toml:"workQueueCapacity"`
	EmitBatchSize          int    `toml:"emitBatchSize"`
	EmitBatchTimeoutMillis int64  `toml:"emitBatchTimeoutMillis"`
	MaxEmbeddedDepth       int    `toml:"maxEmbeddedDepth"`
	MemoryHighWaterMark    int64  `toml:"memoryHighWaterMark"`
	InlineThresholdBytes   int64  `toml:"inlineThresholdBytes"`
	TempDir                string `toml:"tempDir"`
	TempRetentionMillis    int64  `toml:"tempRetentionMillis"`
	FetchRetries           int    `toml:"fetchRetries"`
	EmitRetries            int    `toml:"emitRetries"`
	ChildRespawnMillis     int64  `toml:"childRespawnMillis"`
	UseForkedWorkers       bool   `toml:"useForkedWorkers"`
	LogLevel               string `toml:"logLevel"`

	// Iterator and Reporter name the single iterator/reporter instance id
	// that drives a run. Fetchers and emitters are addressed per-tuple via
	// FetchKey.FetcherID/EmitKey.EmitterID, but the iterator and reporter
	// are run-wide singletons, so the config must pick exactly one of
	// each out of whatever was declared under [iterators]/[reporters].
	Iterator string `toml:"iterator"`
	Reporter string `toml:"reporter"`
}

// DefaultPipesConfig mirrors the teacher's DefaultGlobals pattern: a
// fully-populated default so a config file only needs to override what it
// cares about.
func DefaultPipesConfig() PipesConfig {
	return PipesConfig{
		NumWorkers:             4,
		MaxForkedChildren:      4,
		ParseTimeoutMillis:     60000,
		ClientTimeoutMillis:    10000,
		PingIntervalMillis:     5000,
		PingTimeoutMillis:      15000,
		ShutdownGraceMillis:    30000,
		WorkQueueCapacity:      8, // LoadConfig clears it so ResolveDefaults derives numWorkers*2
		EmitBatchSize:          100,
		EmitBatchTimeoutMillis: 1000,
		MaxEmbeddedDepth:       20,
		MemoryHighWaterMark:    1 << 30,
		InlineThresholdBytes:   1 << 20,
		TempDir:                "",
		TempRetentionMillis:    int64(24 * time.Hour / time.Millisecond),
		FetchRetries:           3,
		EmitRetries:            3,
		ChildRespawnMillis:     5000,
		UseForkedWorkers:       false,
		LogLevel:               "info",
	}
}

// ResolveDefaults fills in derived defaults (work queue capacity defaults to
// 2x worker count, per spec §4.7) when the config left them unset.
func (c *PipesConfig) ResolveDefaults() {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	if c.WorkQueueCapacity <= 0 {
		c.WorkQueueCapacity = c.NumWorkers * 2
	}
	if c.MaxForkedChildren <= 0 {
		c.MaxForkedChildren = c.NumWorkers
	}
}

func (c PipesConfig) parseTimeout() time.Duration  { return time.Duration(c.ParseTimeoutMillis) * time.Millisecond }
func (c PipesConfig) clientTimeout() time.Duration { return time.Duration(c.ClientTimeoutMillis) * time.Millisecond }
func (c PipesConfig) pingInterval() time.Duration  { return time.Duration(c.PingIntervalMillis) * time.Millisecond }
func (c PipesConfig) pingTimeout() time.Duration   { return time.Duration(c.PingTimeoutMillis) * time.Millisecond }
func (c PipesConfig) shutdownGrace() time.Duration { return time.Duration(c.ShutdownGraceMillis) * time.Millisecond }
func (c PipesConfig) emitBatchTimeout() time.Duration {
	return time.Duration(c.EmitBatchTimeoutMillis) * time.Millisecond
}
func (c PipesConfig) childRespawn() time.Duration {
	return time.Duration(c.ChildRespawnMillis) * time.Millisecond
}
func (c PipesConfig) tempRetention() time.Duration {
	return time.Duration(c.TempRetentionMillis) * time.Millisecond
}
