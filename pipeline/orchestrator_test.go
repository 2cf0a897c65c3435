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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// retryConfig mirrors memConfig but caps emit batches at one tuple each so
// each tuple's retry sequence can be driven independently via
// MemEmitter.FailSequence.
const retryConfig = `
[pipes]
numWorkers = 2
iterator = "it"
reporter = "rp"
emitBatchSize = 1
emitRetries = 2

[fetchers.mem-fetcher.ft]

[emitters.mem-emitter.em]

[iterators.mem-iterator.it]

[reporters.mem-reporter.rp]
`

// memConfig is the minimal config fixture wiring one instance of each mem-*
// extension under the reserved [pipes] iterator/reporter keys, used by the
// orchestrator end-to-end tests below except the emit-retry ones, which use
// retryConfig.
const memConfig = `
[pipes]
numWorkers = 2
iterator = "it"
reporter = "rp"

[fetchers.mem-fetcher.ft]

[emitters.mem-emitter.em]

[iterators.mem-iterator.it]

[reporters.mem-reporter.rp]
`

func loadMemRegistry(t *testing.T, toml string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipes.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	reg := NewRegistry(NewLogger("error"))
	require.NoError(t, reg.LoadConfig(path))
	// Mirrors runPipes in cmd/tikapipes: derived defaults are resolved once,
	// right after LoadConfig, before anything sizes a pool off them.
	reg.Pipes.ResolveDefaults()
	return reg
}

func setupOrchestrator(t *testing.T, tomlConfig string, tuples []FetchEmitTuple) (*Orchestrator, *MemFetcher, *MemEmitter, *MemReporter) {
	t.Helper()
	reg := loadMemRegistry(t, tomlConfig)

	fetcherExt, err := reg.Build(CategoryFetcher, "ft")
	require.NoError(t, err)
	fetcher := fetcherExt.(*MemFetcher)

	emitterExt, err := reg.Build(CategoryEmitter, "em")
	require.NoError(t, err)
	emitter := emitterExt.(*MemEmitter)

	iteratorExt, err := reg.Build(CategoryIterator, "it")
	require.NoError(t, err)
	iterator := iteratorExt.(*MemIterator)
	iterator.tuples = tuples

	reporterExt, err := reg.Build(CategoryReporter, "rp")
	require.NoError(t, err)
	reporter := reporterExt.(*MemReporter)

	gateway := NewInProcessGateway(NewTextParser(), 20)
	orch := NewOrchestrator(reg, gateway, "it", "rp", nil, false, NewLogger("error"))
	return orch, fetcher, emitter, reporter
}

func newFetchEmitTestTuple(key string) FetchEmitTuple {
	return NewTuple(
		FetchKey{FetcherID: "ft", Key: key},
		EmitKey{EmitterID: "em", Key: key},
		NewMetadata(),
		OnParseExceptionSkip,
	)
}

func TestOrchestratorRunEmptyIteratorYieldsZeroResults(t *testing.T) {
	orch, _, _, reporter := setupOrchestrator(t, memConfig, nil)

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.Succeeded)
	require.Equal(t, int64(0), summary.Failed)
	require.True(t, reporter.Closed())
}

func TestOrchestratorRunHappyPathReportsEmitSuccess(t *testing.T) {
	orch, fetcher, emitter, reporter := setupOrchestrator(t, memConfig, []FetchEmitTuple{
		newFetchEmitTestTuple("doc-1"),
		newFetchEmitTestTuple("doc-2"),
	})
	fetcher.Put("doc-1", []byte("hello world"))
	fetcher.Put("doc-2", []byte("second document"))

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Succeeded)
	require.Equal(t, int64(0), summary.Failed)
	require.Len(t, emitter.Rows, 2)
	require.Equal(t, 2, reporter.CountByStatus(StatusEmitSuccess))
}

func TestOrchestratorRunFetchNotFoundReportsFetchNotFound(t *testing.T) {
	orch, fetcher, _, reporter := setupOrchestrator(t, memConfig, []FetchEmitTuple{
		newFetchEmitTestTuple("missing-doc"),
	})
	fetcher.MarkMissing("missing-doc")

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Failed)
	require.Equal(t, 1, reporter.CountByStatus(StatusFetchNotFound))
}

func TestOrchestratorRunDuplicateTupleIDsAreSkipped(t *testing.T) {
	reg := loadMemRegistry(t, memConfig)
	fetcherExt, _ := reg.Build(CategoryFetcher, "ft")
	fetcher := fetcherExt.(*MemFetcher)
	emitterExt, _ := reg.Build(CategoryEmitter, "em")
	_ = emitterExt
	iteratorExt, _ := reg.Build(CategoryIterator, "it")
	iterator := iteratorExt.(*MemIterator)
	reporterExt, _ := reg.Build(CategoryReporter, "rp")
	reporter := reporterExt.(*MemReporter)

	dup := newFetchEmitTestTuple("doc-1")
	iterator.tuples = []FetchEmitTuple{dup, dup}
	fetcher.Put("doc-1", []byte("body"))

	gateway := NewInProcessGateway(NewTextParser(), 20)
	orch := NewOrchestrator(reg, gateway, "it", "rp", nil, false, NewLogger("error"))

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Succeeded)
	require.Equal(t, int64(1), summary.Skipped)
	require.Equal(t, 1, reporter.CountByStatus(StatusSkipped))
}

func TestOrchestratorRunCancelledContextStopsPromptly(t *testing.T) {
	orch, fetcher, _, _ := setupOrchestrator(t, memConfig, nil)
	fetcher.Put("doc-1", []byte("body"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		_, _ = orch.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}

func TestOrchestratorRunEmitterRecoversAfterTransientRetries(t *testing.T) {
	orch, fetcher, emitter, reporter := setupOrchestrator(t, retryConfig, []FetchEmitTuple{
		newFetchEmitTestTuple("doc-1"),
	})
	fetcher.Put("doc-1", []byte("body"))
	emitter.FailSequence("doc-1",
		&EmitterRetryable{Cause: errors.New("connection reset")},
		&EmitterRetryable{Cause: errors.New("connection reset again")},
	)

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Succeeded)
	require.Equal(t, 1, reporter.CountByStatus(StatusEmitSuccess))
}

func TestOrchestratorRunEmitterPermanentFailureReportsEmitException(t *testing.T) {
	orch, fetcher, emitter, reporter := setupOrchestrator(t, retryConfig, []FetchEmitTuple{
		newFetchEmitTestTuple("doc-1"),
	})
	fetcher.Put("doc-1", []byte("body"))
	emitter.FailSequence("doc-1", &EmitterPermanent{Cause: errors.New("schema mismatch")})

	summary, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.Succeeded)
	require.Equal(t, int64(1), summary.Failed)
	require.Equal(t, 1, reporter.CountByStatus(StatusEmitException))
}
