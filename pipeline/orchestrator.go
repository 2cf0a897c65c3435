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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunSummary is the end-of-run tally the CLI prints (spec §7's "N
// succeeded, M failed, K skipped" line) and the value Run returns.
type RunSummary struct {
	Succeeded int64
	Failed    int64
	Skipped   int64
	Elapsed   time.Duration
}

// emitEntry is one tuple's parse output, queued for its emitter's
// batch-drain task (spec §4.7).
type emitEntry struct {
	tuple          FetchEmitTuple
	metadata       []Metadata
	parseException bool
	parseErrMsg    string
	pc             ParseContext
	start          time.Time
}

// reportJob is one finished tuple outcome, queued for the reporter's drain
// task.
type reportJob struct {
	tuple   FetchEmitTuple
	result  PipesResult
	elapsed time.Duration
}

// Orchestrator is the scheduling core from spec §4.7: it owns the bounded
// work queue, the numWorkers worker pool, the per-emitter batch-drain
// tasks, and the reporter drain task. It generalizes the teacher's
// per-category WaitGroup-plus-abort-channel plumbing
// (filtersWg/decodersWg/inputsWg + globals.abortChan) into one
// golang.org/x/sync/errgroup per stage (workers, emit-drain) plus a
// reporter-drain goroutine, coordinated by a context cancellation tree
// instead of a bespoke abort channel.
type Orchestrator struct {
	registry   *Registry
	gateway    *ParserGateway
	logger     *Logger
	iteratorID string
	reporterID string

	fieldAliases map[string]string
	overwrite    bool

	seenMu sync.Mutex
	seen   map[string]bool

	inFlight int64
}

// NewOrchestrator wires a ready-to-run orchestrator against an already
// loaded Registry. gateway decides whether parses run in-process or
// through the forked-worker supervisor.
func NewOrchestrator(reg *Registry, gateway *ParserGateway, iteratorID, reporterID string, fieldAliases map[string]string, overwrite bool, logger *Logger) *Orchestrator {
	return &Orchestrator{
		registry:     reg,
		gateway:      gateway,
		logger:       logger,
		iteratorID:   iteratorID,
		reporterID:   reporterID,
		fieldAliases: fieldAliases,
		overwrite:    overwrite,
		seen:         make(map[string]bool),
	}
}

func (o *Orchestrator) resolveIterator() (Iterator, error) {
	ext, err := o.registry.Build(CategoryIterator, o.iteratorID)
	if err != nil {
		return nil, err
	}
	it, ok := ext.(Iterator)
	if !ok {
		return nil, &ConfigError{Section: o.iteratorID, Reason: "extension is not an Iterator"}
	}
	return it, nil
}

func (o *Orchestrator) resolveReporter() (Reporter, error) {
	ext, err := o.registry.Build(CategoryReporter, o.reporterID)
	if err != nil {
		return nil, err
	}
	rp, ok := ext.(Reporter)
	if !ok {
		return nil, &ConfigError{Section: o.reporterID, Reason: "extension is not a Reporter"}
	}
	return rp, nil
}

func (o *Orchestrator) resolveFetcher(id string) (Fetcher, error) {
	ext, err := o.registry.Build(CategoryFetcher, id)
	if err != nil {
		return nil, err
	}
	f, ok := ext.(Fetcher)
	if !ok {
		return nil, &ConfigError{Section: id, Reason: "extension is not a Fetcher"}
	}
	return f, nil
}

func (o *Orchestrator) resolveEmitter(id string) (Emitter, error) {
	ext, err := o.registry.Build(CategoryEmitter, id)
	if err != nil {
		return nil, err
	}
	e, ok := ext.(Emitter)
	if !ok {
		return nil, &ConfigError{Section: id, Reason: "extension is not an Emitter"}
	}
	return e, nil
}

// Run drives tuples from the iterator through fetch/parse/emit/report until
// end-of-stream, or until ctx is cancelled, in which case it honours
// shutdownGraceMillis before forcing in-flight work to abort (spec §4.7's
// cancellation/shutdown rules). It returns once every queue has drained and
// the reporter has been closed.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	started := time.Now()
	// Callers resolve derived defaults (workQueueCapacity, maxForkedChildren)
	// once right after LoadConfig, before anything sizes a pool off them —
	// see runPipes in cmd/tikapipes. Re-resolving here on a local copy would
	// be too late for a forked-worker Supervisor already built from the
	// registry's unresolved config.
	conf := o.registry.Pipes

	iterator, err := o.resolveIterator()
	if err != nil {
		return RunSummary{}, err
	}
	reporter, err := o.resolveReporter()
	if err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	workCh := make(chan FetchEmitTuple, conf.WorkQueueCapacity)
	reportCh := make(chan reportJob, conf.WorkQueueCapacity*2)

	// workerCtx is cancelled only once the shutdown grace period elapses
	// (or immediately, if ctx is already done when Run starts with no
	// grace to honour); it's the context workers/fetch/parse/emit use for
	// their blocking I/O, per spec §5's cancellation rule.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var emitMu sync.Mutex
	emitChans := make(map[string]chan emitEntry)
	emitGroup, emitGroupCtx := errgroup.WithContext(context.Background())
	getEmitChan := func(emitterID string) chan emitEntry {
		emitMu.Lock()
		defer emitMu.Unlock()
		if ch, ok := emitChans[emitterID]; ok {
			return ch
		}
		ch := make(chan emitEntry, conf.EmitBatchSize*2)
		emitChans[emitterID] = ch
		emitGroup.Go(func() error {
			o.emitDrain(emitGroupCtx, emitterID, ch, reportCh, conf)
			return nil
		})
		return ch
	}

	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		o.reporterDrain(reporter, reportCh, &summary)
	}()

	totalCtx, cancelTotal := context.WithCancel(context.Background())
	defer cancelTotal()
	go o.totalCountLoop(totalCtx, iterator, reporter)

	var workers errgroup.Group
	for i := 0; i < conf.NumWorkers; i++ {
		workers.Go(func() error {
			for tuple := range workCh {
				atomic.AddInt64(&o.inFlight, 1)
				o.processTuple(workerCtx, tuple, conf, getEmitChan, reportCh)
				atomic.AddInt64(&o.inFlight, -1)
			}
			return nil
		})
	}

	iterDone := make(chan struct{})
	go func() {
		defer close(iterDone)
		o.iteratorDriver(ctx, iterator, workCh, reportCh)
	}()

	// Wait for either clean end-of-stream (iterDone closes on its own) or
	// ctx cancellation, whichever comes first.
	select {
	case <-iterDone:
	case <-ctx.Done():
		<-iterDone // iteratorDriver observes ctx.Done() and returns promptly
	}
	close(workCh)

	workersDone := make(chan struct{})
	go func() {
		_ = workers.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-time.After(conf.shutdownGrace()):
		if o.logger != nil {
			o.logger.Warn("shutdown grace period elapsed, cancelling in-flight work", "graceMs", conf.ShutdownGraceMillis)
		}
		cancelWorkers()
		<-workersDone
	}

	emitMu.Lock()
	for _, ch := range emitChans {
		close(ch)
	}
	emitMu.Unlock()
	_ = emitGroup.Wait()

	close(reportCh)
	<-reporterDone
	cancelTotal()
	_ = reporter.Close()

	summary.Elapsed = time.Since(started)
	return summary, nil
}

// iteratorDriver is the single cooperative task that calls Next() and
// enqueues tuples, suspending (blocking on a full channel send) for
// backpressure per spec §4.7. It stops producing as soon as ctx is
// cancelled, without waiting for the channel send to complete.
func (o *Orchestrator) iteratorDriver(ctx context.Context, iterator Iterator, workCh chan<- FetchEmitTuple, reportCh chan<- reportJob) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tuple, err := iterator.Next()
		if err == ErrEndOfStream {
			return
		}
		if err != nil {
			if o.logger != nil {
				o.logger.Error("iterator error, stopping", "err", err)
			}
			return
		}

		o.seenMu.Lock()
		duplicate := o.seen[tuple.ID]
		o.seen[tuple.ID] = true
		o.seenMu.Unlock()
		if duplicate {
			reportCh <- reportJob{tuple: tuple, result: PipesResult{Status: StatusSkipped}, elapsed: 0}
			continue
		}

		select {
		case workCh <- tuple:
		case <-ctx.Done():
			return
		}
	}
}

// totalCountLoop periodically reports the iterator's best-effort total
// count, per spec §7's "periodic TotalCountResult emissions".
func (o *Orchestrator) totalCountLoop(ctx context.Context, iterator Iterator, reporter Reporter) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = reporter.ReportTotalCount(iterator.TotalCount())
		}
	}
}

func (o *Orchestrator) reporterDrain(reporter Reporter, reportCh <-chan reportJob, summary *RunSummary) {
	for job := range reportCh {
		switch job.result.Status {
		case StatusEmitSuccess, StatusEmitSuccessParseException:
			atomic.AddInt64(&summary.Succeeded, 1)
		case StatusSkipped:
			atomic.AddInt64(&summary.Skipped, 1)
		default:
			atomic.AddInt64(&summary.Failed, 1)
		}
		if err := reporter.ReportResult(job.tuple, job.result, job.elapsed); err != nil && o.logger != nil {
			o.logger.Error("reporter failed, dropping", "err", err)
		}
	}
}

// String renders the summary line from spec §7.
func (s RunSummary) String() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d skipped", s.Succeeded, s.Failed, s.Skipped)
}
