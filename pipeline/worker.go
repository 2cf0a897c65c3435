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
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// processTuple runs one tuple end-to-end through fetch and parse (spec
// §4.7's [QUEUED]->[FETCHING]->[PARSING] states), handing a successful
// parse off to its emitter's batch-drain task. Every exit path yields
// exactly one terminal report, either directly here (fetch/parse failure)
// or later from the emit-drain task (spec §8's "exactly one result per
// tuple" invariant) — processTuple itself never reports a success.
func (o *Orchestrator) processTuple(ctx context.Context, tuple FetchEmitTuple, conf PipesConfig, getEmitChan func(string) chan emitEntry, reportCh chan<- reportJob) {
	start := time.Now()

	fetcher, err := o.resolveFetcher(tuple.FetchKey.FetcherID)
	if err != nil {
		o.reportDirect(reportCh, tuple, PipesResult{Status: StatusFetchException, ErrorMsg: err.Error()}, start)
		return
	}

	meta := NewMetadata()
	meta.Merge(tuple.UserMetadata)
	pc := ParseContext{
		Ctx:              ctx,
		MaxEmbeddedDepth: conf.MaxEmbeddedDepth,
		FieldAliases:     o.fieldAliases,
		Overwrite:        o.overwrite,
	}

	stream, err := o.fetchWithRetry(ctx, fetcher, tuple, &meta, pc, conf.FetchRetries)
	if err != nil {
		var notFound *FetchNotFound
		if errors.As(err, &notFound) {
			o.reportDirect(reportCh, tuple, PipesResult{Status: StatusFetchNotFound, ErrorMsg: err.Error()}, start)
			return
		}
		o.reportDirect(reportCh, tuple, PipesResult{Status: StatusFetchException, ErrorMsg: err.Error()}, start)
		return
	}
	defer stream.Close()

	// parsePC carries a timeout-bounded context scoped to this one Parse
	// call. pc itself keeps the worker-lifetime ctx: it rides along in the
	// emitEntry queued below and is read later by flushEmitBatch, by which
	// time parseCtx would already be cancelled by the deferred cancel()
	// here.
	parseCtx, cancel := context.WithTimeout(ctx, conf.parseTimeout())
	defer cancel()
	parsePC := pc
	parsePC.Ctx = parseCtx

	metaList, parseErr := o.gateway.Parse(tuple.ID, stream, meta, parsePC)
	if parseErr != nil {
		status, emitAnyway := classifyParseFailure(parseErr, tuple.OnParseException, ctx)
		if !emitAnyway {
			o.reportDirect(reportCh, tuple, PipesResult{Status: status, ErrorMsg: parseErr.Error()}, start)
			return
		}
		// onParseException == EMIT: fall through to the emit stage with
		// whatever metadata was produced before the failure, plus a
		// sentinel record carrying the exception (spec §7).
		if len(metaList) == 0 {
			metaList = []Metadata{NewMetadata()}
		}
		sentinel := NewMetadata()
		sentinel.Set("X-TIKA:parse-exception", parseErr.Error())
		metaList = append(metaList, sentinel)

		ch := getEmitChan(tuple.EmitKey.EmitterID)
		select {
		case ch <- emitEntry{tuple: tuple, metadata: metaList, parseException: true, parseErrMsg: parseErr.Error(), pc: pc, start: start}:
		case <-ctx.Done():
			o.reportDirect(reportCh, tuple, PipesResult{Status: StatusInterruptedException, ErrorMsg: ctx.Err().Error()}, start)
		}
		return
	}

	ch := getEmitChan(tuple.EmitKey.EmitterID)
	select {
	case ch <- emitEntry{tuple: tuple, metadata: metaList, pc: pc, start: start}:
	case <-ctx.Done():
		o.reportDirect(reportCh, tuple, PipesResult{Status: StatusInterruptedException, ErrorMsg: ctx.Err().Error()}, start)
	}
}

func (o *Orchestrator) reportDirect(reportCh chan<- reportJob, tuple FetchEmitTuple, result PipesResult, start time.Time) {
	reportCh <- reportJob{tuple: tuple, result: result, elapsed: time.Since(start)}
}

// classifyParseFailure maps a parse-stage error onto a terminal status, and
// reports whether the tuple's onParseException policy says to emit
// whatever partial metadata was recovered rather than drop the tuple (spec
// §7).
func classifyParseFailure(err error, policy OnParseException, ctx context.Context) (status Status, emitAnyway bool) {
	if ctx.Err() != nil {
		return StatusInterruptedException, false
	}
	var svErr *supervisorStatusError
	if errors.As(err, &svErr) {
		return svErr.status, false
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		if policy == OnParseExceptionEmit {
			return StatusParseSuccessWithException, true
		}
		return StatusParseExceptionNoEmit, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout, false
	}
	return StatusParseExceptionNoEmit, false
}

// fetchWithRetry wraps Fetcher.Fetch in an exponential-backoff retry loop
// bounded by maxRetries, per spec §7 ("transient is retried up to
// fetchRetries with exponential backoff"). A FetchNotFound is permanent and
// short-circuits the retry loop.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, fetcher Fetcher, tuple FetchEmitTuple, meta *Metadata, pc ParseContext, maxRetries int) (io.ReadCloser, error) {
	var result io.ReadCloser
	op := func() error {
		s, ferr := fetcher.Fetch(tuple.FetchKey, meta, pc)
		if ferr != nil {
			var notFound *FetchNotFound
			if errors.As(ferr, &notFound) {
				return backoff.Permanent(ferr)
			}
			return ferr
		}
		result = s
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	if retryErr := backoff.Retry(op, bo); retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}

// emitDrain batches entries for one emitter up to emitBatchSize or
// emitBatchTimeoutMillis, whichever comes first, and calls EmitBatch (spec
// §4.7's "emit-drain tasks run one per emitter").
func (o *Orchestrator) emitDrain(ctx context.Context, emitterID string, ch <-chan emitEntry, reportCh chan<- reportJob, conf PipesConfig) {
	emitter, err := o.resolveEmitter(emitterID)
	if err != nil {
		for entry := range ch {
			o.reportDirect(reportCh, entry.tuple, PipesResult{Status: StatusNoEmitterFound, ErrorMsg: err.Error()}, entry.start)
		}
		return
	}

	ticker := time.NewTicker(conf.emitBatchTimeout())
	defer ticker.Stop()

	var batch []emitEntry
	flush := func() {
		if len(batch) == 0 {
			return
		}
		o.flushEmitBatch(ctx, emitter, batch, reportCh, conf)
		batch = nil
	}

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= conf.EmitBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// flushEmitBatch delivers one batch to the emitter with retry/backoff for
// retryable failures (spec §4.5/§7), then reports exactly one outcome per
// tuple in the batch. Retrying the whole batch relies on emitters keying
// writes by emit-key (overwrite, not append), so a retried batch never
// produces duplicate sink rows — the same idempotence the batch-splitting
// law in spec §8 assumes.
func (o *Orchestrator) flushEmitBatch(ctx context.Context, emitter Emitter, batch []emitEntry, reportCh chan<- reportJob, conf PipesConfig) {
	items := make([]EmitBatchItem, 0, len(batch))
	for _, entry := range batch {
		items = append(items, EmitBatchItem{EmitKey: entry.tuple.EmitKey, Metadata: entry.metadata})
	}

	op := func() error {
		err := emitter.EmitBatch(items, batch[0].pc)
		if err == nil {
			return nil
		}
		var permanent *EmitterPermanent
		if errors.As(err, &permanent) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(conf.EmitRetries)), ctx)
	emitErr := backoff.Retry(op, bo)

	for _, entry := range batch {
		if emitErr != nil {
			o.reportDirect(reportCh, entry.tuple, PipesResult{Status: StatusEmitException, ErrorMsg: emitErr.Error()}, entry.start)
			continue
		}
		status := StatusEmitSuccess
		msg := ""
		if entry.parseException {
			status = StatusEmitSuccessParseException
			msg = entry.parseErrMsg
		}
		o.reportDirect(reportCh, entry.tuple, PipesResult{Status: status, ErrorMsg: msg}, entry.start)
	}
}
