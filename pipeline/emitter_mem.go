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

import "sync"

func init() {
	RegisterExtension(CategoryEmitter, "mem-emitter", func() Extension { return NewMemEmitter() })
}

// MemEmitter is an in-memory emitter used by tests. FailSequence lets a
// test script a canned sequence of outcomes per emit-key (e.g. retryable,
// retryable, permanent, as in spec §8 scenario 6).
type MemEmitter struct {
	mu        sync.Mutex
	strategy  AttachmentStrategy
	Rows      map[string][]Metadata
	Batches   [][]EmitBatchItem
	attempts  map[string]int
	failSeq   map[string][]error
}

// NewMemEmitter returns an empty MemEmitter using the SKIP strategy.
func NewMemEmitter() *MemEmitter {
	return &MemEmitter{
		strategy: AttachmentSkip,
		Rows:     make(map[string][]Metadata),
		attempts: make(map[string]int),
		failSeq:  make(map[string][]error),
	}
}

func (e *MemEmitter) ConfigStruct() interface{} { return &ExtensionConfig{} }

func (e *MemEmitter) Init(config interface{}) error { return nil }

// SetStrategy overrides the default SKIP attachment strategy.
func (e *MemEmitter) SetStrategy(s AttachmentStrategy) *MemEmitter {
	e.strategy = s
	return e
}

// FailSequence scripts the outcomes of successive Emit/EmitBatch calls for
// emitKey: nil means success, non-nil is returned as-is (wrap in
// EmitterRetryable/EmitterPermanent to control retry behavior).
func (e *MemEmitter) FailSequence(emitKey string, errs ...error) *MemEmitter {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failSeq[emitKey] = errs
	return e
}

func (e *MemEmitter) Strategy() AttachmentStrategy { return e.strategy }

func (e *MemEmitter) Emit(ek EmitKey, metadataList []Metadata, pc ParseContext) error {
	e.mu.Lock()
	attempt := e.attempts[ek.Key]
	e.attempts[ek.Key] = attempt + 1
	if seq := e.failSeq[ek.Key]; attempt < len(seq) {
		err := seq[attempt]
		e.mu.Unlock()
		if err != nil {
			return err
		}
	} else {
		e.mu.Unlock()
	}

	rows, err := ApplyAttachmentStrategy(e.strategy, ek.Key, metadataList)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.Rows[ek.Key] = rows
	e.mu.Unlock()
	return nil
}

func (e *MemEmitter) EmitBatch(batch []EmitBatchItem, pc ParseContext) error {
	e.mu.Lock()
	e.Batches = append(e.Batches, batch)
	e.mu.Unlock()
	for _, item := range batch {
		if err := e.Emit(item.EmitKey, item.Metadata, pc); err != nil {
			return err
		}
	}
	return nil
}
