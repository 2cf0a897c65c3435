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
	RegisterExtension(CategoryIterator, "mem-iterator", func() Extension { return NewMemIterator(nil) })
}

// MemIterator replays a fixed, pre-built slice of tuples. Used by tests
// that want deterministic control over what the orchestrator consumes,
// including the zero-tuple and infinite-producer boundary cases from
// spec §8.
type MemIterator struct {
	mu      sync.Mutex
	tuples  []FetchEmitTuple
	pos     int
	endless bool
}

// NewMemIterator returns a MemIterator that yields tuples in order, then
// ErrEndOfStream.
func NewMemIterator(tuples []FetchEmitTuple) *MemIterator {
	return &MemIterator{tuples: tuples}
}

// Endless makes the iterator never report end-of-stream, instead replaying
// its tuple list forever with fresh ids; used to model an infinite
// message-bus style source.
func (m *MemIterator) Endless(v bool) *MemIterator {
	m.endless = v
	return m
}

func (m *MemIterator) ConfigStruct() interface{} { return &ExtensionConfig{} }

func (m *MemIterator) Init(config interface{}) error { return nil }

func (m *MemIterator) Next() (FetchEmitTuple, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= len(m.tuples) {
		if m.endless && len(m.tuples) > 0 {
			m.pos = 0
		} else {
			return FetchEmitTuple{}, ErrEndOfStream
		}
	}
	t := m.tuples[m.pos]
	m.pos++
	if m.endless {
		t = NewTuple(t.FetchKey, t.EmitKey, t.UserMetadata, t.OnParseException)
	}
	return t, nil
}

func (m *MemIterator) TotalCount() TotalCountResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endless {
		return TotalCountResult{Status: TotalCountUnsupported}
	}
	if m.pos >= len(m.tuples) {
		return TotalCountResult{Count: int64(len(m.tuples)), Status: TotalCountCompleted}
	}
	return TotalCountResult{Count: int64(len(m.tuples)), Status: TotalCountNotCompleted}
}
