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
	"bytes"
	"io"
	"sync"
)

func init() {
	RegisterExtension(CategoryFetcher, "mem-fetcher", func() Extension { return NewMemFetcher() })
}

// MemFetcher is an in-memory fetcher keyed by string, used by tests and by
// fixtures that exercise timeouts/crashes without touching a filesystem.
type MemFetcher struct {
	mu      sync.RWMutex
	objects map[string][]byte
	missing map[string]bool
}

// NewMemFetcher returns an empty MemFetcher.
func NewMemFetcher() *MemFetcher {
	return &MemFetcher{objects: make(map[string][]byte), missing: make(map[string]bool)}
}

func (m *MemFetcher) ConfigStruct() interface{} { return &ExtensionConfig{} }

func (m *MemFetcher) Init(config interface{}) error { return nil }

// Put registers bytes under key for later Fetch calls.
func (m *MemFetcher) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// MarkMissing makes Fetch(key) return FetchNotFound.
func (m *MemFetcher) MarkMissing(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[key] = true
}

func (m *MemFetcher) Fetch(fk FetchKey, meta *Metadata, pc ParseContext) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.missing[fk.Key] {
		return nil, &FetchNotFound{FetchKey: fk.Key}
	}
	data, ok := m.objects[fk.Key]
	if !ok {
		return nil, &FetchNotFound{FetchKey: fk.Key}
	}
	if fk.RangeSet {
		end := fk.End + 1
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		start := fk.Start
		if start > end {
			start = end
		}
		data = data[start:end]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
