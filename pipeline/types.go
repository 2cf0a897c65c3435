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

import "github.com/pborman/uuid"

// FetchKey names the bytes to retrieve: an opaque key interpreted by the
// fetcher it's routed to, plus an optional inclusive byte range used when a
// single source object holds several logical documents.
type FetchKey struct {
	FetcherID string
	Key       string
	RangeSet  bool
	Start     int64
	End       int64
}

// EmitKey names the destination row/object a parse result is routed to.
type EmitKey struct {
	EmitterID string
	Key       string
}

// OnParseException is the tuple-level policy for what to do when parsing
// fails partway through.
type OnParseException string

const (
	OnParseExceptionSkip OnParseException = "SKIP"
	OnParseExceptionEmit OnParseException = "EMIT"
)

// FetchEmitTuple is the unit of work that flows from the iterator through
// the worker pool to the reporter.
type FetchEmitTuple struct {
	ID                string
	FetchKey          FetchKey
	EmitKey           EmitKey
	UserMetadata      Metadata
	OnParseException  OnParseException
}

// NewTuple builds a FetchEmitTuple with a fresh globally unique ID.
func NewTuple(fk FetchKey, ek EmitKey, userMeta Metadata, onErr OnParseException) FetchEmitTuple {
	if onErr == "" {
		onErr = OnParseExceptionSkip
	}
	return FetchEmitTuple{
		ID:               uuid.NewRandom().String(),
		FetchKey:         fk,
		EmitKey:          ek,
		UserMetadata:     userMeta,
		OnParseException: onErr,
	}
}

// Metadata is an ordered, multi-valued, string-keyed map. Values for a given
// key preserve insertion order; Add appends a value, while Set replaces
// every value stored under the key.
type Metadata struct {
	keys   []string
	values map[string][]string
}

// NewMetadata returns an empty Metadata record.
func NewMetadata() Metadata {
	return Metadata{values: make(map[string][]string)}
}

// Add appends a value under name, preserving any values already present.
func (m *Metadata) Add(name, value string) {
	if m.values == nil {
		m.values = make(map[string][]string)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = append(m.values[name], value)
}

// Set replaces whatever is stored under name with a single value.
func (m *Metadata) Set(name, value string) {
	if m.values == nil {
		m.values = make(map[string][]string)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = []string{value}
}

// Get returns the first value stored under name, if any.
func (m Metadata) Get(name string) (string, bool) {
	vs, ok := m.values[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetAll returns every value stored under name, in insertion order.
func (m Metadata) GetAll(name string) []string {
	return m.values[name]
}

// Names returns every field name present, in first-insertion order.
func (m Metadata) Names() []string {
	return append([]string(nil), m.keys...)
}

// Merge appends every field of other into m, preserving order and never
// overwriting. Used to fold UserMetadata into a parse result's container
// record.
func (m *Metadata) Merge(other Metadata) {
	for _, name := range other.Names() {
		for _, v := range other.GetAll(name) {
			m.Add(name, v)
		}
	}
}

const ContentTypeField = "Content-Type"

// Status is the closed set of terminal outcomes a worker can report for a
// tuple. Runtime failures never propagate as Go errors out of a worker;
// they collapse to one of these values instead.
type Status string

const (
	StatusParseSuccess               Status = "PARSE_SUCCESS"
	StatusParseSuccessWithException  Status = "PARSE_SUCCESS_WITH_EXCEPTION"
	StatusParseExceptionNoEmit       Status = "PARSE_EXCEPTION_NO_EMIT"
	StatusParseExceptionEmit         Status = "PARSE_EXCEPTION_EMIT"
	StatusEmitSuccess                Status = "EMIT_SUCCESS"
	StatusEmitSuccessParseException  Status = "EMIT_SUCCESS_PARSE_EXCEPTION"
	StatusEmitException              Status = "EMIT_EXCEPTION"
	StatusFetchException              Status = "FETCH_EXCEPTION"
	StatusFetchNotFound                Status = "FETCH_NOT_FOUND"
	StatusOOM                           Status = "OOM"
	StatusTimeout                       Status = "TIMEOUT"
	StatusUnspecifiedCrash              Status = "UNSPECIFIED_CRASH"
	StatusNoEmitterFound                Status = "NO_EMITTER_FOUND"
	StatusClientUnavailableWithinMs     Status = "CLIENT_UNAVAILABLE_WITHIN_MS"
	StatusInterruptedException          Status = "INTERRUPTED_EXCEPTION"
	StatusSkipped                       Status = "SKIPPED"
	StatusEmpty                         Status = "EMPTY"
	StatusIntermediateParseException    Status = "INTERMEDIATE_PARSE_EXCEPTION"
)

// PipesResult is the outcome of running one tuple through fetch/parse/emit,
// handed to the reporter and then discarded.
type PipesResult struct {
	Status      Status
	ErrorMsg    string
	StackTrace  string
	ParseErrors []Metadata
}

// TotalCountResult is the iterator's best-effort upper bound on the number
// of tuples it will ever produce.
type TotalCountResult struct {
	Count  int64
	Status TotalCountStatus
}

type TotalCountStatus string

const (
	TotalCountNotCompleted TotalCountStatus = "NOT_COMPLETED"
	TotalCountCompleted    TotalCountStatus = "COMPLETED"
	TotalCountUnsupported  TotalCountStatus = "UNSUPPORTED"
)
