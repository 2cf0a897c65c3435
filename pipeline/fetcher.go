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
	"io"
)

// ParseContext carries request-scoped options along the fetch/parse/emit
// call chain. Generalizes the teacher's cyclic parser/context references
// (spec §9) into a single value threaded explicitly rather than captured by
// closures.
type ParseContext struct {
	Ctx              context.Context
	MaxEmbeddedDepth int
	EmbeddedDepth    int
	FieldAliases     map[string]string
	Overwrite        bool
}

// WithEmbeddedDepth returns a copy of pc one level deeper, used when the
// parser gateway recurses into an embedded document.
func (pc ParseContext) WithEmbeddedDepth() ParseContext {
	pc.EmbeddedDepth++
	return pc
}

// Fetcher is the contract every fetcher extension satisfies: given a
// fetch-key, return a read-once byte stream plus any server-side metadata
// the store can supply.
type Fetcher interface {
	Extension
	Fetch(fk FetchKey, meta *Metadata, pc ParseContext) (io.ReadCloser, error)
}

// spoolToTempReader wraps a stream whose backing bytes have been copied to
// a scoped temp file, so Close both closes the handle and removes the file,
// per spec §4.2/§5's temp-file discipline.
type spoolToTempReader struct {
	io.ReadCloser
	path string
}

func (s *spoolToTempReader) Close() error {
	err := s.ReadCloser.Close()
	_ = removeTempFile(s.path)
	return err
}
