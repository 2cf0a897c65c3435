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

import "io"

// ParserGateway hides whether a parse runs in-process or in a forked child,
// per spec §4.4. Exactly one of inProcess or supervisor is set, chosen at
// startup.
type ParserGateway struct {
	inProcess  Parser
	supervisor *Supervisor
	maxDepth   int
}

// NewInProcessGateway builds a gateway that always calls parser directly.
func NewInProcessGateway(parser Parser, maxDepth int) *ParserGateway {
	return &ParserGateway{inProcess: parser, maxDepth: maxDepth}
}

// NewForkedGateway builds a gateway that delegates every parse to the
// forked-worker supervisor.
func NewForkedGateway(sup *Supervisor, maxDepth int) *ParserGateway {
	return &ParserGateway{supervisor: sup, maxDepth: maxDepth}
}

// Parse runs one parse, bounding embedded-document recursion to maxDepth
// and reporting anything past that as a SKIPPED_DEEP_EMBEDDED child, per
// spec §4.4.
func (g *ParserGateway) Parse(id string, stream io.Reader, meta Metadata, pc ParseContext) ([]Metadata, error) {
	if pc.MaxEmbeddedDepth == 0 {
		pc.MaxEmbeddedDepth = g.maxDepth
	}
	if pc.EmbeddedDepth >= pc.MaxEmbeddedDepth {
		placeholder := NewMetadata()
		placeholder.Merge(meta)
		if ct, ok := meta.Get(ContentTypeField); ok {
			placeholder.Set(SkippedDeepEmbeddedContentType, ct)
		}
		placeholder.Set(ContentTypeField, "application/x-tika-skipped-deep-embedded")
		return []Metadata{placeholder}, nil
	}

	if g.supervisor != nil {
		return g.supervisor.Parse(id, stream, meta, pc)
	}

	embed := func(childStream io.Reader, childMeta Metadata, childPC ParseContext) ([]Metadata, error) {
		return g.Parse(id, childStream, childMeta, childPC.WithEmbeddedDepth())
	}
	return g.inProcess.Parse(stream, meta, pc, embed)
}
