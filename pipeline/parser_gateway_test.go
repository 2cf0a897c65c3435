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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recursingParser always emits one embedded child by calling embed once,
// letting tests drive the gateway's max-depth enforcement without needing
// a real archive/container format.
type recursingParser struct{}

func (recursingParser) Parse(stream io.Reader, meta Metadata, pc ParseContext, embed EmbeddedParser) ([]Metadata, error) {
	container := NewMetadata()
	container.Merge(meta)
	container.Set(ContentTypeField, "application/x-test-container")

	children, err := embed(strings.NewReader("child"), NewMetadata(), pc)
	if err != nil {
		return nil, err
	}
	return append([]Metadata{container}, children...), nil
}

func TestParserGatewayInProcessStopsAtMaxDepth(t *testing.T) {
	gw := NewInProcessGateway(recursingParser{}, 2)
	pc := ParseContext{Ctx: context.Background()}

	results, err := gw.Parse("tuple-1", strings.NewReader("root"), NewMetadata(), pc)
	require.NoError(t, err)

	// Depth 0 (root) -> embed at depth 1 -> embed at depth 2, which hits
	// maxDepth and must stop with a placeholder instead of recursing again.
	require.Len(t, results, 3)
	last := results[len(results)-1]
	ct, ok := last.Get(ContentTypeField)
	require.True(t, ok)
	require.Equal(t, "application/x-tika-skipped-deep-embedded", ct)
}

func TestParserGatewayTextParserReturnsSingleContainer(t *testing.T) {
	gw := NewInProcessGateway(NewTextParser(), 20)
	pc := ParseContext{Ctx: context.Background()}

	results, err := gw.Parse("tuple-1", strings.NewReader("%PDF-1.4 plain body"), NewMetadata(), pc)
	require.NoError(t, err)
	require.Len(t, results, 1)
	ct, ok := results[0].Get(ContentTypeField)
	require.True(t, ok)
	require.Equal(t, "application/pdf", ct)
}

func TestParserGatewayPlaceholderRecordsOriginalContentType(t *testing.T) {
	gw := NewInProcessGateway(recursingParser{}, 1)
	childMeta := NewMetadata()
	childMeta.Set(ContentTypeField, "message/rfc822")
	pc := ParseContext{Ctx: context.Background(), EmbeddedDepth: 1, MaxEmbeddedDepth: 1}

	results, err := gw.Parse("tuple-1", strings.NewReader("already-too-deep"), childMeta, pc)
	require.NoError(t, err)
	require.Len(t, results, 1)

	skippedFrom, ok := results[0].Get(SkippedDeepEmbeddedContentType)
	require.True(t, ok)
	require.Equal(t, "message/rfc822", skippedFrom)

	ct, ok := results[0].Get(ContentTypeField)
	require.True(t, ok)
	require.Equal(t, "application/x-tika-skipped-deep-embedded", ct)
}
