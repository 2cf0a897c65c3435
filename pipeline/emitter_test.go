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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func threeRecordList() []Metadata {
	container := NewMetadata()
	container.Set("X-TIKA:content", "container-body")
	child1 := NewMetadata()
	child1.Set("X-TIKA:content", "child-one")
	child2 := NewMetadata()
	child2.Set("X-TIKA:content", "child-two")
	return []Metadata{container, child1, child2}
}

func TestApplyAttachmentStrategySkipKeepsOnlyContainer(t *testing.T) {
	rows, err := ApplyAttachmentStrategy(AttachmentSkip, "doc-1", threeRecordList())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	content, _ := rows[0].Get("X-TIKA:content")
	require.Equal(t, "container-body", content)
}

func TestApplyAttachmentStrategyConcatenateContentMergesBodies(t *testing.T) {
	rows, err := ApplyAttachmentStrategy(AttachmentConcatenateContent, "doc-1", threeRecordList())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	content, _ := rows[0].Get("X-TIKA:content")
	require.Equal(t, "container-bodychild-onechild-two", content)
}

func TestApplyAttachmentStrategyParentChildRoutesChildrenToContainerKey(t *testing.T) {
	rows, err := ApplyAttachmentStrategy(AttachmentParentChild, "doc-1", threeRecordList())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, child := range rows[1:] {
		routingKey, ok := child.Get("X-TIKA:routing-key")
		require.True(t, ok)
		require.Equal(t, "doc-1", routingKey)
	}
}

func TestApplyAttachmentStrategySeparateDocumentsHasNoSharedRoutingKey(t *testing.T) {
	rows, err := ApplyAttachmentStrategy(AttachmentSeparateDocuments, "doc-1", threeRecordList())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, child := range rows[1:] {
		parent, ok := child.Get("parent")
		require.True(t, ok)
		require.Equal(t, "doc-1", parent)
		_, hasRoutingKey := child.Get("X-TIKA:routing-key")
		require.False(t, hasRoutingKey)
	}
}

func TestApplyAttachmentStrategyRejectsEmptyList(t *testing.T) {
	_, err := ApplyAttachmentStrategy(AttachmentSkip, "doc-1", nil)
	require.Error(t, err)
}

func TestMemEmitterFailSequenceThenSucceeds(t *testing.T) {
	emitter := NewMemEmitter()
	emitter.FailSequence("doc-1", &EmitterRetryable{Cause: errors.New("transient failure")}, nil)

	err := emitter.Emit(EmitKey{EmitterID: "mem-emitter", Key: "doc-1"}, []Metadata{NewMetadata()}, ParseContext{})
	require.Error(t, err)

	err = emitter.Emit(EmitKey{EmitterID: "mem-emitter", Key: "doc-1"}, []Metadata{NewMetadata()}, ParseContext{})
	require.NoError(t, err)
	require.Contains(t, emitter.Rows, "doc-1")
}
