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

import "fmt"

// AttachmentStrategy is the closed-set policy an emitter declares for
// mapping a container + embedded records onto its sink, per spec §4.5.
type AttachmentStrategy string

const (
	AttachmentSkip               AttachmentStrategy = "SKIP"
	AttachmentConcatenateContent AttachmentStrategy = "CONCATENATE_CONTENT"
	AttachmentParentChild        AttachmentStrategy = "PARENT_CHILD"
	AttachmentSeparateDocuments  AttachmentStrategy = "SEPARATE_DOCUMENTS"
)

// EmitBatchItem is one (emit-key, metadata list) pair queued for a batch
// emit call.
type EmitBatchItem struct {
	EmitKey  EmitKey
	Metadata []Metadata
}

// Emitter is the contract every emitter extension satisfies.
type Emitter interface {
	Extension
	Emit(ek EmitKey, metadataList []Metadata, pc ParseContext) error
	EmitBatch(batch []EmitBatchItem, pc ParseContext) error
	Strategy() AttachmentStrategy
}

// ApplyAttachmentStrategy transforms a raw parser metadata list (index 0 =
// container, 1..n = children) into the rows a sink should actually
// receive, per the emitter's declared strategy. Returned rows are in
// container-before-child order (spec §4.5/§5).
func ApplyAttachmentStrategy(strategy AttachmentStrategy, containerID string, list []Metadata) ([]Metadata, error) {
	if len(list) == 0 {
		return nil, &EmitterError{Reason: "empty"}
	}
	container := list[0]
	children := list[1:]

	switch strategy {
	case AttachmentSkip:
		return []Metadata{container}, nil

	case AttachmentConcatenateContent:
		merged := NewMetadata()
		merged.Merge(container)
		content, _ := merged.Get("X-TIKA:content")
		for _, child := range children {
			if c, ok := child.Get("X-TIKA:content"); ok {
				content += c
			}
		}
		merged.Set("X-TIKA:content", content)
		return []Metadata{merged}, nil

	case AttachmentParentChild:
		// All records written; children route to the container's own key
		// (spec §4.5: "the sink's routing key for children equals the
		// container id").
		rows := make([]Metadata, 0, len(list))
		rows = append(rows, container)
		for _, child := range children {
			c := NewMetadata()
			c.Merge(child)
			c.Set("parent", containerID)
			c.Set("X-TIKA:routing-key", containerID)
			rows = append(rows, c)
		}
		return rows, nil

	case AttachmentSeparateDocuments:
		// All records written as independent rows; children carry a
		// `parent` field only, no shared routing key.
		rows := make([]Metadata, 0, len(list))
		rows = append(rows, container)
		for _, child := range children {
			c := NewMetadata()
			c.Merge(child)
			c.Set("parent", containerID)
			rows = append(rows, c)
		}
		return rows, nil

	default:
		return nil, &EmitterError{Reason: fmt.Sprintf("unknown attachment strategy %q", strategy)}
	}
}
