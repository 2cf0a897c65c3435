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
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
)

// RestartRequestedExitCode is the code a forked child exits with after its
// own memory guard trips (spec §4.8 step 4). The supervisor's watchExit
// treats this the same as any other idle-time exit: silent replacement.
const RestartRequestedExitCode = 42

// ChildMainConfig wires one forked child process: the in-process parser it
// holds, the memory ceiling it self-monitors against, and the pipe ends the
// supervisor bound to its stdin/stdout.
type ChildMainConfig struct {
	Parser              Parser
	MemoryHighWaterMark int64
	In                  io.Reader
	Out                 io.Writer
}

// ChildMain is the forked-worker's main loop (spec §4.8): it sends READY,
// then serves PARSE/PING/SHUTDOWN frames until the pipe closes or it's told
// to stop. cmd/tikapipes invokes this when started in child mode; nothing
// in the pipes package itself execs a child — that's the supervisor's job
// via the ChildSpawner it's given.
func ChildMain(conf ChildMainConfig) error {
	if err := WriteFrame(conf.Out, FrameReady, nil); err != nil {
		return fmt.Errorf("child: writing READY: %w", err)
	}

	for {
		frameType, payload, err := ReadFrame(conf.In)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("child: reading frame: %w", err)
		}

		switch frameType {
		case FramePing:
			if err := WriteFrame(conf.Out, FramePong, nil); err != nil {
				return fmt.Errorf("child: writing PONG: %w", err)
			}

		case FrameShutdown:
			return nil

		case FrameParse:
			req, derr := DecodeParseRequest(payload)
			if derr != nil {
				_ = WriteFrame(conf.Out, FrameError, EncodeErrorFrame("", derr.Error()))
				continue
			}
			reply := conf.handleParse(req)
			if err := WriteFrame(conf.Out, FrameResult, EncodeParseReply(reply)); err != nil {
				return fmt.Errorf("child: writing RESULT: %w", err)
			}
			if conf.overMemoryLimit() {
				os.Exit(RestartRequestedExitCode)
			}

		default:
			_ = WriteFrame(conf.Out, FrameError, EncodeErrorFrame("", fmt.Sprintf("unexpected frame type %d", frameType)))
		}
	}
}

func (c ChildMainConfig) handleParse(req ParseRequest) ParseReply {
	var stream io.Reader
	if req.TempFilePath != "" {
		f, err := os.Open(req.TempFilePath)
		if err != nil {
			return ParseReply{ID: req.ID, Status: StatusUnspecifiedCrash}
		}
		defer f.Close()
		stream = f
	} else {
		stream = bytes.NewReader(req.InlinePayload)
	}

	pc := ParseContext{Ctx: context.Background(), MaxEmbeddedDepth: req.MaxDepth}
	var embed EmbeddedParser
	embed = func(childStream io.Reader, childMeta Metadata, childPC ParseContext) ([]Metadata, error) {
		childPC = childPC.WithEmbeddedDepth()
		if childPC.MaxEmbeddedDepth == 0 {
			childPC.MaxEmbeddedDepth = req.MaxDepth
		}
		if childPC.EmbeddedDepth >= childPC.MaxEmbeddedDepth {
			placeholder := NewMetadata()
			placeholder.Merge(childMeta)
			if ct, ok := childMeta.Get(ContentTypeField); ok {
				placeholder.Set(SkippedDeepEmbeddedContentType, ct)
			}
			placeholder.Set(ContentTypeField, "application/x-tika-skipped-deep-embedded")
			return []Metadata{placeholder}, nil
		}
		return c.Parser.Parse(childStream, childMeta, childPC, embed)
	}

	metaList, err := c.Parser.Parse(stream, req.Meta, pc, embed)
	if err != nil {
		return ParseReply{ID: req.ID, Status: StatusParseExceptionNoEmit, Metadata: metaList}
	}
	return ParseReply{ID: req.ID, Status: StatusParseSuccess, Metadata: metaList}
}

// overMemoryLimit reports whether the process's resident heap has crossed
// MemoryHighWaterMark, per spec §4.8 step 4. Go's runtime doesn't expose
// true RSS cheaply without a platform-specific read of /proc, so this
// checks heap-in-use via runtime.ReadMemStats, which is the stdlib's own
// measure of what the child itself has allocated.
func (c ChildMainConfig) overMemoryLimit() bool {
	if c.MemoryHighWaterMark <= 0 {
		return false
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int64(stats.HeapInuse) > c.MemoryHighWaterMark
}
