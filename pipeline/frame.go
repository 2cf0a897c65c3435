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
	"encoding/binary"
	"fmt"
	"io"
)

// Frame types, per spec §6. Every frame is [type:uint8][length:uint32 big
// endian][payload]. The payload itself is hand-rolled length-prefixed
// strings and counted maps rather than a language-specific serialization
// (gob/protobuf), because the wire format must stay legible to a child
// process written in any language.
const (
	FrameReady    byte = 0x01
	FrameParse    byte = 0x02
	FrameResult   byte = 0x03
	FrameError    byte = 0x04
	FramePing     byte = 0x05
	FramePong     byte = 0x06
	FrameShutdown byte = 0x07
)

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, frameType byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (frameType byte, payload []byte, err error) {
	header := make([]byte, 5)
	if _, err = io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	frameType = header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length == 0 {
		return frameType, nil, nil
	}
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return frameType, payload, nil
}

// encodeString appends a 4-byte-length-prefixed string to buf.
func encodeString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

// decodeString reads a length-prefixed string from the front of buf,
// returning the value and the remaining bytes.
func decodeString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("frame: truncated string length")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, fmt.Errorf("frame: truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}

// encodeUint32 appends a 4-byte big-endian integer.
func encodeUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func decodeUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("frame: truncated uint32")
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

// encodeMetadata serializes one Metadata record as a counted map of
// name -> counted list of values.
func encodeMetadata(buf []byte, m Metadata) []byte {
	names := m.Names()
	buf = encodeUint32(buf, uint32(len(names)))
	for _, name := range names {
		buf = encodeString(buf, name)
		values := m.GetAll(name)
		buf = encodeUint32(buf, uint32(len(values)))
		for _, v := range values {
			buf = encodeString(buf, v)
		}
	}
	return buf
}

func decodeMetadata(buf []byte) (Metadata, []byte, error) {
	m := NewMetadata()
	count, buf, err := decodeUint32(buf)
	if err != nil {
		return m, nil, err
	}
	for i := uint32(0); i < count; i++ {
		var name string
		name, buf, err = decodeString(buf)
		if err != nil {
			return m, nil, err
		}
		var n uint32
		n, buf, err = decodeUint32(buf)
		if err != nil {
			return m, nil, err
		}
		for j := uint32(0); j < n; j++ {
			var v string
			v, buf, err = decodeString(buf)
			if err != nil {
				return m, nil, err
			}
			m.Add(name, v)
		}
	}
	return m, buf, nil
}

func encodeMetadataList(list []Metadata) []byte {
	var buf []byte
	buf = encodeUint32(buf, uint32(len(list)))
	for _, m := range list {
		buf = encodeMetadata(buf, m)
	}
	return buf
}

func decodeMetadataList(buf []byte) ([]Metadata, []byte, error) {
	count, buf, err := decodeUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	list := make([]Metadata, 0, count)
	for i := uint32(0); i < count; i++ {
		var m Metadata
		m, buf, err = decodeMetadata(buf)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, m)
	}
	return list, buf, nil
}

// ParseRequest is the payload of a PARSE frame: the tuple id, the parse
// options, and a byte-stream reference that's either inline bytes or a path
// to a scoped temp file the child reads directly (spec §4.8, used when the
// stream exceeds inlineThresholdBytes).
type ParseRequest struct {
	ID             string
	Meta           Metadata
	MaxDepth       int
	InlinePayload  []byte
	TempFilePath   string
}

// EncodeParseRequest serializes req into a PARSE frame payload.
func EncodeParseRequest(req ParseRequest) []byte {
	var buf []byte
	buf = encodeString(buf, req.ID)
	buf = encodeMetadata(buf, req.Meta)
	buf = encodeUint32(buf, uint32(req.MaxDepth))
	buf = encodeString(buf, req.TempFilePath)
	buf = encodeUint32(buf, uint32(len(req.InlinePayload)))
	buf = append(buf, req.InlinePayload...)
	return buf
}

// DecodeParseRequest deserializes a PARSE frame payload.
func DecodeParseRequest(payload []byte) (ParseRequest, error) {
	var req ParseRequest
	var err error
	req.ID, payload, err = decodeString(payload)
	if err != nil {
		return req, err
	}
	req.Meta, payload, err = decodeMetadata(payload)
	if err != nil {
		return req, err
	}
	var maxDepth uint32
	maxDepth, payload, err = decodeUint32(payload)
	if err != nil {
		return req, err
	}
	req.MaxDepth = int(maxDepth)
	req.TempFilePath, payload, err = decodeString(payload)
	if err != nil {
		return req, err
	}
	var n uint32
	n, payload, err = decodeUint32(payload)
	if err != nil {
		return req, err
	}
	if uint32(len(payload)) < n {
		return req, fmt.Errorf("frame: truncated inline payload")
	}
	req.InlinePayload = payload[:n]
	return req, nil
}

// ParseReply is the payload of a RESULT frame.
type ParseReply struct {
	ID       string
	Status   Status
	Metadata []Metadata
}

// EncodeParseReply serializes reply into a RESULT frame payload.
func EncodeParseReply(reply ParseReply) []byte {
	var buf []byte
	buf = encodeString(buf, reply.ID)
	buf = encodeString(buf, string(reply.Status))
	buf = append(buf, encodeMetadataList(reply.Metadata)...)
	return buf
}

// DecodeParseReply deserializes a RESULT frame payload.
func DecodeParseReply(payload []byte) (ParseReply, error) {
	var reply ParseReply
	var err error
	var status string
	reply.ID, payload, err = decodeString(payload)
	if err != nil {
		return reply, err
	}
	status, payload, err = decodeString(payload)
	if err != nil {
		return reply, err
	}
	reply.Status = Status(status)
	reply.Metadata, _, err = decodeMetadataList(payload)
	if err != nil {
		return reply, err
	}
	return reply, nil
}

// EncodeErrorFrame serializes an ERROR frame payload: request id + message.
func EncodeErrorFrame(id, message string) []byte {
	var buf []byte
	buf = encodeString(buf, id)
	buf = encodeString(buf, message)
	return buf
}

// DecodeErrorFrame deserializes an ERROR frame payload.
func DecodeErrorFrame(payload []byte) (id, message string, err error) {
	id, payload, err = decodeString(payload)
	if err != nil {
		return "", "", err
	}
	message, _, err = decodeString(payload)
	return id, message, err
}
