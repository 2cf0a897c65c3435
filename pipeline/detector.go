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
	"unicode/utf8"
)

// MagicByteDetector recognizes a handful of well-known signatures. A stand
// in for the real format-detector chain, which stays out of scope per
// spec §1.
type MagicByteDetector struct{}

func (MagicByteDetector) Detect(stream io.Reader, meta Metadata) (string, error) {
	br, ok := stream.(*bytes.Reader)
	if !ok {
		return "", nil
	}
	pos, _ := br.Seek(0, io.SeekCurrent)
	defer br.Seek(pos, io.SeekStart)
	buf := make([]byte, 8)
	n, _ := br.ReadAt(buf, 0)
	buf = buf[:n]
	switch {
	case bytes.HasPrefix(buf, []byte("%PDF")):
		return "application/pdf", nil
	case bytes.HasPrefix(buf, []byte{0x50, 0x4B, 0x03, 0x04}):
		return "application/zip", nil
	case bytes.HasPrefix(buf, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", nil
	case bytes.HasPrefix(buf, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png", nil
	}
	return "", nil
}

// FetcherHintDetector trusts a media-type hint the fetcher stamped onto
// metadata (e.g. an HTTP Content-Type header).
type FetcherHintDetector struct{}

func (FetcherHintDetector) Detect(stream io.Reader, meta Metadata) (string, error) {
	if mt, ok := meta.Get("X-TIKA:fetcher:content-type"); ok {
		return mt, nil
	}
	return "", nil
}

// TextFallbackDetector declares plain text when the sample looks like valid
// UTF-8 text and nothing else matched.
type TextFallbackDetector struct{}

func (TextFallbackDetector) Detect(stream io.Reader, meta Metadata) (string, error) {
	br, ok := stream.(*bytes.Reader)
	if !ok {
		return "text/plain", nil
	}
	pos, _ := br.Seek(0, io.SeekCurrent)
	defer br.Seek(pos, io.SeekStart)
	buf := make([]byte, 512)
	n, _ := br.ReadAt(buf, 0)
	if utf8.Valid(buf[:n]) {
		return "text/plain", nil
	}
	return "application/octet-stream", nil
}

// DefaultMediaTypeDetectors is the registration-order chain used when a
// config doesn't supply its own: magic bytes, then a fetcher-supplied hint,
// then the text fallback, per spec §4.4.
func DefaultMediaTypeDetectors() []MediaTypeDetector {
	return []MediaTypeDetector{MagicByteDetector{}, FetcherHintDetector{}, TextFallbackDetector{}}
}

// MarkupCharsetDetector looks for a declared charset in an XML/HTML
// prologue.
type MarkupCharsetDetector struct{}

func (MarkupCharsetDetector) Detect(sample []byte, hint string) (string, bool) {
	idx := bytes.Index(sample, []byte("charset="))
	if idx < 0 {
		return "", false
	}
	rest := sample[idx+len("charset="):]
	end := bytes.IndexAny(rest, "\"' \t\r\n>?")
	if end < 0 {
		end = len(rest)
	}
	cs := string(rest[:end])
	if cs == "" {
		return "", false
	}
	return cs, true
}

// StatisticalCharsetDetector is a minimal stand-in for a full ICU-style
// statistical detector: any valid UTF-8 input (ASCII included) is UTF-8;
// input that is not valid UTF-8 and has a byte outside the 7-bit range
// trips Windows-1252 (left to DetectCharset's downgrade rule).
type StatisticalCharsetDetector struct{}

func (StatisticalCharsetDetector) Detect(sample []byte, hint string) (string, bool) {
	if utf8.Valid(sample) {
		return "UTF-8", true
	}
	for _, b := range sample {
		if b >= 0x80 {
			return "Windows-1252", true
		}
	}
	return "", false
}

// HintCharsetDetector is the lowest-priority, ICU-style stand-in: it simply
// trusts whatever hint was supplied (e.g. from an HTTP header), if any.
type HintCharsetDetector struct{}

func (HintCharsetDetector) Detect(sample []byte, hint string) (string, bool) {
	if hint == "" {
		return "", false
	}
	return hint, true
}

// DefaultCharsetDetectors is the three-detector priority chain from
// spec §4.4: markup-declared, statistical, ICU-style/hint.
func DefaultCharsetDetectors() []CharsetDetector {
	return []CharsetDetector{MarkupCharsetDetector{}, StatisticalCharsetDetector{}, HintCharsetDetector{}}
}
