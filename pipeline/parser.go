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

// EmbeddedParser is the callback a Parser invokes to recurse into a nested
// document (an archive entry, an email attachment). Passing the call
// through the gateway, rather than letting the parser call itself
// directly, is what lets the gateway enforce the recursion-depth bound from
// spec §4.4.
type EmbeddedParser func(stream io.Reader, meta Metadata, pc ParseContext) ([]Metadata, error)

// Parser is the contract a concrete content-parser satisfies. The pipes
// core never implements a real parser (format detectors, PDF/Office/image
// decoders stay out of scope per spec §1); it only consumes this interface,
// optionally dispatching it through the forked-worker supervisor instead of
// calling it in-process.
type Parser interface {
	// Parse produces a non-empty metadata list: index 0 is the container,
	// 1..n are embedded children discovered via embed. Any failure is
	// returned as *ParseError with a tagged Kind.
	Parse(stream io.Reader, meta Metadata, pc ParseContext, embed EmbeddedParser) ([]Metadata, error)
}

// SkippedDeepEmbeddedContentType is the field the gateway stamps onto a
// child's placeholder record when maxEmbeddedDepth is reached, per
// spec §4.4.
const SkippedDeepEmbeddedContentType = "X-TIKA:skipped-deep-embedded-content-type"

// MediaTypeDetector is one link in the media-type detection chain (spec
// §4.4): magic bytes, container-aware, glob, or fetcher-supplied hint.
// First non-empty answer wins; ties broken by registration order.
type MediaTypeDetector interface {
	Detect(stream io.Reader, meta Metadata) (mediaType string, err error)
}

// CharsetDetector is one link in the three-detector charset chain (spec
// §4.4): markup-declared, statistical, ICU-style.
type CharsetDetector interface {
	Detect(sample []byte, hint string) (charset string, confident bool)
}

// DetectMediaType runs detectors in order and returns the first non-empty
// answer.
func DetectMediaType(detectors []MediaTypeDetector, stream io.Reader, meta Metadata) string {
	for _, d := range detectors {
		mt, err := d.Detect(stream, meta)
		if err == nil && mt != "" {
			return mt
		}
	}
	return "application/octet-stream"
}

// DetectCharset runs detectors in priority order, downgrading
// Windows-1252 to ISO-8859-1 when no CR/LF is observed and no hint was
// supplied, per spec §4.4.
func DetectCharset(detectors []CharsetDetector, sample []byte, hint string) string {
	for _, d := range detectors {
		if cs, ok := d.Detect(sample, hint); ok {
			if cs == "Windows-1252" && hint == "" && !containsCRLF(sample) {
				return "ISO-8859-1"
			}
			return cs
		}
	}
	return "UTF-8"
}

func containsCRLF(b []byte) bool {
	for _, c := range b {
		if c == '\r' || c == '\n' {
			return true
		}
	}
	return false
}
