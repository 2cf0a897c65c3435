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
)

// TextParser is the reference in-process parser: it reads the whole stream,
// runs the default media-type/charset detector chains, and stores the
// content verbatim. Every real format decoder (PDF, Office, images, OCR)
// stays out of scope per spec §1; this stand-in exists to make the pipes
// core's end-to-end scenarios (spec §8) executable without one.
type TextParser struct {
	mediaDetectors   []MediaTypeDetector
	charsetDetectors []CharsetDetector
}

// NewTextParser returns a TextParser wired to the default detector chains.
func NewTextParser() *TextParser {
	return &TextParser{
		mediaDetectors:   DefaultMediaTypeDetectors(),
		charsetDetectors: DefaultCharsetDetectors(),
	}
}

func (p *TextParser) Parse(stream io.Reader, meta Metadata, pc ParseContext, embed EmbeddedParser) ([]Metadata, error) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrorOther, Cause: err}
	}

	br := bytes.NewReader(data)
	mediaType := DetectMediaType(p.mediaDetectors, br, meta)
	charset := DetectCharset(p.charsetDetectors, data, "")

	container := NewMetadata()
	container.Merge(meta)
	container.Set(ContentTypeField, mediaType)
	container.Set("Content-Encoding", charset)
	container.Set("X-TIKA:content", string(data))

	return []Metadata{container}, nil
}
