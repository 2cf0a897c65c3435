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
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

func init() {
	RegisterExtension(CategoryIterator, "directory-iterator", func() Extension { return new(DirectoryIterator) })
}

// DirectoryIteratorConfig is the directory-iterator's typed option block.
type DirectoryIteratorConfig struct {
	RootPath    string `toml:"rootPath"`
	FetcherID   string `toml:"fetcherId"`
	EmitterID   string `toml:"emitterId"`
	EmitSuffix  string `toml:"emitSuffix"`
}

// DirectoryIterator walks a directory tree once, yielding one tuple per
// regular file found. It's finite and supports TotalCount, per spec §4.3.
type DirectoryIterator struct {
	conf DirectoryIteratorConfig

	mu    sync.Mutex
	files []string
	pos   int
}

func (d *DirectoryIterator) ConfigStruct() interface{} { return &DirectoryIteratorConfig{} }

func (d *DirectoryIterator) Init(config interface{}) error {
	conf, ok := config.(*DirectoryIteratorConfig)
	if !ok {
		return fmt.Errorf("directory-iterator: unexpected config type %T", config)
	}
	if conf.EmitSuffix == "" {
		conf.EmitSuffix = ".json"
	}
	d.conf = *conf
	return filepath.Walk(d.conf.RootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			d.files = append(d.files, path)
		}
		return nil
	})
}

// Next implements Iterator.
func (d *DirectoryIterator) Next() (FetchEmitTuple, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.files) {
		return FetchEmitTuple{}, ErrEndOfStream
	}
	path := d.files[d.pos]
	d.pos++
	rel, err := filepath.Rel(d.conf.RootPath, path)
	if err != nil {
		rel = path
	}
	fk := FetchKey{FetcherID: d.conf.FetcherID, Key: path}
	ek := EmitKey{EmitterID: d.conf.EmitterID, Key: rel + d.conf.EmitSuffix}
	return NewTuple(fk, ek, NewMetadata(), OnParseExceptionSkip), nil
}

// TotalCount implements Iterator.
func (d *DirectoryIterator) TotalCount() TotalCountResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.files) {
		return TotalCountResult{Count: int64(len(d.files)), Status: TotalCountCompleted}
	}
	return TotalCountResult{Count: int64(len(d.files)), Status: TotalCountNotCompleted}
}
