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
	"io"
	"os"
	"path/filepath"
)

func init() {
	RegisterExtension(CategoryFetcher, "fs-fetcher", func() Extension { return new(FSFetcher) })
}

// FSFetcherConfig is the fs-fetcher's typed option block.
type FSFetcherConfig struct {
	BasePath     string `toml:"basePath"`
	SpoolToTemp  bool   `toml:"spoolToTemp"`
	TempDir      string `toml:"tempDir"`
}

// FSFetcher reads files relative to a base directory. It's the reference
// fetcher used by scenario 1/4 of spec §8 and by tests; real object-store
// fetchers are out of scope per spec §1.
type FSFetcher struct {
	conf FSFetcherConfig
}

func (f *FSFetcher) ConfigStruct() interface{} {
	return &FSFetcherConfig{}
}

func (f *FSFetcher) Init(config interface{}) error {
	conf, ok := config.(*FSFetcherConfig)
	if !ok {
		return fmt.Errorf("fs-fetcher: unexpected config type %T", config)
	}
	f.conf = *conf
	return nil
}

func (f *FSFetcher) Fetch(fk FetchKey, meta *Metadata, pc ParseContext) (io.ReadCloser, error) {
	path := fk.Key
	if f.conf.BasePath != "" {
		path = filepath.Join(f.conf.BasePath, fk.Key)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FetchNotFound{FetchKey: fk.Key}
		}
		return nil, &FetchException{FetchKey: fk.Key, Cause: err}
	}

	if info, err := file.Stat(); err == nil {
		meta.Set("X-TIKA:fs:size", fmt.Sprintf("%d", info.Size()))
	}

	var stream io.ReadCloser = file
	if fk.RangeSet {
		stream, err = rangeReader(file, fk.Start, fk.End)
		if err != nil {
			file.Close()
			return nil, &FetchException{FetchKey: fk.Key, Cause: err}
		}
	}

	if f.conf.SpoolToTemp {
		dir := f.conf.TempDir
		spooled, err := SpoolToTemp(dir, stream)
		stream.Close()
		if err != nil {
			return nil, &FetchException{FetchKey: fk.Key, Cause: err}
		}
		return spooled, nil
	}
	return stream, nil
}

// rangeReader returns a ReadCloser over exactly [start, end] inclusive of
// f, per spec §4.2's byte-range guarantee.
func rangeReader(f *os.File, start, end int64) (io.ReadCloser, error) {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	n := end - start + 1
	if n < 0 {
		n = 0
	}
	return &limitedFile{f: f, r: io.LimitReader(f, n)}, nil
}

type limitedFile struct {
	f *os.File
	r io.Reader
}

func (l *limitedFile) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedFile) Close() error                { return l.f.Close() }
