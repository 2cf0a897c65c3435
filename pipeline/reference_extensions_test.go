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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSFetcherReadsFileRelativeToBasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("hello"), 0o644))

	f := &FSFetcher{}
	require.NoError(t, f.Init(&FSFetcherConfig{BasePath: dir}))

	meta := NewMetadata()
	stream, err := f.Fetch(FetchKey{Key: "doc.txt"}, &meta, ParseContext{})
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	size, ok := meta.Get("X-TIKA:fs:size")
	require.True(t, ok)
	require.Equal(t, "5", size)
}

func TestFSFetcherMissingFileReturnsFetchNotFound(t *testing.T) {
	f := &FSFetcher{}
	require.NoError(t, f.Init(&FSFetcherConfig{BasePath: t.TempDir()}))

	meta := NewMetadata()
	_, err := f.Fetch(FetchKey{Key: "missing.txt"}, &meta, ParseContext{})
	var notFound *FetchNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestFSFetcherHonoursByteRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("0123456789"), 0o644))

	f := &FSFetcher{}
	require.NoError(t, f.Init(&FSFetcherConfig{BasePath: dir}))

	meta := NewMetadata()
	stream, err := f.Fetch(FetchKey{Key: "doc.txt", RangeSet: true, Start: 2, End: 4}, &meta, ParseContext{})
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "234", string(data))
}

func TestFSEmitterWritesOneFilePerEmitKey(t *testing.T) {
	dir := t.TempDir()
	e := &FSEmitter{}
	require.NoError(t, e.Init(&FSEmitterConfig{BasePath: dir}))

	container := NewMetadata()
	container.Set("X-TIKA:content", "body")
	require.NoError(t, e.Emit(EmitKey{Key: "doc-1.json"}, []Metadata{container}, ParseContext{}))

	data, err := os.ReadFile(filepath.Join(dir, "doc-1.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "body")
}

func TestDirectoryIteratorWalksTreeOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644))

	it := &DirectoryIterator{}
	require.NoError(t, it.Init(&DirectoryIteratorConfig{RootPath: dir, FetcherID: "ft", EmitterID: "em"}))

	var tuples []FetchEmitTuple
	for {
		tuple, err := it.Next()
		if err == ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		tuples = append(tuples, tuple)
	}
	require.Len(t, tuples, 2)
	require.Equal(t, TotalCountCompleted, it.TotalCount().Status)
}

// TestDirectoryIteratorNextAndTotalCountRaceSafely drives Next() and
// TotalCount() concurrently from separate goroutines, the same way
// Orchestrator.Run's iterator-driver and total-count loop do, so a missing
// lock around d.pos/d.files shows up under -race.
func TestDirectoryIteratorNextAndTotalCountRaceSafely(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), []byte("x"), 0o644))
	}

	it := &DirectoryIterator{}
	require.NoError(t, it.Init(&DirectoryIteratorConfig{RootPath: dir, FetcherID: "ft", EmitterID: "em"}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, err := it.Next()
			if err == ErrEndOfStream {
				return
			}
			require.NoError(t, err)
		}
	}()

	for i := 0; i < 100; i++ {
		_ = it.TotalCount()
	}
	<-done
	require.Equal(t, TotalCountCompleted, it.TotalCount().Status)
}

func TestSpoolToTempDeletesFileOnClose(t *testing.T) {
	dir := t.TempDir()
	stream, err := SpoolToTemp(dir, strings.NewReader("spooled body"))
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "spooled body", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, stream.Close())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
