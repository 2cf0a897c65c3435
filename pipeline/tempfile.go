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
	"time"

	"github.com/pborman/uuid"
)

// TempDirName is the name prefix, followed by a random uuid, of the run-scoped
// subdirectory that RunScopedTempDir creates under a configured tempDir or
// os.TempDir().
const TempDirName = "tika-pipes-run-"

// RunScopedTempDir creates (if needed) and returns a directory unique to
// this orchestrator run, under base (or os.TempDir() if base is empty).
func RunScopedTempDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, TempDirName+uuid.NewRandom().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// SpoolToTemp copies src into a new file under dir and returns a
// ReadCloser backed by that file; closing the returned reader deletes the
// file (spec §4.2's spoolToTemp guarantee).
func SpoolToTemp(dir string, src io.Reader) (io.ReadCloser, error) {
	f, err := os.CreateTemp(dir, "spool-*")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &spoolToTempReader{ReadCloser: f, path: path}, nil
}

func removeTempFile(path string) error {
	if path == "" {
		return nil
	}
	return os.Remove(path)
}

// CleanStaleTempDirs removes any run-scoped temp directory under base older
// than retention, per spec §5's crash-recovery-at-startup rule.
func CleanStaleTempDirs(base string, retention time.Duration, logger *Logger) {
	if base == "" {
		base = os.TempDir()
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-retention)
	prefix := TempDirName
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) < len(prefix) || e.Name()[:len(prefix)] != prefix {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(base, e.Name())
			if err := os.RemoveAll(full); err != nil && logger != nil {
				logger.Warn("failed to remove stale temp dir", "dir", full, "err", err)
			} else if logger != nil {
				logger.Info(fmt.Sprintf("removed stale temp dir %s", full))
			}
		}
	}
}
