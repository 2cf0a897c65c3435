/***** BEGIN LICENSE BLOCK *****
# This Source Code Form is subject to the terms of the Mozilla Public
# License, v. 2.0. If a copy of the MPL was not distributed with this file,
# You can obtain one at http://mozilla.org/MPL/2.0/.
#
# The Initial Developer of the Original Code is the Mozilla Foundation.
# Portions created by the Initial Developer are Copyright (C) 2012-2015
# the Initial Developer. All Rights Reserved.
#
# Contributor(s):
#   Rob Miller (rmiller@mozilla.com)
#
# ***** END LICENSE BLOCK *****/

package pipeline

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
)

const invalidEnvChars = "\n\r\t "

var (
	invalidEnvPrefix     = []byte("%ENV[")
	ErrMissingCloseDelim = errors.New("missing closing delimiter")
	ErrInvalidChars      = errors.New("invalid characters in environment variable name")
)

// ReplaceEnvsFile reads path and substitutes any %ENV[VAR] references with
// the named environment variable's value.
func ReplaceEnvsFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	r, err := EnvSub(file)
	if err != nil {
		return "", err
	}
	contents, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

// EnvSub scans r for %ENV[VAR] markers and substitutes the corresponding
// environment variable's value.
func EnvSub(r io.Reader) (io.Reader, error) {
	bufIn := bufio.NewReader(r)
	bufOut := new(bytes.Buffer)
	for {
		chunk, err := bufIn.ReadBytes(byte('%'))
		if err != nil {
			if err == io.EOF {
				bufOut.Write(chunk)
				break
			}
			return nil, err
		}
		bufOut.Write(chunk[:len(chunk)-1])

		tmp, err := bufIn.Peek(4)
		if err != nil {
			if err == io.EOF {
				bufOut.WriteRune('%')
				bufOut.Write(tmp)
				break
			}
			return nil, err
		}

		if string(tmp) == "ENV[" {
			if _, err = bufIn.ReadBytes(byte('[')); err != nil {
				return nil, err
			}
			chunk, err = bufIn.ReadBytes(byte(']'))
			if err != nil {
				if err == io.EOF {
					return nil, ErrMissingCloseDelim
				}
				return nil, err
			}
			if bytes.IndexAny(chunk, invalidEnvChars) != -1 ||
				bytes.Index(chunk, invalidEnvPrefix) != -1 {
				return nil, ErrInvalidChars
			}
			varName := string(chunk[:len(chunk)-1])
			bufOut.WriteString(os.Getenv(varName))
		} else {
			bufOut.WriteRune('%')
		}
	}
	return bufOut, nil
}

// ApplyEnvOverrides mutates cfg in place per spec §6: PIPES_NUM_WORKERS,
// PIPES_PARSE_TIMEOUT_MS and PIPES_LOG_LEVEL take precedence over whatever
// the config file specified.
func ApplyEnvOverrides(cfg *PipesConfig) {
	if v := os.Getenv("PIPES_NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumWorkers = n
		}
	}
	if v := os.Getenv("PIPES_PARSE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ParseTimeoutMillis = n
		}
	}
	if v := os.Getenv("PIPES_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
