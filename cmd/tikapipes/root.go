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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apache/tika-pipes/pipeline"
)

// Exit codes from spec §6.
const (
	exitSuccess         = 0
	exitUnexpectedError = 1
	exitConfigError     = 2
	exitMissingExtension = 3
	exitInterrupted      = 130
)

// Execute builds and runs the tikapipes command tree, returning the process
// exit code spec §6 mandates rather than calling os.Exit itself, so main
// stays a single line.
func Execute() int {
	var logLevel string

	root := &cobra.Command{
		Use:           "tikapipes",
		Short:         "Tika Pipes concurrent content-extraction runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(&logLevel))
	root.AddCommand(newProbeCmd(&logLevel))
	root.AddCommand(newChildCmd())

	if err := root.Execute(); err != nil {
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.code != exitSuccess {
				fmt.Fprintln(os.Stderr, exitErr.cause)
			}
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUnexpectedError
	}
	return exitSuccess
}

// exitCodeError lets a subcommand's RunE communicate the exact exit code
// spec §6 requires without resorting to a global or an os.Exit call
// mid-command (which would skip cobra's own error printing suppression).
type exitCodeError struct {
	code  int
	cause error
}

func (e exitCodeError) Error() string { return e.cause.Error() }
func (e exitCodeError) Unwrap() error { return e.cause }

func classifyRunErr(err error) exitCodeError {
	var cfgErr *pipeline.ConfigError
	if errors.As(err, &cfgErr) {
		return exitCodeError{code: exitConfigError, cause: err}
	}
	var noExt *pipeline.NoSuchExtension
	if errors.As(err, &noExt) {
		return exitCodeError{code: exitMissingExtension, cause: err}
	}
	return exitCodeError{code: exitUnexpectedError, cause: err}
}
