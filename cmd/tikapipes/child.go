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
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/apache/tika-pipes/pipeline"
)

// newChildCmd wires pipeline.ChildMain as a hidden subcommand: run.go execs
// this binary with "__child" when pipes.useForkedWorkers is set (spec §4.8
// step 1), so a forked worker is just this same binary talking the framed
// wire protocol over its own stdin/stdout instead of parsing flags.
func newChildCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "__child",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			highWaterMark, _ := strconv.ParseInt(os.Getenv("TIKA_PIPES_MEMORY_HIGH_WATER_MARK"), 10, 64)
			return pipeline.ChildMain(pipeline.ChildMainConfig{
				Parser:              pipeline.NewTextParser(),
				MemoryHighWaterMark: highWaterMark,
				In:                  os.Stdin,
				Out:                 os.Stdout,
			})
		},
	}
}
