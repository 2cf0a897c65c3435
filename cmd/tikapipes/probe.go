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
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/apache/tika-pipes/pipeline"
)

var probeCategories = []string{
	pipeline.CategoryFetcher,
	pipeline.CategoryIterator,
	pipeline.CategoryEmitter,
	pipeline.CategoryReporter,
}

func newProbeCmd(logLevel *string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Validate a config file and list the extension instances it declares",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := probeConfig(configPath, *logLevel); err != nil {
				return classifyRunErr(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the pipes TOML config file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func probeConfig(configPath, logLevel string) error {
	logger := pipeline.NewLogger(logLevel)
	reg := pipeline.NewRegistry(logger)
	if err := reg.LoadConfig(configPath); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Instance ID", "Type"})

	total := 0
	for _, category := range probeCategories {
		for _, instanceID := range reg.List(category) {
			typeName, _ := reg.TypeOf(category, instanceID)
			table.Append([]string{category, instanceID, typeName})
			total++
		}
	}
	table.Render()

	if errs := reg.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return &pipeline.ConfigError{Section: "probe", Reason: fmt.Sprintf("%d extension(s) failed to build", len(errs))}
	}

	if reg.Pipes.Iterator != "" {
		if _, err := reg.Build(pipeline.CategoryIterator, reg.Pipes.Iterator); err != nil {
			return err
		}
	}
	if reg.Pipes.Reporter != "" {
		if _, err := reg.Build(pipeline.CategoryReporter, reg.Pipes.Reporter); err != nil {
			return err
		}
	}

	fmt.Printf("%d extension instance(s) declared, config OK\n", total)
	return nil
}
