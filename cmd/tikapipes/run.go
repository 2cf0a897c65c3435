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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/apache/tika-pipes/pipeline"
)

func newRunCmd(logLevel *string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an orchestrator against a config file until end-of-stream or signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runPipes(configPath, *logLevel); err != nil {
				return classifyRunErr(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the pipes TOML config file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runPipes(configPath, logLevel string) error {
	logger := pipeline.NewLogger(logLevel)

	reg := pipeline.NewRegistry(logger)
	if err := reg.LoadConfig(configPath); err != nil {
		return err
	}
	// Derive workQueueCapacity/maxForkedChildren from numWorkers before
	// anything sizes a pool off them: buildGateway below constructs the
	// forked-worker Supervisor straight from reg.Pipes.
	reg.Pipes.ResolveDefaults()
	if logLevel == "info" && reg.Pipes.LogLevel != "" {
		logger = pipeline.NewLogger(reg.Pipes.LogLevel)
		reg.Logger = logger
	}

	if reg.Pipes.Iterator == "" {
		return &pipeline.ConfigError{Section: "pipes.iterator", Reason: "must name the iterator instance id that drives this run"}
	}
	if reg.Pipes.Reporter == "" {
		return &pipeline.ConfigError{Section: "pipes.reporter", Reason: "must name the reporter instance id that drives this run"}
	}

	gateway, cleanup, err := buildGateway(reg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := pipeline.NewOrchestrator(reg, gateway, reg.Pipes.Iterator, reg.Pipes.Reporter, nil, false, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s (elapsed %s)\n", summary.String(), humanize.Comma(int64(summary.Elapsed.Milliseconds()))+"ms")

	if ctx.Err() != nil {
		return exitCodeError{code: exitInterrupted, cause: ctx.Err()}
	}
	return nil
}

// buildGateway wires an in-process or forked-worker parser gateway
// depending on pipes.useForkedWorkers, per spec §4.4/§4.8. The forked path
// execs this same binary in child mode (spec §4.8 step 1), matching the
// teacher's own daemon's self-supervision idiom.
func buildGateway(reg *pipeline.Registry, logger *pipeline.Logger) (*pipeline.ParserGateway, func(), error) {
	parser := pipeline.NewTextParser()
	if !reg.Pipes.UseForkedWorkers {
		return pipeline.NewInProcessGateway(parser, reg.Pipes.MaxEmbeddedDepth), func() {}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving executable for forked workers: %w", err)
	}

	spawn := func() (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
		cmd := exec.Command(exe, "__child")
		cmd.Env = append(os.Environ(), fmt.Sprintf("TIKA_PIPES_MEMORY_HIGH_WATER_MARK=%d", reg.Pipes.MemoryHighWaterMark))
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, nil, err
		}
		return cmd, stdin, stdout, nil
	}

	sup, err := pipeline.NewSupervisor(reg.Pipes, spawn, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("starting forked-worker pool: %w", err)
	}
	return pipeline.NewForkedGateway(sup, reg.Pipes.MaxEmbeddedDepth), func() { sup.Shutdown() }, nil
}
