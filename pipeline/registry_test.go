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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLoadConfigBuildsDeclaredInstances(t *testing.T) {
	reg := loadMemRegistry(t, memConfig)

	require.Contains(t, reg.List(CategoryFetcher), "ft")
	typeName, ok := reg.TypeOf(CategoryFetcher, "ft")
	require.True(t, ok)
	require.Equal(t, "mem-fetcher", typeName)

	fetcher, err := reg.Build(CategoryFetcher, "ft")
	require.NoError(t, err)
	_, isFetcher := fetcher.(Fetcher)
	require.True(t, isFetcher)
}

func TestRegistryBuildUnknownInstanceReturnsNoSuchExtension(t *testing.T) {
	reg := loadMemRegistry(t, memConfig)
	_, err := reg.Build(CategoryFetcher, "does-not-exist")
	var noSuch *NoSuchExtension
	require.ErrorAs(t, err, &noSuch)
}

func TestRegistryLoadConfigRejectsUnknownExtensionType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipes.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pipes]
iterator = "it"
reporter = "rp"

[fetchers.no-such-fetcher-type.ft]
`), 0o644))

	reg := NewRegistry(NewLogger("error"))
	err := reg.LoadConfig(path)
	require.Error(t, err)
	require.NotEmpty(t, reg.Errors())
}

// A Registry reloaded with a now-valid config must not still report the
// prior failed load's errors.
func TestRegistryLoadConfigClearsErrorsFromPriorFailedLoad(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(badPath, []byte(`
[pipes]
iterator = "it"
reporter = "rp"

[fetchers.no-such-fetcher-type.ft]
`), 0o644))

	reg := NewRegistry(NewLogger("error"))
	require.Error(t, reg.LoadConfig(badPath))
	require.NotEmpty(t, reg.Errors())

	goodPath := filepath.Join(t.TempDir(), "good.toml")
	require.NoError(t, os.WriteFile(goodPath, []byte(memConfig), 0o644))
	require.NoError(t, reg.LoadConfig(goodPath))
	require.Empty(t, reg.Errors())
}

func TestRegistryBuildCachesInstance(t *testing.T) {
	reg := loadMemRegistry(t, memConfig)
	first, err := reg.Build(CategoryEmitter, "em")
	require.NoError(t, err)
	second, err := reg.Build(CategoryEmitter, "em")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestRegistryLoadConfigAppliesPipesBlockAndEnvOverride(t *testing.T) {
	t.Setenv("PIPES_NUM_WORKERS", "")
	reg := loadMemRegistry(t, memConfig)
	require.Equal(t, 2, reg.Pipes.NumWorkers)
	require.Equal(t, "it", reg.Pipes.Iterator)
	require.Equal(t, "rp", reg.Pipes.Reporter)
}

// This exercises the actual LoadConfig -> ResolveDefaults path end-to-end,
// rather than calling ResolveDefaults on a hand-built PipesConfig: a config
// file that sets numWorkers without also setting workQueueCapacity must
// still end up with workQueueCapacity = numWorkers*2 once loaded.
func TestRegistryLoadConfigDerivesWorkQueueCapacityFromConfiguredNumWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipes.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pipes]
numWorkers = 16
iterator = "it"
reporter = "rp"

[fetchers.mem-fetcher.ft]
[emitters.mem-emitter.em]
[iterators.mem-iterator.it]
[reporters.mem-reporter.rp]
`), 0o644))

	reg := NewRegistry(NewLogger("error"))
	require.NoError(t, reg.LoadConfig(path))
	reg.Pipes.ResolveDefaults()

	require.Equal(t, 16, reg.Pipes.NumWorkers)
	require.Equal(t, 32, reg.Pipes.WorkQueueCapacity)
	require.Equal(t, 16, reg.Pipes.MaxForkedChildren)
}

// Without a numWorkers override, both derived fields should land on the
// same values DefaultPipesConfig already ships with, proving the fix
// doesn't regress the common no-override case.
func TestRegistryLoadConfigResolvesDefaultWorkQueueCapacityWhenNumWorkersUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipes.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pipes]
iterator = "it"
reporter = "rp"

[fetchers.mem-fetcher.ft]
[emitters.mem-emitter.em]
[iterators.mem-iterator.it]
[reporters.mem-reporter.rp]
`), 0o644))

	reg := NewRegistry(NewLogger("error"))
	require.NoError(t, reg.LoadConfig(path))
	reg.Pipes.ResolveDefaults()

	require.Equal(t, 4, reg.Pipes.NumWorkers)
	require.Equal(t, 8, reg.Pipes.WorkQueueCapacity)
	require.Equal(t, 4, reg.Pipes.MaxForkedChildren)
}
