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
	"sync"

	"github.com/BurntSushi/toml"
)

// Extension categories. These are the four reserved top-level config keys
// (pluralized in the TOML file) from spec §4.1 / §6.
const (
	CategoryFetcher  = "Fetcher"
	CategoryIterator = "Iterator"
	CategoryEmitter  = "Emitter"
	CategoryReporter = "Reporter"
)

var categoryTomlKey = map[string]string{
	CategoryFetcher:  "fetchers",
	CategoryIterator: "iterators",
	CategoryEmitter:  "emitters",
	CategoryReporter: "reporters",
}

// Extension is the base interface every fetcher/iterator/emitter/reporter
// plugin satisfies: an Init hook fed either a generic ExtensionConfig or the
// plugin's own config struct, deserialized from its TOML option block.
type Extension interface {
	Init(config interface{}) error
}

// HasConfigStruct is implemented by extensions that want their TOML option
// block deserialized into a specific, typed, default-populated struct
// rather than the generic ExtensionConfig map.
type HasConfigStruct interface {
	ConfigStruct() interface{}
}

// ExtensionConfig is the generic option-block type for extensions that
// don't implement HasConfigStruct.
type ExtensionConfig map[string]toml.Primitive

// GetData flattens an ExtensionConfig into a plain map, mirroring the
// teacher's PluginConfig.GetData helper used by extensions that want
// untyped access to their own option block.
func (c ExtensionConfig) GetData() map[string]interface{} {
	data := make(map[string]interface{}, len(c))
	for k, v := range c {
		data[k] = v
	}
	return data
}

type extensionFactory func() Extension

// registryEntry is a registered but not-yet-built extension: the factory to
// instantiate it plus the raw TOML subtree for its instance.
type registryEntry struct {
	category    string
	typeName    string
	instanceID  string
	tomlSection toml.Primitive
	meta        *toml.MetaData
	factory     extensionFactory
	built       Extension
}

func (e *registryEntry) prepConfig() (Extension, error) {
	if e.built != nil {
		return e.built, nil
	}
	ext := e.factory()
	var confObj interface{}
	if hasConf, ok := ext.(HasConfigStruct); ok {
		confObj = hasConf.ConfigStruct()
		if err := e.meta.PrimitiveDecode(e.tomlSection, confObj); err != nil {
			return nil, &ConfigError{Section: e.instanceID, Reason: err.Error()}
		}
	} else {
		var generic ExtensionConfig
		if err := e.meta.PrimitiveDecode(e.tomlSection, &generic); err != nil {
			return nil, &ConfigError{Section: e.instanceID, Reason: err.Error()}
		}
		confObj = generic
	}
	if err := ext.Init(confObj); err != nil {
		return nil, &ConfigError{Section: e.instanceID, Reason: err.Error()}
	}
	e.built = ext
	return ext, nil
}

// availableExtensionTypes is the process-wide set of extension factories,
// discovered at startup registration time (init() calls in each extension's
// package), keyed category -> type-name -> factory. No runtime
// monkey-patching: everything here is declared before LoadConfig runs.
var (
	availableExtensionTypes = make(map[string]map[string]extensionFactory)
	availableExtensionsLock sync.Mutex
)

// RegisterExtension adds an extension type to the set usable from a Tika
// Pipes config file.
func RegisterExtension(category, typeName string, factory func() Extension) {
	availableExtensionsLock.Lock()
	defer availableExtensionsLock.Unlock()
	if availableExtensionTypes[category] == nil {
		availableExtensionTypes[category] = make(map[string]extensionFactory)
	}
	availableExtensionTypes[category][typeName] = factory
}

// Registry is the master object holding every extension instance discovered
// from a config file, generalizing the teacher's PipelineConfig plugin maps
// from one flat namespace to the spec's four categories.
type Registry struct {
	Pipes  PipesConfig
	Logger *Logger

	lock    sync.RWMutex
	entries map[string]map[string]*registryEntry // category -> instanceID -> entry
	errMsgs []string
}

// NewRegistry returns an empty Registry with default pipes settings.
func NewRegistry(logger *Logger) *Registry {
	return &Registry{
		Pipes:   DefaultPipesConfig(),
		Logger:  logger,
		entries: map[string]map[string]*registryEntry{
			CategoryFetcher:  {},
			CategoryIterator: {},
			CategoryEmitter:  {},
			CategoryReporter: {},
		},
	}
}

// rawConfig mirrors the reserved top-level keys from spec §6. Each category
// maps extension-type-name -> instance-id -> per-instance option block.
type rawConfig struct {
	Fetchers  map[string]map[string]toml.Primitive `toml:"fetchers"`
	Iterators map[string]map[string]toml.Primitive `toml:"iterators"`
	Emitters  map[string]map[string]toml.Primitive `toml:"emitters"`
	Reporters map[string]map[string]toml.Primitive `toml:"reporters"`
	Pipes     PipesConfig                          `toml:"pipes"`
}

// LoadConfig parses the TOML file at path (after %ENV[] substitution),
// registers every declared extension instance, and applies environment
// overrides to the pipes block. It does not build/Init any extension yet;
// call Build for that.
func (r *Registry) LoadConfig(path string) error {
	contents, err := ReplaceEnvsFile(path)
	if err != nil {
		return &ConfigError{Section: path, Reason: err.Error()}
	}

	var raw rawConfig
	raw.Pipes = DefaultPipesConfig()
	// WorkQueueCapacity and MaxForkedChildren are derived from NumWorkers by
	// PipesConfig.ResolveDefaults, which every caller runs once right after
	// LoadConfig returns. Seeding them from DefaultPipesConfig here would
	// make that derivation never fire for a file that overrides numWorkers
	// without also overriding these two, since toml.Decode only touches
	// keys present in the file.
	raw.Pipes.WorkQueueCapacity = 0
	raw.Pipes.MaxForkedChildren = 0
	meta, err := toml.Decode(contents, &raw)
	if err != nil {
		return &ConfigError{Section: path, Reason: err.Error()}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	// Reset per-load state: a Registry reloaded after a prior failed
	// LoadConfig must not carry that failure's errMsgs into this call's
	// result.
	r.errMsgs = nil
	r.Pipes = raw.Pipes
	ApplyEnvOverrides(&r.Pipes)

	sections := map[string]map[string]map[string]toml.Primitive{
		CategoryFetcher:  raw.Fetchers,
		CategoryIterator: raw.Iterators,
		CategoryEmitter:  raw.Emitters,
		CategoryReporter: raw.Reporters,
	}
	for category, byType := range sections {
		for typeName, byInstance := range byType {
			factory, ok := availableExtensionTypes[category][typeName]
			if !ok {
				err := &ConfigError{
					Section: typeName,
					Reason:  fmt.Sprintf("unknown %s extension type %q", category, typeName),
				}
				r.errMsgs = append(r.errMsgs, err.Error())
				continue
			}
			for instanceID, section := range byInstance {
				r.entries[category][instanceID] = &registryEntry{
					category:    category,
					typeName:    typeName,
					instanceID:  instanceID,
					tomlSection: section,
					meta:        &meta,
					factory:     factory,
				}
			}
		}
	}
	if len(r.errMsgs) > 0 {
		return &ConfigError{Section: path, Reason: fmt.Sprintf("%d errors loading config", len(r.errMsgs))}
	}
	return nil
}

// Build instantiates and initializes the named extension instance, or
// returns NoSuchExtension if the id isn't registered in that category.
func (r *Registry) Build(category, instanceID string) (Extension, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.entries[category][instanceID]
	if !ok {
		return nil, &NoSuchExtension{Category: category, InstanceID: instanceID}
	}
	return entry.prepConfig()
}

// List returns the set of instance ids registered (not necessarily yet
// built) under category.
func (r *Registry) List(category string) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ids := make([]string, 0, len(r.entries[category]))
	for id := range r.entries[category] {
		ids = append(ids, id)
	}
	return ids
}

// TypeOf returns the extension-type-name backing instanceID in category,
// used by the probe CLI command to render a discovery table.
func (r *Registry) TypeOf(category, instanceID string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entry, ok := r.entries[category][instanceID]
	if !ok {
		return "", false
	}
	return entry.typeName, true
}

// Errors returns the accumulated config-loading error messages.
func (r *Registry) Errors() []string {
	return append([]string(nil), r.errMsgs...)
}

// CategoryTomlKey returns the reserved top-level TOML key for category
// (e.g. CategoryFetcher -> "fetchers"), or "" for an unknown category.
func CategoryTomlKey(category string) string {
	return categoryTomlKey[category]
}
