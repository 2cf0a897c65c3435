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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func init() {
	RegisterExtension(CategoryEmitter, "fs-emitter", func() Extension { return new(FSEmitter) })
}

// FSEmitterConfig is the fs-emitter's typed option block.
type FSEmitterConfig struct {
	BasePath string             `toml:"basePath"`
	Strategy AttachmentStrategy `toml:"attachmentStrategy"`
}

// FSEmitter writes one JSON array of records per emit-key under basePath.
// It's the reference emitter used by scenario 1/3 of spec §8; real sink
// connectors (search engines, object stores, databases) stay out of scope
// per spec §1.
type FSEmitter struct {
	conf FSEmitterConfig
}

func (e *FSEmitter) ConfigStruct() interface{} { return &FSEmitterConfig{} }

func (e *FSEmitter) Init(config interface{}) error {
	conf, ok := config.(*FSEmitterConfig)
	if !ok {
		return fmt.Errorf("fs-emitter: unexpected config type %T", config)
	}
	if conf.Strategy == "" {
		conf.Strategy = AttachmentSkip
	}
	e.conf = *conf
	return os.MkdirAll(conf.BasePath, 0o755)
}

func (e *FSEmitter) Strategy() AttachmentStrategy { return e.conf.Strategy }

func (e *FSEmitter) Emit(ek EmitKey, metadataList []Metadata, pc ParseContext) error {
	rows, err := ApplyAttachmentStrategy(e.conf.Strategy, ek.Key, metadataList)
	if err != nil {
		return err
	}
	return e.writeRows(ek.Key, rows)
}

func (e *FSEmitter) EmitBatch(batch []EmitBatchItem, pc ParseContext) error {
	for _, item := range batch {
		if err := e.Emit(item.EmitKey, item.Metadata, pc); err != nil {
			return err
		}
	}
	return nil
}

func (e *FSEmitter) writeRows(emitKey string, rows []Metadata) error {
	path := filepath.Join(e.conf.BasePath, emitKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &EmitterPermanent{Cause: err}
	}
	encoded := make([]map[string][]string, 0, len(rows))
	for _, r := range rows {
		m := make(map[string][]string, len(r.Names()))
		for _, name := range r.Names() {
			m[name] = r.GetAll(name)
		}
		encoded = append(encoded, m)
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return &EmitterPermanent{Cause: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		if os.IsPermission(err) {
			return &EmitterPermanent{Cause: err}
		}
		return &EmitterRetryable{Cause: err}
	}
	return nil
}
