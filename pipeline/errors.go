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

import "fmt"

// ConfigError is returned by loadConfig for any startup-only configuration
// problem: unknown extension type, missing required option, or a failed
// validator.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in [%s]: %s", e.Section, e.Reason)
}

// NoSuchExtension is returned by Registry.Build when a category/instanceId pair
// isn't registered.
type NoSuchExtension struct {
	Category   string
	InstanceID string
}

func (e *NoSuchExtension) Error() string {
	return fmt.Sprintf("no %s extension registered under id %q", e.Category, e.InstanceID)
}

// FetchNotFound means the underlying store reported the object absent.
type FetchNotFound struct {
	FetchKey string
}

func (e *FetchNotFound) Error() string {
	return fmt.Sprintf("fetch key %q not found", e.FetchKey)
}

// FetchException wraps any transient or permanent fetch read failure.
type FetchException struct {
	FetchKey string
	Cause    error
}

func (e *FetchException) Error() string {
	return fmt.Sprintf("fetch %q failed: %s", e.FetchKey, e.Cause)
}

func (e *FetchException) Unwrap() error { return e.Cause }

// ParseErrorKind is the tagged sub-kind of an in-process parse failure.
type ParseErrorKind string

const (
	ParseErrorCorrupt     ParseErrorKind = "CORRUPT"
	ParseErrorUnsupported ParseErrorKind = "UNSUPPORTED"
	ParseErrorEncrypted   ParseErrorKind = "ENCRYPTED"
	ParseErrorOther       ParseErrorKind = "OTHER"
)

// ParseError is the error type returned by in-process Parser implementations.
type ParseError struct {
	Kind  ParseErrorKind
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// EmitterError is returned by emitters for conditions that aren't plain
// retryable/permanent failures, e.g. an empty metadata list.
type EmitterError struct {
	Reason string
}

func (e *EmitterError) Error() string {
	return fmt.Sprintf("emitter error: %s", e.Reason)
}

// EmitterRetryable signals a transient emit failure (network hiccup) that
// the orchestrator's retry loop should retry.
type EmitterRetryable struct {
	Cause error
}

func (e *EmitterRetryable) Error() string { return fmt.Sprintf("retryable emit error: %s", e.Cause) }
func (e *EmitterRetryable) Unwrap() error { return e.Cause }

// EmitterPermanent signals a non-retryable emit failure (schema mismatch,
// auth failure).
type EmitterPermanent struct {
	Cause error
}

func (e *EmitterPermanent) Error() string { return fmt.Sprintf("permanent emit error: %s", e.Cause) }
func (e *EmitterPermanent) Unwrap() error { return e.Cause }
