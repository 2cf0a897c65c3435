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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataAddPreservesOrderAndMultiValue(t *testing.T) {
	m := NewMetadata()
	m.Add("Author", "alice")
	m.Add("Author", "bob")
	m.Add("Title", "doc")

	require.Equal(t, []string{"Author", "Title"}, m.Names())
	require.Equal(t, []string{"alice", "bob"}, m.GetAll("Author"))
	first, ok := m.Get("Author")
	require.True(t, ok)
	require.Equal(t, "alice", first)
}

func TestMetadataSetOverwritesExistingValues(t *testing.T) {
	m := NewMetadata()
	m.Add("Author", "alice")
	m.Set("Author", "bob")
	require.Equal(t, []string{"bob"}, m.GetAll("Author"))
}

func TestMetadataMergeAppendsWithoutOverwrite(t *testing.T) {
	dst := NewMetadata()
	dst.Set("Author", "alice")
	src := NewMetadata()
	src.Add("Author", "bob")
	src.Add("Title", "doc")

	dst.Merge(src)
	require.Equal(t, []string{"alice", "bob"}, dst.GetAll("Author"))
	require.Equal(t, []string{"doc"}, dst.GetAll("Title"))
}

func TestNewTupleDefaultsOnParseExceptionToSkip(t *testing.T) {
	tuple := NewTuple(FetchKey{FetcherID: "f", Key: "k"}, EmitKey{EmitterID: "e", Key: "k"}, NewMetadata(), "")
	require.Equal(t, OnParseExceptionSkip, tuple.OnParseException)
	require.NotEmpty(t, tuple.ID)
}

func TestNewTupleGeneratesDistinctIDs(t *testing.T) {
	a := NewTuple(FetchKey{}, EmitKey{}, NewMetadata(), OnParseExceptionSkip)
	b := NewTuple(FetchKey{}, EmitKey{}, NewMetadata(), OnParseExceptionSkip)
	require.NotEqual(t, a.ID, b.ID)
}
