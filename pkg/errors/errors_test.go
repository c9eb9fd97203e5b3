// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package errors_test

import (
	stderrors "errors"
	"testing"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := sageerr.New(
		sageerr.CodeKnowledgeAddFailure,
		"adding learned example",
		sageerr.FieldCollection("learned"),
		sageerr.Field("rows", 3),
	)

	require.Error(t, err)
	assert.Equal(t, sageerr.CodeKnowledgeAddFailure, sageerr.CodeOf(err))
	assert.True(t, sageerr.HasCode(err, sageerr.CodeKnowledgeAddFailure))

	fields := sageerr.FieldsOf(err)
	assert.Equal(t, "learned", fields["collection"])
	assert.Equal(t, 3, fields["rows"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := sageerr.Errorf(sageerr.CodeLLMUpstreamFailure, "chat completion: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, sageerr.CodeLLMUpstreamFailure, sageerr.CodeOf(err))
}

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such table")
	err := sageerr.Wrap(
		root,
		sageerr.CodeEngineValidateFailed,
		"explaining candidate",
		sageerr.FieldAttempt(2),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, sageerr.CodeEngineValidateFailed, sageerr.CodeOf(err))
	assert.Equal(t, 2, sageerr.FieldsOf(err)["attempt"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, sageerr.Wrap(nil, sageerr.CodeEngineQueryFailure, "ignored"))
	assert.NoError(t, sageerr.Wrapf(nil, sageerr.CodeEngineQueryFailure, "ignored %d", 1))
	assert.NoError(t, sageerr.With(nil, sageerr.Field("k", "v")))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, sageerr.Code(""), sageerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, sageerr.Code(""), sageerr.CodeOf(nil))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, sageerr.IsUpstreamFailure(
		sageerr.New(sageerr.CodeLLMEmbedFailure, "embed call failed")))
	assert.True(t, sageerr.IsInvalidInput(
		sageerr.New(sageerr.CodeMinerAdaptInvalid, "no sql section")))
	assert.True(t, sageerr.IsDeclined(
		sageerr.New(sageerr.CodeMinerAdaptDeclined, "concept not applicable")))
	assert.False(t, sageerr.IsDeclined(
		sageerr.New(sageerr.CodeMinerAdaptInvalid, "garbled")))
}

func TestWithAddsFieldsToExistingChain(t *testing.T) {
	base := sageerr.New(sageerr.CodeMinerFetchFailure, "status 403")
	err := sageerr.With(base, sageerr.FieldURL("https://example.com/x.sql"))

	require.Error(t, err)
	assert.Equal(t, sageerr.CodeMinerFetchFailure, sageerr.CodeOf(err))
	assert.Equal(t, "https://example.com/x.sql", sageerr.FieldsOf(err)["url"])
}
