// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package errors provides coded, structured errors for sqlsage built on
// samber/oops. Every cross-package error carries a dot-delimited Code so
// callers can branch on failure class without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeLLMRequestInvalid     Code = "llm.request.invalid"
	CodeLLMResponseInvalid    Code = "llm.response.invalid"
	CodeLLMUpstreamFailure    Code = "llm.complete.upstream_failure"
	CodeLLMEmbedFailure       Code = "llm.embed.upstream_failure"
	CodeLLMEmbedEmpty         Code = "llm.embed.empty_vector"
	CodeLLMCalibrationFailure Code = "llm.calibrate.failure"

	CodeEngineOpenFailure    Code = "engine.open.failure"
	CodeEngineValidateFailed Code = "engine.validate.rejected"
	CodeEngineQueryFailure   Code = "engine.query.failure"

	CodeKnowledgeOpenFailure       Code = "knowledge.store.open.failure"
	CodeKnowledgeAddFailure        Code = "knowledge.store.add.failure"
	CodeKnowledgeSearchFailure     Code = "knowledge.store.search.failure"
	CodeKnowledgeDimensionMismatch Code = "knowledge.embedding.dimension_mismatch"

	CodeSynthPromptInvalid Code = "synth.prompt.invalid_input"

	CodeMinerSearchFailure Code = "miner.search.failure"
	CodeMinerFetchFailure  Code = "miner.fetch.failure"
	CodeMinerAdaptDeclined Code = "miner.adapt.declined"
	CodeMinerAdaptInvalid  Code = "miner.adapt.invalid_output"

	CodeTrainerGenerateInvalid Code = "trainer.generate.invalid_output"
	CodeTrainerLevelAborted    Code = "trainer.level.aborted"

	CodeIngestSourceFailure Code = "ingest.source.failure"

	CodeCLISetupFailure  Code = "cli.setup.failure"
	CodeCLIInputInvalid  Code = "cli.input.invalid"
	CodeCLIInternalError Code = "cli.internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldURL(value string) Attr {
	return Field("url", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldAttempt(value int) Attr {
	return Field("attempt", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeCLIInternalError
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" ||
		r == "invalid_format" || r == "invalid_output"
}

func IsUpstreamFailure(err error) bool {
	return reason(CodeOf(err)) == "upstream_failure"
}

// IsDeclined reports whether the error represents the adapter's explicit
// refusal sentinel rather than a malfunction.
func IsDeclined(err error) bool {
	return HasCode(err, CodeMinerAdaptDeclined)
}

func Join(errs ...error) error {
	return oops.Code(CodeCLIInternalError).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
