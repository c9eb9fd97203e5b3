// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sqlsage-dev/sqlsage/internal/llm"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface satisfaction check.
var _ llm.Gateway = (*llm.Client)(nil)

// fakeServer stands in for an OpenAI-compatible endpoint. It records the
// last chat request body and serves canned completions and embeddings.
func fakeServer(t *testing.T, completion string, embedding []float64) (*httptest.Server, *map[string]any) {
	t.Helper()
	lastChat := map[string]any{}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastChat))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": completion}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"data": []map[string]any{{"embedding": embedding}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastChat
}

func newTestClient(t *testing.T, srv *httptest.Server) *llm.Client {
	t.Helper()
	c, err := llm.NewClient(llm.Config{
		Endpoint:   srv.URL,
		APIKey:     "test",
		EmbedModel: "nomic-embed-text",
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := llm.NewClient(llm.Config{EmbedModel: "m"})
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeLLMRequestInvalid, sageerr.CodeOf(err))
}

func TestComplete(t *testing.T) {
	srv, lastChat := fakeServer(t, "SELECT 1;", []float64{0.1})
	c := newTestClient(t, srv)

	out, err := c.Complete(context.Background(), llm.Request{
		Model:    "test-model",
		Messages: llm.UserMessage("say select one"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", out)
	assert.Equal(t, "test-model", (*lastChat)["model"])
	_, hasFormat := (*lastChat)["response_format"]
	assert.False(t, hasFormat)
}

func TestCompleteJSONSetsResponseFormat(t *testing.T) {
	srv, lastChat := fakeServer(t, `{"question":"q","sql":"SELECT 1"}`, []float64{0.1})
	c := newTestClient(t, srv)

	out, err := c.CompleteJSON(context.Background(), llm.Request{
		Model:    "test-model",
		Messages: llm.UserMessage("emit json"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","sql":"SELECT 1"}`, out)

	format, ok := (*lastChat)["response_format"].(map[string]any)
	require.True(t, ok, "request should carry response_format")
	assert.Equal(t, "json_object", format["type"])
}

func TestCompleteRejectsEmptyRequest(t *testing.T) {
	srv, _ := fakeServer(t, "x", []float64{0.1})
	c := newTestClient(t, srv)

	_, err := c.Complete(context.Background(), llm.Request{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeLLMRequestInvalid, sageerr.CodeOf(err))

	_, err = c.Complete(context.Background(), llm.Request{Messages: llm.UserMessage("x")})
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeLLMRequestInvalid, sageerr.CodeOf(err))
}

func TestEmbedAndCalibrate(t *testing.T) {
	srv, _ := fakeServer(t, "x", []float64{0.25, -0.5, 1.0})
	c := newTestClient(t, srv)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1.0}, vec)

	dim, err := c.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
}

func TestCompleteUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv)

	_, err := c.Complete(context.Background(), llm.Request{
		Model:    "m",
		Messages: llm.UserMessage("x"),
	})
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeLLMUpstreamFailure, sageerr.CodeOf(err))
	assert.True(t, sageerr.IsUpstreamFailure(err))
}
