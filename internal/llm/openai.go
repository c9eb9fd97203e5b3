// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package llm

import (
	"context"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// calibrationProbe is the text embedded once to discover the vector size.
const calibrationProbe = "dimension probe"

// Config holds client configuration for the OpenAI-compatible endpoint.
type Config struct {
	// Endpoint is the base URL, e.g. http://localhost:11434/v1 for Ollama.
	Endpoint string
	// APIKey is required by the client library; Ollama accepts any value.
	APIKey string
	// EmbedModel is the embedding model identifier.
	EmbedModel string
	// Timeout bounds each request. Zero means the library default.
	Timeout time.Duration
}

// Compile-time interface check.
var _ Gateway = (*Client)(nil)

// Client implements Gateway against an OpenAI-compatible chat/embeddings API.
type Client struct {
	client openaisdk.Client
	config Config
}

// NewClient creates a new Client. An endpoint is required since sqlsage
// always talks to an explicitly configured (usually local) server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, sageerr.New(sageerr.CodeLLMRequestInvalid, "llm: missing endpoint in config")
	}
	if cfg.EmbedModel == "" {
		return nil, sageerr.New(sageerr.CodeLLMRequestInvalid, "llm: missing embed_model in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.Endpoint),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// Complete runs a plain chat completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params, err := buildParams(req)
	if err != nil {
		return "", err
	}

	return c.complete(ctx, params)
}

// CompleteJSON runs a chat completion with response_format json_object, used
// by the trainer to force structurally parseable output.
func (c *Client) CompleteJSON(ctx context.Context, req Request) (string, error) {
	params, err := buildParams(req)
	if err != nil {
		return "", err
	}

	params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}

	return c.complete(ctx, params)
}

func (c *Client) complete(ctx context.Context, params openaisdk.ChatCompletionNewParams) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", sageerr.Wrap(err, sageerr.CodeLLMUpstreamFailure, "chat completion",
			sageerr.FieldModel(string(params.Model)))
	}

	if len(completion.Choices) == 0 {
		return "", sageerr.New(sageerr.CodeLLMResponseInvalid, "chat completion returned no choices",
			sageerr.FieldModel(string(params.Model)))
	}

	return completion.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text using the configured model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(c.config.EmbedModel),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
	})
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeLLMEmbedFailure, "embedding request",
			sageerr.FieldModel(c.config.EmbedModel))
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, sageerr.New(sageerr.CodeLLMEmbedEmpty, "embedding response contained no vector",
			sageerr.FieldModel(c.config.EmbedModel))
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Calibrate embeds a probe string and reports the vector length. Callers fix
// this dimension for the life of their store and must reject any later
// mismatch loudly rather than store a corrupt vector.
func (c *Client) Calibrate(ctx context.Context) (int, error) {
	vec, err := c.Embed(ctx, calibrationProbe)
	if err != nil {
		return 0, sageerr.Wrap(err, sageerr.CodeLLMCalibrationFailure, "calibrating embedding dimension")
	}
	return len(vec), nil
}

// buildParams converts a Request into SDK chat completion params.
func buildParams(req Request) (openaisdk.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return openaisdk.ChatCompletionNewParams{}, sageerr.New(sageerr.CodeLLMRequestInvalid, "llm: request model must not be empty")
	}
	if len(req.Messages) == 0 {
		return openaisdk.ChatCompletionNewParams{}, sageerr.New(sageerr.CodeLLMRequestInvalid, "llm: request must contain at least one message")
	}

	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case MessageRoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(msg.Content))
		case MessageRoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(msg.Content))
		case MessageRoleUser:
			msgs = append(msgs, openaisdk.UserMessage(msg.Content))
		default:
			return openaisdk.ChatCompletionNewParams{}, sageerr.Errorf(sageerr.CodeLLMRequestInvalid, "llm: unsupported message role %q", msg.Role)
		}
	}

	return openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}, nil
}
