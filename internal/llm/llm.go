// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package llm defines the gateway to the local language model and embedding
// provider. Consumers depend on the Gateway interface; the concrete client
// speaks the OpenAI-compatible API that Ollama exposes at /v1.
package llm

import "context"

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    MessageRole
	Content string
}

// Request is a completion request.
type Request struct {
	Model    string
	Messages []Message
}

// Gateway is the capability surface the rest of sqlsage needs from the model
// server: plain completions, JSON-constrained completions, and embeddings.
type Gateway interface {
	// Complete runs a chat completion and returns the generated text.
	Complete(ctx context.Context, req Request) (string, error)

	// CompleteJSON runs a chat completion with the response format
	// constrained to a JSON object.
	CompleteJSON(ctx context.Context, req Request) (string, error)

	// Embed returns the fixed-length embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Calibrate discovers the embedding dimensionality with a probe call.
	// The result is stable for the life of the server's embed model.
	Calibrate(ctx context.Context) (int, error)
}

// UserMessage is a convenience constructor for the common single-message case.
func UserMessage(content string) []Message {
	return []Message{{Role: MessageRoleUser, Content: content}}
}
