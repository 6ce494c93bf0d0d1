package domain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Metadata describes where a fragment came from within its source document.
type Metadata struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	SourcePath string `json:"source_path"`
	CreatedAt  int64  `json:"created_at"`
}

// Fragment is a bounded slice of a source document paired with its
// embedding vector. Fragments are what the vector store holds and ranks.
type Fragment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchResult is a matching fragment with its cosine similarity score.
type SearchResult struct {
	Fragment Fragment
	Score    float64
}

// IngestReport summarizes a single document ingestion run. Attempted
// counts chunks produced, Succeeded those embedded and stored, Skipped
// those dropped because embedding failed or the store rejected them.
type IngestReport struct {
	DocumentID string `json:"document_id"`
	Attempted  int    `json:"attempted"`
	Succeeded  int    `json:"succeeded"`
	Skipped    int    `json:"skipped"`
}

// Embedder converts free text into a numeric vector representation by
// calling a remote model backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ChatBackend forwards a conversation to a remote chat model. Chat
// returns the backend's JSON response verbatim; ChatStream returns the
// raw response body for chunk-wise forwarding, owned by the caller.
type ChatBackend interface {
	Chat(ctx context.Context, messages []Message) (json.RawMessage, error)
	ChatStream(ctx context.Context, messages []Message) (io.ReadCloser, error)
}

// Roles recognized in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNoUserMessage means the conversation holds no user-role message
	// to use as a retrieval query.
	ErrNoUserMessage = errors.New("no user message in conversation")

	// ErrDimensionMismatch means a fragment's vector length differs from
	// the vectors already held by the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
