// Package service drives the ingestion pipeline and the
// retrieval-augmented chat orchestration.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ragproxy/internal/chunker"
	"ragproxy/internal/domain"
	"ragproxy/internal/vectorstore"
)

const contextPreamble = "The following document excerpts may be relevant to the question:\n\n"
const contextClosing = "\n\nAnswer the user's question using the context above."

// Info describes the running proxy for the status endpoint.
type Info struct {
	VectorDBSize   int    `json:"vector_db_size"`
	EmbeddingModel string `json:"embedding_model"`
	LLMModel       string `json:"llm_model"`
	OllamaHost     string `json:"ollama_host"`
}

// Models carries backend identity reported by Status.
type Models struct {
	EmbeddingModel string
	LLMModel       string
	OllamaHost     string
}

// Proxy owns the vector store and coordinates chunking, embedding and
// chat forwarding. It is safe for concurrent use; store mutations are
// serialized inside the store itself.
type Proxy struct {
	chunker  *chunker.SlidingChunker
	embedder domain.Embedder
	backend  domain.ChatBackend
	store    *vectorstore.Storage
	topK     int
	models   Models
}

// New assembles a proxy from its collaborators. topK bounds how many
// fragments augment a chat request.
func New(ch *chunker.SlidingChunker, emb domain.Embedder, backend domain.ChatBackend, store *vectorstore.Storage, topK int, models Models) *Proxy {
	if topK <= 0 {
		topK = 5
	}
	return &Proxy{
		chunker:  ch,
		embedder: emb,
		backend:  backend,
		store:    store,
		topK:     topK,
		models:   models,
	}
}

// ProcessDocument reads the file at path, chunks it, embeds each chunk
// and stores the resulting fragments, persisting the store once at the
// end. Ingestion is best-effort per chunk: an embedding failure skips
// that chunk and the rest continue. Only a read failure or a store
// persistence failure makes the whole call fail.
func (p *Proxy) ProcessDocument(ctx context.Context, path, docID string) (domain.IngestReport, error) {
	var report domain.IngestReport

	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("read document: %w", err)
	}
	if docID == "" {
		docID = fmt.Sprintf("doc_%d_%s", time.Now().Unix(), filepath.Base(path))
	}
	report.DocumentID = docID

	chunks := p.chunker.Chunk(string(data))
	report.Attempted = len(chunks)
	slog.Info("document chunked", "doc_id", docID, "path", path, "chunks", len(chunks))

	for i, text := range chunks {
		vec, err := p.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("embedding failed, skipping chunk", "doc_id", docID, "chunk", i, "err", err)
			report.Skipped++
			continue
		}
		f := domain.Fragment{
			ID:        fmt.Sprintf("%s_chunk_%d", docID, i),
			Text:      text,
			Embedding: vec,
			Metadata: domain.Metadata{
				DocumentID: docID,
				ChunkIndex: i,
				SourcePath: path,
				CreatedAt:  time.Now().Unix(),
			},
		}
		if err := p.store.Add(f); err != nil {
			slog.Warn("store rejected fragment, skipping chunk", "doc_id", docID, "chunk", i, "err", err)
			report.Skipped++
			continue
		}
		report.Succeeded++
	}

	if err := p.store.Save(); err != nil {
		return report, fmt.Errorf("persist vector store: %w", err)
	}
	slog.Info("document ingested", "doc_id", docID,
		"attempted", report.Attempted, "succeeded", report.Succeeded, "skipped", report.Skipped)
	return report, nil
}

// Query embeds the text and returns the topK closest fragments.
func (p *Proxy) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return p.store.Search(vec, topK), nil
}

// RagChat answers a conversation with retrieval augmentation. The last
// user-role message is the query; relevant fragments, if any, are folded
// into a synthetic system message prepended to a copy of the
// conversation. Context enrichment is best-effort: a failed query
// embedding forwards the conversation unaugmented rather than failing.
func (p *Proxy) RagChat(ctx context.Context, messages []domain.Message) (json.RawMessage, error) {
	query, ok := lastUserMessage(messages)
	if !ok {
		return nil, domain.ErrNoUserMessage
	}

	var results []domain.SearchResult
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, forwarding without context", "err", err)
	} else {
		results = p.store.Search(vec, p.topK)
	}

	forwarded := messages
	if len(results) > 0 {
		forwarded = augment(messages, results)
		slog.Info("chat augmented", "fragments", len(results))
	}

	raw, err := p.backend.Chat(ctx, forwarded)
	if err != nil {
		return nil, fmt.Errorf("chat backend: %w", err)
	}
	return raw, nil
}

// ForwardStream passes the conversation through to the backend's
// streaming chat endpoint. No retrieval augmentation applies on this
// path; only the non-streaming path enriches the prompt.
func (p *Proxy) ForwardStream(ctx context.Context, messages []domain.Message) (io.ReadCloser, error) {
	return p.backend.ChatStream(ctx, messages)
}

// Status reports the store size and backend identity.
func (p *Proxy) Status() Info {
	return Info{
		VectorDBSize:   p.store.Len(),
		EmbeddingModel: p.models.EmbeddingModel,
		LLMModel:       p.models.LLMModel,
		OllamaHost:     p.models.OllamaHost,
	}
}

func lastUserMessage(messages []domain.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

// augment builds a new message sequence with a context-bearing system
// message in front. The caller's slice is never mutated.
func augment(messages []domain.Message, results []domain.SearchResult) []domain.Message {
	var sb strings.Builder
	sb.WriteString(contextPreamble)
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Document excerpt %d: %s", i+1, r.Fragment.Text)
	}
	sb.WriteString(contextClosing)

	out := make([]domain.Message, 0, len(messages)+1)
	out = append(out, domain.Message{Role: domain.RoleSystem, Content: sb.String()})
	out = append(out, messages...)
	return out
}
