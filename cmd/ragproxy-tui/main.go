// Command ragproxy-tui is an interactive console over the vector store
// file: it embeds queries through the configured Ollama backend and
// browses the ranked fragments locally, without the HTTP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragproxy/internal/chunker"
	"ragproxy/internal/config"
	"ragproxy/internal/domain"
	"ragproxy/internal/ollama"
	"ragproxy/internal/service"
	"ragproxy/internal/tui"
	"ragproxy/internal/vectorstore"
)

// querier adapts the proxy's context-aware Query to the console's
// synchronous call shape.
type querier struct {
	proxy   *service.Proxy
	timeout time.Duration
}

func (q *querier) Query(text string, topK int) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.proxy.Query(ctx, text, topK)
}

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		slog.Error("invalid chunking config", "err", err)
		os.Exit(1)
	}

	backend := ollama.NewClient(ollama.Config{
		Host:           cfg.Ollama.Host,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		ChatModel:      cfg.Ollama.LLMModel,
		Timeout:        time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		MaxRetries:     uint64(cfg.Ollama.MaxRetries),
	})

	store := vectorstore.Open(cfg.Store.Path, !cfg.Store.AllowMixedDimensions)
	store.Load()

	proxy := service.New(ch, backend, backend, store, cfg.Retrieval.TopK, service.Models{
		EmbeddingModel: backend.EmbeddingModel(),
		LLMModel:       backend.ChatModel(),
		OllamaHost:     backend.Host(),
	})

	q := &querier{proxy: proxy, timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second}
	m := tui.New(q, store.Len())
	if _, err := tea.NewProgram(m).Run(); err != nil {
		slog.Error("console stopped", "err", err)
		os.Exit(1)
	}
}
