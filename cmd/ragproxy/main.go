package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ragproxy/internal/chunker"
	"ragproxy/internal/config"
	"ragproxy/internal/ollama"
	"ragproxy/internal/server"
	"ragproxy/internal/service"
	"ragproxy/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath        = flag.String("config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragproxy/config.yaml)")
		host           = flag.String("host", "", "Server bind host (overrides config)")
		port           = flag.Int("port", 0, "Server bind port (overrides config)")
		ollamaHost     = flag.String("ollama-host", "", "Ollama backend base URL (overrides config)")
		embeddingModel = flag.String("embedding-model", "", "Embedding model name (overrides config)")
		llmModel       = flag.String("llm-model", "", "Chat model name (overrides config)")
		vectorDBPath   = flag.String("vector-db-path", "", "Vector store file path (overrides config)")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

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
	applyFlagOverrides(cfg, *host, *port, *ollamaHost, *embeddingModel, *llmModel, *vectorDBPath)

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

	gin.SetMode(gin.ReleaseMode)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting rag proxy",
		"addr", addr,
		"ollama_host", backend.Host(),
		"embedding_model", backend.EmbeddingModel(),
		"llm_model", backend.ChatModel(),
		"vector_db", cfg.Store.Path)

	if err := server.New(proxy).Router().Run(addr); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.AppConfig, host string, port int, ollamaHost, embeddingModel, llmModel, vectorDBPath string) {
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if ollamaHost != "" {
		cfg.Ollama.Host = ollamaHost
	}
	if embeddingModel != "" {
		cfg.Ollama.EmbeddingModel = embeddingModel
	}
	if llmModel != "" {
		cfg.Ollama.LLMModel = llmModel
	}
	if vectorDBPath != "" {
		cfg.Store.Path = vectorDBPath
	}
}
