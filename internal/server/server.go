// Package server exposes the proxy over HTTP.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragproxy/internal/domain"
	"ragproxy/internal/service"
)

// Server wires the proxy into gin routes.
type Server struct {
	proxy *service.Proxy
}

// New creates the HTTP layer around a proxy.
func New(proxy *service.Proxy) *Server {
	return &Server{proxy: proxy}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLog(), cors())

	router.POST("/v1/chat/completions", s.handleChat)
	router.POST("/api/chat", s.handleChat)
	router.POST("/api/process_document", s.handleProcessDocument)
	router.POST("/api/process_document_url", s.handleProcessDocumentURL)
	router.GET("/api/db_status", s.handleDBStatus)
	return router
}

type chatBody struct {
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

func (s *Server) handleChat(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if body.Stream {
		s.streamChat(c, body.Messages)
		return
	}

	raw, err := s.proxy.RagChat(c.Request.Context(), body.Messages)
	if err != nil {
		if errors.Is(err, domain.ErrNoUserMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// streamChat forwards the backend's raw streaming body chunk by chunk.
// The streaming path applies no retrieval augmentation.
func (s *Server) streamChat(c *gin.Context, messages []domain.Message) {
	body, err := s.proxy.ForwardStream(c.Request.Context(), messages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("stream interrupted", "err", err)
			}
			return
		}
	}
}

func (s *Server) handleProcessDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file part"})
		return
	}

	// Stage the upload in a temp file so ingestion reads it like any
	// other document path.
	tmp := filepath.Join(os.TempDir(), uuid.NewString()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tmp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "staging upload failed: " + err.Error()})
		return
	}
	defer os.Remove(tmp)

	report, err := s.proxy.ProcessDocument(c.Request.Context(), tmp, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document processed", "report": report})
}

type processDocumentURLBody struct {
	FilePath string `json:"file_path"`
	DocID    string `json:"doc_id"`
}

func (s *Server) handleProcessDocumentURL(c *gin.Context) {
	var body processDocumentURLBody
	if err := c.ShouldBindJSON(&body); err != nil || body.FilePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file_path"})
		return
	}

	report, err := s.proxy.ProcessDocument(c.Request.Context(), body.FilePath, body.DocID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document processed", "report": report})
}

func (s *Server) handleDBStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.proxy.Status())
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		start := time.Now()
		c.Next()
		slog.Info("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
