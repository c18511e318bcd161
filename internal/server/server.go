// Package server exposes a recruiter chat endpoint so a simulation can run
// against an HTTP system under test.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/llm"
)

// DefaultTemperature is used when a request carries no config.
const DefaultTemperature = 0.2

// Config holds the server's collaborators.
type Config struct {
	Client       llm.Client
	Model        string
	SystemPrompt string
	Analyzer     *analysis.Analyzer
	Logger       *slog.Logger
}

// Server answers POST /sut/chat with the recruiter model's next message.
type Server struct {
	client   llm.Client
	model    string
	prompt   string
	analyzer *analysis.Analyzer
	logger   *slog.Logger
	router   *gin.Engine
}

// ChatRequest is the body of POST /sut/chat.
type ChatRequest struct {
	Messages []llm.Message `json:"messages" binding:"required"`
	Config   *ChatConfig   `json:"config"`
}

// ChatConfig selects the model and sampling temperature for one request.
type ChatConfig struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// ChatResponse is the reply to POST /sut/chat.
type ChatResponse struct {
	Message string   `json:"message"`
	Meta    ChatMeta `json:"meta"`
}

// ChatMeta carries usage and the slots extracted from the request history.
type ChatMeta struct {
	TokensPrompt     int                `json:"tokens_prompt"`
	TokensCompletion int                `json:"tokens_completion"`
	FinishReason     string             `json:"finish_reason"`
	ModuleHint       string             `json:"module_hint"`
	SlotsExtracted   map[string]*string `json:"slots_extracted"`
}

// New builds a Server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		client:   cfg.Client,
		model:    cfg.Model,
		prompt:   cfg.SystemPrompt,
		analyzer: cfg.Analyzer,
		logger:   cfg.Logger,
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer(nil)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.RootHandler)
	r.POST("/sut/chat", s.ChatHandler)

	s.router = r
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("SUT server listening", "addr", addr, "model", s.model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// RootHandler reports that the server is up.
func (s *Server) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Staffer SUT API is running!"})
}

// ChatHandler prepends the recruiter prompt to the request history, asks the
// model for the next message and reports the slots found so far.
func (s *Server) ChatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	model := s.model
	temp := DefaultTemperature
	if req.Config != nil {
		if req.Config.Model != "" {
			model = req.Config.Model
		}
		if req.Config.Temperature != nil {
			temp = *req.Config.Temperature
		}
	}

	msgs := make([]llm.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.prompt})
	msgs = append(msgs, req.Messages...)

	resp, err := s.client.Send(c.Request.Context(), llm.Request{Messages: msgs, Model: model, Temperature: &temp})
	if err != nil {
		s.logger.Error("upstream completion failed", "model", model, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	finish := resp.FinishReason
	if finish == "" {
		finish = "stop"
	}
	slots := s.slots(req.Messages)
	c.JSON(http.StatusOK, ChatResponse{
		Message: resp.Content,
		Meta: ChatMeta{
			TokensPrompt:     resp.Usage.InputTokens,
			TokensCompletion: resp.Usage.OutputTokens,
			FinishReason:     finish,
			ModuleHint:       s.moduleHint(slots),
			SlotsExtracted:   slots,
		},
	})
}

// slots runs the field extractor over the request history. Missing fields
// are reported as null.
func (s *Server) slots(history []llm.Message) map[string]*string {
	parts := make([]string, len(history))
	for i, m := range history {
		parts[i] = m.Content
	}

	out := make(map[string]*string)
	for key, v := range s.analyzer.ExtractFields(strings.Join(parts, " ")) {
		if v == "" {
			out[key] = nil
			continue
		}
		v := v
		out[key] = &v
	}
	return out
}

// moduleHint names the first mandatory field still missing, or "summary"
// once everything is captured.
func (s *Server) moduleHint(slots map[string]*string) string {
	for _, f := range s.analyzer.Fields() {
		if slots[f.Key] == nil {
			return f.Key
		}
	}
	return "summary"
}

// requestLogger logs each request through slog at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
