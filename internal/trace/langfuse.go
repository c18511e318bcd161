package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLangfuseHost is used when no host is configured.
const DefaultLangfuseHost = "https://cloud.langfuse.com"

const ingestionPath = "/api/public/ingestion"

// LangfuseConfig holds the project keys and host.
type LangfuseConfig struct {
	PublicKey string
	SecretKey string
	Host      string
	Timeout   time.Duration
}

// Langfuse buffers ingestion events and sends them in one batch on Flush.
// It traces a single run at a time.
type Langfuse struct {
	cfg    LangfuseConfig
	http   *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	traceID string
	batch   []ingestionEvent
	now     func() time.Time
}

type ingestionEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

// NewLangfuse returns a Langfuse service for cfg.
func NewLangfuse(cfg LangfuseConfig, logger *slog.Logger) *Langfuse {
	if cfg.Host == "" {
		cfg.Host = DefaultLangfuseHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Langfuse{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TraceID returns the id of the current trace, or "" before StartTrace.
func (l *Langfuse) TraceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.traceID
}

func (l *Langfuse) StartTrace(_ context.Context, name string, input any, metadata map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traceID = uuid.NewString()
	l.enqueue("trace-create", map[string]any{
		"id":        l.traceID,
		"name":      name,
		"input":     input,
		"metadata":  metadata,
		"timestamp": l.stamp(),
	})
}

func (l *Langfuse) StartSpan(_ context.Context, name string, input any, metadata map[string]any) Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &langfuseSpan{l: l, id: uuid.NewString(), traceID: l.traceID}
	l.enqueue("span-create", map[string]any{
		"id":        s.id,
		"traceId":   s.traceID,
		"name":      name,
		"input":     input,
		"metadata":  metadata,
		"startTime": l.stamp(),
	})
	return s
}

func (l *Langfuse) UpdateTrace(_ context.Context, output any, metadata map[string]any, tags []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	body := map[string]any{"id": l.traceID}
	if output != nil {
		body["output"] = output
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	if tags != nil {
		body["tags"] = tags
	}
	l.enqueue("trace-create", body)
}

func (l *Langfuse) Event(_ context.Context, name string, input, output any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enqueue("event-create", map[string]any{
		"id":        uuid.NewString(),
		"traceId":   l.traceID,
		"name":      name,
		"input":     input,
		"output":    output,
		"startTime": l.stamp(),
	})
}

// Flush sends the buffered batch. Errors are logged and the batch is dropped.
func (l *Langfuse) Flush(ctx context.Context) {
	l.mu.Lock()
	batch := l.batch
	l.batch = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := l.send(ctx, batch); err != nil {
		l.logger.Warn("langfuse flush failed", "events", len(batch), "error", err)
		return
	}
	l.logger.Debug("langfuse flushed", "events", len(batch))
}

func (l *Langfuse) send(ctx context.Context, batch []ingestionEvent) error {
	payload, err := json.Marshal(map[string]any{"batch": batch})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	url := strings.TrimRight(l.cfg.Host, "/") + ingestionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(l.cfg.PublicKey, l.cfg.SecretKey)

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer resp.Body.Close()

	// 207 means partial success; per-event errors are reported in the body.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusMultiStatus {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ingestion returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// enqueue appends an event. Callers hold l.mu.
func (l *Langfuse) enqueue(typ string, body map[string]any) {
	l.batch = append(l.batch, ingestionEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: l.stamp(),
		Body:      body,
	})
}

func (l *Langfuse) stamp() string {
	return l.now().Format(time.RFC3339Nano)
}

type langfuseSpan struct {
	l       *Langfuse
	id      string
	traceID string
	once    sync.Once
}

// End closes the span with output. Only the first call has effect.
func (s *langfuseSpan) End(output any) {
	s.once.Do(func() {
		s.l.mu.Lock()
		defer s.l.mu.Unlock()
		s.l.enqueue("span-update", map[string]any{
			"id":      s.id,
			"traceId": s.traceID,
			"output":  output,
			"endTime": s.l.stamp(),
		})
	})
}
