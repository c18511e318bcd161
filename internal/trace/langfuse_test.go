package trace

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type received struct {
	user, pass string
	path       string
	batch      []ingestionEvent
}

func newIngestionServer(t *testing.T, status int) (*httptest.Server, *[]received) {
	t.Helper()
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		var body struct {
			Batch []ingestionEvent `json:"batch"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, received{user: user, pass: pass, path: r.URL.Path, batch: body.Batch})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLangfuseFlushSendsBatch(t *testing.T) {
	srv, got := newIngestionServer(t, http.StatusMultiStatus)
	lf := NewLangfuse(LangfuseConfig{PublicKey: "pk", SecretKey: "sk", Host: srv.URL + "/"}, quiet())
	ctx := context.Background()

	lf.StartTrace(ctx, "conversation", map[string]any{"persona": "Alex"}, nil)
	span := lf.StartSpan(ctx, "sut_turn_0", "hello", map[string]any{"turn": 0})
	span.End("hi")
	span.End("ignored")
	lf.UpdateTrace(ctx, nil, nil, []string{"Alex", "seed:1"})
	lf.Event(ctx, "conversation_evaluation", "transcript", map[string]any{"status": "incomplete"})
	lf.Flush(ctx)

	if len(*got) != 1 {
		t.Fatalf("requests: got %d, want 1", len(*got))
	}
	req := (*got)[0]
	if req.user != "pk" || req.pass != "sk" {
		t.Errorf("basic auth: got %q/%q", req.user, req.pass)
	}
	if req.path != "/api/public/ingestion" {
		t.Errorf("path: got %q", req.path)
	}

	var types []string
	for _, e := range req.batch {
		types = append(types, e.Type)
	}
	want := []string{"trace-create", "span-create", "span-update", "trace-create", "event-create"}
	if len(types) != len(want) {
		t.Fatalf("event types: got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
	if req.batch[1].Body["traceId"] != lf.TraceID() {
		t.Errorf("span not attached to trace: %v", req.batch[1].Body)
	}
}

func TestLangfuseFlushEmptyBatchSendsNothing(t *testing.T) {
	srv, got := newIngestionServer(t, http.StatusOK)
	lf := NewLangfuse(LangfuseConfig{Host: srv.URL}, quiet())

	lf.Flush(context.Background())

	if len(*got) != 0 {
		t.Errorf("expected no request, got %d", len(*got))
	}
}

func TestLangfuseFlushErrorIsSwallowed(t *testing.T) {
	srv, got := newIngestionServer(t, http.StatusUnauthorized)
	lf := NewLangfuse(LangfuseConfig{Host: srv.URL}, quiet())
	ctx := context.Background()

	lf.StartTrace(ctx, "conversation", nil, nil)
	lf.Flush(ctx)
	lf.Flush(ctx)

	if len(*got) != 1 {
		t.Errorf("failed batch should be dropped, got %d requests", len(*got))
	}
}

func TestLangfuseUnreachableHost(t *testing.T) {
	lf := NewLangfuse(LangfuseConfig{Host: "http://127.0.0.1:1"}, quiet())
	ctx := context.Background()
	lf.StartTrace(ctx, "conversation", nil, nil)
	lf.Flush(ctx)
}

func TestNop(t *testing.T) {
	var s Service = Nop{}
	ctx := context.Background()
	s.StartTrace(ctx, "x", nil, nil)
	s.StartSpan(ctx, "x", nil, nil).End(nil)
	s.UpdateTrace(ctx, nil, nil, nil)
	s.Event(ctx, "x", nil, nil)
	s.Flush(ctx)
}
