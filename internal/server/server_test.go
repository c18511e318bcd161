package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/staffer-dev/staffer-sims/internal/llm"
	"github.com/staffer-dev/staffer-sims/internal/logging"
)

type fakeClient struct {
	reply *llm.Response
	err   error
	got   llm.Request
}

func (f *fakeClient) Send(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newTestServer(client llm.Client) *Server {
	return New(Config{
		Client:       client,
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are a recruiter.",
		Logger:       logging.NewForTest(),
	})
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sut/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRootHandler(t *testing.T) {
	s := newTestServer(&fakeClient{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("running")) {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestChatHandler(t *testing.T) {
	client := &fakeClient{reply: &llm.Response{
		Content: "What location is this role based in?",
		Usage:   llm.Usage{InputTokens: 30, OutputTokens: 8, TotalTokens: 38},
	}}
	s := newTestServer(client)

	w := post(t, s, `{"messages":[{"role":"user","content":"Job title: Senior Backend Engineer."}],"config":{"model":"gpt-4o","temperature":0.5}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "What location is this role based in?" {
		t.Errorf("message: %q", resp.Message)
	}
	if resp.Meta.TokensPrompt != 30 || resp.Meta.TokensCompletion != 8 || resp.Meta.FinishReason != "stop" {
		t.Errorf("meta: %+v", resp.Meta)
	}
	if title := resp.Meta.SlotsExtracted["job_title"]; title == nil || *title != "Senior Backend Engineer" {
		t.Errorf("job_title slot: %v", title)
	}
	if _, ok := resp.Meta.SlotsExtracted["salary_range"]; !ok {
		t.Error("missing slots should be present as null")
	}
	if resp.Meta.ModuleHint != "workplace_type" {
		t.Errorf("module_hint: got %q", resp.Meta.ModuleHint)
	}

	if len(client.got.Messages) != 2 || client.got.Messages[0].Role != llm.RoleSystem || client.got.Messages[0].Content != "You are a recruiter." {
		t.Errorf("upstream messages: %+v", client.got.Messages)
	}
	if client.got.Model != "gpt-4o" || client.got.Temperature == nil || *client.got.Temperature != 0.5 {
		t.Errorf("upstream config: model %q temp %v", client.got.Model, client.got.Temperature)
	}
}

func TestChatHandlerDefaults(t *testing.T) {
	client := &fakeClient{reply: &llm.Response{Content: "Hi, how can I help you?", FinishReason: "length"}}
	s := newTestServer(client)

	w := post(t, s, `{"messages":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	if client.got.Model != "gpt-4o-mini" || *client.got.Temperature != DefaultTemperature {
		t.Errorf("defaults not applied: %+v", client.got)
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Meta.FinishReason != "length" {
		t.Errorf("finish_reason: %q", resp.Meta.FinishReason)
	}
}

func TestChatHandlerUpstreamFailure(t *testing.T) {
	s := newTestServer(&fakeClient{err: errors.New("upstream down")})

	w := post(t, s, `{"messages":[{"role":"user","content":"hello"}]}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", w.Code)
	}
}

func TestChatHandlerBadRequest(t *testing.T) {
	s := newTestServer(&fakeClient{})

	for _, body := range []string{`{not json`, `{"config":{"model":"x"}}`} {
		if w := post(t, s, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want 400", body, w.Code)
		}
	}
}
