package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DirectClient talks to a SUT endpoint that speaks the simple
// {messages, config} -> {message, meta} protocol served by `serve-sut`.
type DirectClient struct {
	url    string
	model  string
	http   *http.Client
	retry  RetryPolicy
	logger *slog.Logger
}

// NewDirectClient returns a DirectClient posting to url.
func NewDirectClient(url, model string, timeout time.Duration, retry RetryPolicy, logger *slog.Logger) *DirectClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectClient{url: url, model: model, http: &http.Client{Timeout: timeout}, retry: retry, logger: logger}
}

type directRequest struct {
	Messages []Message    `json:"messages"`
	Config   directConfig `json:"config"`
}

type directConfig struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type directResponse struct {
	Message string `json:"message"`
	Meta    struct {
		TokensPrompt     int    `json:"tokens_prompt"`
		TokensCompletion int    `json:"tokens_completion"`
		FinishReason     string `json:"finish_reason"`
	} `json:"meta"`
}

// Send implements Client. System messages are dropped; the endpoint owns its
// system prompt.
func (c *DirectClient) Send(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := directRequest{Config: directConfig{Model: model, Temperature: req.Temperature}}
	for _, m := range req.Messages {
		if m.Role != RoleSystem {
			body.Messages = append(body.Messages, m)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var out *Response
	err = c.retry.do(ctx, c.logger, CallerSUT, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return classify(CallerSUT, 0, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return classify(CallerSUT, resp.StatusCode, err)
		}
		if resp.StatusCode != http.StatusOK {
			return classify(CallerSUT, resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(data)))
		}

		var dr directResponse
		if err := json.Unmarshal(data, &dr); err != nil {
			return classify(CallerSUT, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
		}
		out = &Response{
			Content:      dr.Message,
			FinishReason: dr.Meta.FinishReason,
			Usage: Usage{
				InputTokens:  dr.Meta.TokensPrompt,
				OutputTokens: dr.Meta.TokensCompletion,
				TotalTokens:  dr.Meta.TokensPrompt + dr.Meta.TokensCompletion,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
