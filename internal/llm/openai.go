package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat client. BaseURL selects
// the provider (OpenAI, OpenRouter or any compatible endpoint).
type OpenAIConfig struct {
	Caller  Caller
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   RetryPolicy
	Logger  *slog.Logger
}

// OpenAIClient sends chat completions through go-openai with bounded retry.
type OpenAIClient struct {
	client *openai.Client
	caller Caller
	model  string
	retry  RetryPolicy
	logger *slog.Logger
}

// NewOpenAIClient builds a client for cfg.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		caller: cfg.Caller,
		model:  cfg.Model,
		retry:  cfg.Retry,
		logger: logger,
	}
}

// Send implements Client.
func (c *OpenAIClient) Send(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	creq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		creq.TopP = float32(*req.TopP)
	}

	var out *Response
	err := c.retry.do(ctx, c.logger, c.caller, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return c.wrap(err)
		}
		if len(resp.Choices) == 0 {
			return &APIError{Kind: KindAPI, Caller: c.caller, Err: errors.New("response has no choices")}
		}
		out = &Response{
			Content:      resp.Choices[0].Message.Content,
			FinishReason: string(resp.Choices[0].FinishReason),
			Usage: Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("llm call completed", "caller", c.caller, "model", model, "tokens", out.Usage.TotalTokens)
	return out, nil
}

func (c *OpenAIClient) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(c.caller, apiErr.HTTPStatusCode, fmt.Errorf("%s", apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classify(c.caller, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return classify(c.caller, 0, err)
}
