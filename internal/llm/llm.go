// Package llm is the chat-completion collaborator used for both sides of a
// simulated conversation: the SUT recruiter and the persona proxy.
package llm

import "context"

// Message roles understood by chat-completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Caller names which side of the conversation made a call.
type Caller string

const (
	CallerSUT   Caller = "sut"
	CallerProxy Caller = "proxy"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion request. Nil sampling parameters are
// left to the provider default.
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float64
	TopP        *float64
}

// Usage is the token accounting for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the assistant text plus its usage.
type Response struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Client sends chat completions. Implementations return *APIError for
// provider failures.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
