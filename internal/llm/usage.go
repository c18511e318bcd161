package llm

// Per-token prices for gpt-4o-mini, in USD.
const (
	InputCostPerToken  = 0.15 / 1_000_000
	OutputCostPerToken = 0.60 / 1_000_000
)

// UsageStats accumulates token usage and call counts for one run. It is not
// safe for concurrent use; each run owns its own instance.
type UsageStats struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	SUTCalls      int     `json:"sut_calls"`
	ProxyCalls    int     `json:"proxy_calls"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Add records one call's usage.
func (s *UsageStats) Add(caller Caller, u Usage) {
	s.InputTokens += u.InputTokens
	s.OutputTokens += u.OutputTokens
	s.TotalTokens += u.TotalTokens
	switch caller {
	case CallerSUT:
		s.SUTCalls++
	case CallerProxy:
		s.ProxyCalls++
	}
	s.EstimatedCost = float64(s.InputTokens)*InputCostPerToken + float64(s.OutputTokens)*OutputCostPerToken
}
