// Package analysis inspects a finished conversation: it extracts the
// recruiting fields that were gathered, checks the persona and the SUT for
// protocol breaches and classifies the run into a terminal status.
package analysis

import "time"

// Role identifies who produced a turn. The SUT speaks as "system" and the
// persona proxy as "user".
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Turn is one message of a simulated conversation as recorded by the engine.
type Turn struct {
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TurnController *string   `json:"turn_controller"`
}

// Status is the terminal state of a conversation.
type Status string

const (
	StatusCompleted       Status = "completed_successfully"
	StatusAwaitingConfirm Status = "summary_provided_awaiting_confirmation"
	StatusIncomplete      Status = "incomplete"
	StatusTimeout         Status = "timeout"
	StatusError           Status = "error"
	// StatusFailed marks a run that raised before a transcript could be
	// classified, e.g. after whole-run retries were exhausted.
	StatusFailed Status = "failed"
)

// FailureCategory groups failures for reporting.
type FailureCategory string

const (
	CategoryTimeout               FailureCategory = "timeout"
	CategoryAPIError              FailureCategory = "api_error"
	CategorySUTError              FailureCategory = "sut_error"
	CategoryProxyError            FailureCategory = "proxy_error"
	CategoryPersonaDrift          FailureCategory = "persona_drift"
	CategoryProtocolViolation     FailureCategory = "protocol_violation"
	CategoryIncompleteInformation FailureCategory = "incomplete_information"
	CategoryUserAbandonment       FailureCategory = "user_abandonment"
	CategorySystemError           FailureCategory = "system_error"
	CategoryValidationError       FailureCategory = "validation_error"
)

// FailureDetail is a single detected problem. TurnOccurred is 1-based; zero
// means the failure is not tied to a turn.
type FailureDetail struct {
	Category     FailureCategory `json:"category"`
	Reason       string          `json:"reason"`
	ErrorMessage string          `json:"error_message,omitempty"`
	TurnOccurred int             `json:"turn_occurred,omitempty"`
	Context      map[string]any  `json:"context,omitempty"`
}

// Outcome is the classified result of a conversation.
type Outcome struct {
	Status            Status          `json:"status"`
	CompletionLevel   int             `json:"completion_level"`
	SuccessIndicators []string        `json:"success_indicators"`
	Issues            []string        `json:"issues"`
	Failures          []FailureDetail `json:"failures"`
	TotalFailures     int             `json:"total_failures"`
}

// ConversationTurn is a numbered view of a turn used in summaries.
type ConversationTurn struct {
	Turn           int    `json:"turn"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	ContentPreview string `json:"content_preview"`
}

// ConversationSummary describes the flow of a conversation.
type ConversationSummary struct {
	TotalTurns             int                `json:"total_turns"`
	ConversationFlow       []ConversationTurn `json:"conversation_flow"`
	KeyInformationGathered []string           `json:"key_information_gathered"`
	ConversationQuality    string             `json:"conversation_quality"`
}

// InformationGathered is the structured hiring information found in a
// conversation. Nil pointers mean the field was not found.
type InformationGathered struct {
	RoleType         *string           `json:"role_type"`
	Location         *string           `json:"location"`
	WorkplaceType    *string           `json:"workplace_type"`
	EmploymentType   *string           `json:"employment_type"`
	ExperienceLevel  *string           `json:"experience_level"`
	SalaryRange      *string           `json:"salary_range"`
	SkillsMentioned  []string          `json:"skills_mentioned"`
	Responsibilities []string          `json:"responsibilities"`
	Deadline         *string           `json:"deadline"`
	Fields           map[string]string `json:"fields"`
}
