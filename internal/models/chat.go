package models

// Intent is the coarse category of a chat message
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentAnalytical    Intent = "analytical"
	IntentOperational   Intent = "operational"
	IntentMemberLookup  Intent = "member_lookup"

	// IntentFAQ tags answers from the FAQ fast path, which bypasses classification
	IntentFAQ Intent = "faq"
)

// UsesTools reports whether messages of this intent are offered to the tool router first
func (i Intent) UsesTools() bool {
	switch i {
	case IntentAnalytical, IntentOperational, IntentMemberLookup:
		return true
	}
	return false
}

// HandledBy names the path that produced a chat response
type HandledBy string

const (
	HandledByFAQ      HandledBy = "faq_fastpath"
	HandledByTools    HandledBy = "tools"
	HandledByAI       HandledBy = "ai"
	HandledByAIStream HandledBy = "ai_stream"
)

// ResultKind tags the variant of a routing result
type ResultKind string

const (
	ResultFAQAnswer  ResultKind = "faq_answer"
	ResultToolAnswer ResultKind = "tool_answer"
	ResultAIAnswer   ResultKind = "ai_answer"
	ResultError      ResultKind = "error"
)

// ChatRequest is a single inbound chat message
type ChatRequest struct {
	User           *User  // nil for anonymous visitors
	SessionKey     string // identifies anonymous visitors
	ConversationID string // optional, resumes an existing conversation
	Message        string
}

// ChatResponse is the routing result returned to callers of the chat core
type ChatResponse struct {
	Kind           ResultKind `json:"-"`
	Success        bool       `json:"success"`
	Response       string     `json:"response"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Intent         Intent     `json:"intent,omitempty"`
	HandledBy      HandledBy  `json:"handled_by,omitempty"`
	Model          string     `json:"model,omitempty"`
	Streaming      bool       `json:"streaming,omitempty"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	Error          string     `json:"error,omitempty"` // failure category, never provider text
}

// BackendStatus reports whether the generative backend has credentials
type BackendStatus struct {
	Status  string `json:"status"` // "configured" or "not_configured"
	Message string `json:"message"`
}
