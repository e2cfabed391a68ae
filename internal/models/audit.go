package models

import "time"

// Audit actions written by the chat core
const (
	AuditActionReportGenerated = "report_generated"
	AuditActionChatbotError    = "chatbot_error"
)

// Audit severities
const (
	SeverityInfo  = "info"
	SeverityError = "error"
)

// AuditEntry is one row of the audit trail
type AuditEntry struct {
	ID          int64                  `json:"id"`
	Action      string                 `json:"action"`
	UserID      string                 `json:"user_id"`
	Description string                 `json:"description"`
	Severity    string                 `json:"severity"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
