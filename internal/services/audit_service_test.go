package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fitbot/internal/models"
)

func TestAuditService_LogUsage(t *testing.T) {
	db := newTestDB(t)
	var out bytes.Buffer
	audit := NewAuditService(db, &out)
	staff := testStaff

	longQuery := strings.Repeat("q", 150)
	audit.LogUsage(context.Background(), &staff, longQuery, models.IntentAnalytical, 1500*time.Millisecond, 42)

	entries, err := audit.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Action != models.AuditActionReportGenerated || e.UserID != staff.ID || e.Severity != models.SeverityInfo {
		t.Errorf("Unexpected entry: %+v", e)
	}
	if e.Description != "Chatbot query: "+strings.Repeat("q", 100)+"..." {
		t.Errorf("Expected truncated description, got %q", e.Description)
	}
	if e.Details["intent"] != "analytical" {
		t.Errorf("Expected intent detail, got %v", e.Details["intent"])
	}
	if e.Details["query_length"] != float64(150) || e.Details["response_length"] != float64(42) {
		t.Errorf("Unexpected length details: %v", e.Details)
	}
	if e.Details["response_time_seconds"] != 1.5 {
		t.Errorf("Expected response time 1.5s, got %v", e.Details["response_time_seconds"])
	}

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &line); err != nil {
		t.Fatalf("Expected a JSON log line, got %q: %v", out.String(), err)
	}
	if line["action"] != models.AuditActionReportGenerated || line["user_id"] != staff.ID {
		t.Errorf("Unexpected log fields: %v", line)
	}
}

func TestAuditService_LogError(t *testing.T) {
	db := newTestDB(t)
	audit := NewAuditService(db, &bytes.Buffer{})
	member := testMember

	audit.LogError(context.Background(), &member, "hello", errors.New("provider said: quota gone"))
	audit.LogError(context.Background(), nil, "hello", errors.New("anonymous failure"))

	entries, err := audit.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected only the attributed error, got %d entries", len(entries))
	}
	if entries[0].Action != models.AuditActionChatbotError || entries[0].Severity != models.SeverityError {
		t.Errorf("Unexpected entry: %+v", entries[0])
	}
	if !strings.Contains(entries[0].Description, "quota gone") {
		t.Errorf("Expected raw cause in audit, got %q", entries[0].Description)
	}
}

func TestAuditService_WriteFailureIsSwallowed(t *testing.T) {
	db := newTestDB(t)
	audit := NewAuditService(db, &bytes.Buffer{})
	db.Close()

	staff := testStaff
	// Must not panic or block
	audit.LogUsage(context.Background(), &staff, "q", models.IntentFAQ, time.Millisecond, 1)
}
