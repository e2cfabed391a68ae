package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"fitbot/internal/database"
	"fitbot/internal/models"
)

// AuditLogger records chat usage and failures
type AuditLogger interface {
	LogUsage(ctx context.Context, user *models.User, message string, intent models.Intent, elapsed time.Duration, responseLength int)
	LogError(ctx context.Context, user *models.User, message string, err error)
}

// auditQueryPreview is how much of the query text an audit description keeps
const auditQueryPreview = 100

// AuditService writes audit entries to the audit_logs table and a JSON log stream
type AuditService struct {
	db     *database.DB
	logger *logrus.Logger
	now    func() time.Time
}

// NewAuditService creates an audit service. out defaults to stdout.
func NewAuditService(db *database.DB, out io.Writer) *AuditService {
	if out == nil {
		out = os.Stdout
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)

	return &AuditService{db: db, logger: logger, now: time.Now}
}

// LogUsage records a successful chat query by an elevated user
func (s *AuditService) LogUsage(ctx context.Context, user *models.User, message string, intent models.Intent, elapsed time.Duration, responseLength int) {
	if !user.IsAuthenticated() {
		return
	}

	entry := models.AuditEntry{
		Action:      models.AuditActionReportGenerated,
		UserID:      user.ID,
		Description: "Chatbot query: " + previewQuery(message),
		Severity:    models.SeverityInfo,
		Details: map[string]interface{}{
			"intent":                string(intent),
			"response_time_seconds": elapsed.Seconds(),
			"query_length":          len(message),
			"response_length":       responseLength,
		},
	}

	s.logger.WithFields(logrus.Fields{
		"action":        entry.Action,
		"user_id":       entry.UserID,
		"intent":        intent,
		"response_time": elapsed.Seconds(),
	}).Info("Chatbot usage")

	s.write(ctx, entry)
}

// LogError records a chat failure attributed to user, keeping the raw cause
func (s *AuditService) LogError(ctx context.Context, user *models.User, message string, cause error) {
	if !user.IsAuthenticated() {
		return
	}

	errText := ""
	if cause != nil {
		errText = cause.Error()
	}

	entry := models.AuditEntry{
		Action:      models.AuditActionChatbotError,
		UserID:      user.ID,
		Description: "Chatbot error: " + errText,
		Severity:    models.SeverityError,
		Details: map[string]interface{}{
			"query": previewQuery(message),
			"error": errText,
		},
	}

	s.logger.WithFields(logrus.Fields{
		"action":  entry.Action,
		"user_id": entry.UserID,
		"error":   errText,
	}).Error("Chatbot error")

	s.write(ctx, entry)
}

// Recent returns the newest audit entries, newest first
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, user_id, description, severity, details, created_at
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.UserID, &e.Description, &e.Severity, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// write persists entry. Audit failures never fail the chat request.
func (s *AuditService) write(ctx context.Context, entry models.AuditEntry) {
	if s.db == nil {
		return
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		log.Printf("⚠️  [AUDIT] Failed to encode details: %v", err)
		return
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (action, user_id, description, severity, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Action, entry.UserID, entry.Description, entry.Severity, string(details), s.now().UTC())
	if err != nil {
		log.Printf("⚠️  [AUDIT] Failed to write audit entry: %v", err)
	}
}

func previewQuery(message string) string {
	runes := []rune(message)
	if len(runes) <= auditQueryPreview {
		return message
	}
	return string(runes[:auditQueryPreview]) + "..."
}
