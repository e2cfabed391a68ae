package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fitbot/internal/database"
	"fitbot/internal/models"
)

// ErrConversationNotFound is returned when an id does not resolve for the given owner
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore is the durable append-only message log
type ConversationStore interface {
	Create(ctx context.Context, owner models.Owner, model string) (*models.Conversation, error)
	// Find only resolves conversations belonging to owner
	Find(ctx context.Context, id string, owner models.Owner) (*models.Conversation, error)
	// Append stores a message and updates conv's count, timestamp and lazily its title
	Append(ctx context.Context, conv *models.Conversation, role, content string, responseTimeMs *int64) (*models.Message, error)
	// List returns all messages in insertion order
	List(ctx context.Context, conversationID string) ([]models.Message, error)
}

// SQLConversationStore keeps conversations in the relational database
type SQLConversationStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLConversationStore creates a store over db
func NewSQLConversationStore(db *database.DB) *SQLConversationStore {
	return &SQLConversationStore{db: db, now: time.Now}
}

func (s *SQLConversationStore) Create(ctx context.Context, owner models.Owner, model string) (*models.Conversation, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("conversation owner must have exactly one of user id or session key")
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		Owner:     owner,
		ModelUsed: model,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, user_id, session_key, title, model_used, message_count, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, 0, ?, ?)
	`, conv.ID, nullString(owner.UserID), nullString(owner.SessionKey), model, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLConversationStore) Find(ctx context.Context, id string, owner models.Owner) (*models.Conversation, error) {
	query := `
		SELECT conversation_id, user_id, session_key, title, model_used, message_count, created_at, updated_at
		FROM conversations
		WHERE conversation_id = ?
	`
	args := []interface{}{id}
	if owner.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, owner.UserID)
	} else {
		query += " AND session_key = ? AND user_id IS NULL"
		args = append(args, owner.SessionKey)
	}

	var conv models.Conversation
	var userID, sessionKey sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&conv.ID, &userID, &sessionKey, &conv.Title,
		&conv.ModelUsed, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	conv.Owner = models.Owner{UserID: userID.String, SessionKey: sessionKey.String}
	return &conv, nil
}

func (s *SQLConversationStore) Append(ctx context.Context, conv *models.Conversation, role, content string, responseTimeMs *int64) (*models.Message, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latency interface{}
	if responseTimeMs != nil {
		latency = *responseTimeMs
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, role, content, latency, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read message id: %w", err)
	}

	title := conv.Title
	if role == models.RoleUser && title == "" {
		title = models.GenerateTitle(content)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, title = ?, updated_at = ?
		WHERE conversation_id = ?
	`, title, now, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	conv.Title = title
	conv.MessageCount++
	conv.UpdatedAt = now

	return &models.Message{
		ID:             msgID,
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		ResponseTimeMs: responseTimeMs,
		CreatedAt:      now,
	}, nil
}

func (s *SQLConversationStore) List(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, response_time_ms, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var latency sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &latency, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if latency.Valid {
			v := latency.Int64
			msg.ResponseTimeMs = &v
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
