package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitleMaxLength is the rune length a conversation title is cut to
const TitleMaxLength = 50

// Owner identifies who a conversation belongs to. Exactly one field is set:
// UserID for authenticated users, SessionKey for anonymous visitors.
type Owner struct {
	UserID     string `json:"user_id,omitempty" bson:"userId,omitempty"`
	SessionKey string `json:"session_key,omitempty" bson:"sessionKey,omitempty"`
}

// OwnerFor builds the owner of a conversation started by user (nil = anonymous) on sessionKey
func OwnerFor(user *User, sessionKey string) Owner {
	if user.IsAuthenticated() {
		return Owner{UserID: user.ID}
	}
	return Owner{SessionKey: sessionKey}
}

// Valid reports whether exactly one owner field is set
func (o Owner) Valid() bool {
	return (o.UserID == "") != (o.SessionKey == "")
}

// Conversation is the durable header of a chat thread
type Conversation struct {
	ID           string    `json:"conversation_id" bson:"conversationId"`
	Owner        Owner     `json:"owner" bson:"owner"`
	Title        string    `json:"title" bson:"title"`
	ModelUsed    string    `json:"model_used" bson:"modelUsed"`
	MessageCount int       `json:"message_count" bson:"messageCount"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updatedAt"`
}

// Message is a single persisted conversation turn
type Message struct {
	ID             int64     `json:"id" bson:"seq"`
	ConversationID string    `json:"conversation_id" bson:"conversationId"`
	Role           string    `json:"role" bson:"role"`
	Content        string    `json:"content" bson:"content"`
	ResponseTimeMs *int64    `json:"response_time_ms,omitempty" bson:"responseTimeMs,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"createdAt"`
}

// Turn is one entry of the in-memory replay buffer used for prompting
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplayTurns converts persisted messages into the replay buffer, dropping system entries
func ReplayTurns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

// GenerateTitle derives a conversation title from the first user message
func GenerateTitle(firstMessage string) string {
	title := strings.Join(strings.Fields(firstMessage), " ")
	if utf8.RuneCountInString(title) <= TitleMaxLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:TitleMaxLength])) + "..."
}
