package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitbot/internal/database"
	"fitbot/internal/models"
)

// MongoConversationStore keeps conversations in MongoDB.
// Message order comes from a per-conversation sequence counter on the header document.
type MongoConversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	now           func() time.Time
}

// NewMongoConversationStore creates a store over mongoDB
func NewMongoConversationStore(mongoDB *database.MongoDB) *MongoConversationStore {
	return &MongoConversationStore{
		conversations: mongoDB.Collection(database.CollectionConversations),
		messages:      mongoDB.Collection(database.CollectionMessages),
		now:           time.Now,
	}
}

func (s *MongoConversationStore) Create(ctx context.Context, owner models.Owner, model string) (*models.Conversation, error) {
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

	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *MongoConversationStore) Find(ctx context.Context, id string, owner models.Owner) (*models.Conversation, error) {
	filter := bson.M{"conversationId": id}
	if owner.UserID != "" {
		filter["owner.userId"] = owner.UserID
	} else {
		filter["owner.sessionKey"] = owner.SessionKey
		filter["owner.userId"] = bson.M{"$exists": false}
	}

	var conv models.Conversation
	err := s.conversations.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

func (s *MongoConversationStore) Append(ctx context.Context, conv *models.Conversation, role, content string, responseTimeMs *int64) (*models.Message, error) {
	now := s.now().UTC()

	set := bson.M{"updatedAt": now}
	if role == models.RoleUser && conv.Title == "" {
		set["title"] = models.GenerateTitle(content)
	}

	// Reserve the next sequence number atomically
	var updated models.Conversation
	err := s.conversations.FindOneAndUpdate(ctx,
		bson.M{"conversationId": conv.ID},
		bson.M{"$inc": bson.M{"messageCount": 1}, "$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	msg := &models.Message{
		ID:             int64(updated.MessageCount),
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		ResponseTimeMs: responseTimeMs,
		CreatedAt:      now,
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	conv.Title = updated.Title
	conv.MessageCount = updated.MessageCount
	conv.UpdatedAt = now
	return msg, nil
}

func (s *MongoConversationStore) List(ctx context.Context, conversationID string) ([]models.Message, error) {
	cursor, err := s.messages.Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}
