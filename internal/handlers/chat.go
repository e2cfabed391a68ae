package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"fitbot/internal/middleware"
	"fitbot/internal/models"
	"fitbot/internal/services"
)

// MaxMessageLength bounds a single chat message
const MaxMessageLength = 2000

// ChatHandler serves the chatbot API
type ChatHandler struct {
	orchestrator *services.ChatOrchestrator
	assembler    *services.ContextAssembler
	gymData      *services.GymDataService
	now          func() time.Time
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator *services.ChatOrchestrator, assembler *services.ContextAssembler, gymData *services.GymDataService) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		assembler:    assembler,
		gymData:      gymData,
		now:          time.Now,
	}
}

// SendMessageRequest is the body of POST /api/chat
type SendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SendMessage routes one chat message
// POST /api/chat
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}
	if len([]rune(message)) > MaxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is too long",
		})
	}

	resp, err := h.orchestrator.Handle(c.UserContext(), models.ChatRequest{
		User:           middleware.CurrentUser(c),
		SessionKey:     middleware.SessionKey(c),
		ConversationID: req.ConversationID,
		Message:        message,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Message is required",
			})
		}
		log.Printf("❌ [CHAT] Failed to process message: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(resp)
}

// Suggestions returns role-specific quick replies
// GET /api/chat/suggestions
func (h *ChatHandler) Suggestions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"suggestions": services.QuickSuggestions(middleware.CurrentUser(c)),
	})
}

// Status reports whether the generative backend is configured
// GET /api/chat/status
func (h *ChatHandler) Status(c *fiber.Ctx) error {
	return c.JSON(services.BackendStatus(h.orchestrator.Backend()))
}

// Models lists the supported generation models
// GET /api/chat/models
func (h *ChatHandler) Models(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models": services.SupportedModels(),
	})
}

// Conversation returns the messages of one of the requester's conversations
// GET /api/chat/conversations/:id
func (h *ChatHandler) Conversation(c *fiber.Ctx) error {
	id := c.Params("id")
	owner := models.OwnerFor(middleware.CurrentUser(c), middleware.SessionKey(c))

	messages, err := h.orchestrator.ConversationHistory(c.UserContext(), id, owner)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Conversation not found",
			})
		}
		log.Printf("❌ [CHAT] Failed to load conversation %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load conversation",
		})
	}

	return c.JSON(fiber.Map{
		"conversation_id": id,
		"messages":        messages,
	})
}

// DatabaseContext returns the gym data a keyword query would pull in (staff only)
// GET /api/chat/context?q=
func (h *ChatHandler) DatabaseContext(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter q is required",
		})
	}

	data, err := h.gymData.KeywordContext(c.UserContext(), query, h.now())
	if err != nil {
		log.Printf("❌ [CHAT] Failed to build keyword context: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load gym data",
		})
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"context": data,
	})
}

// ClearCache drops every derived-context cache entry, including today's staff stats
// POST /api/admin/chat/cache/clear
func (h *ChatHandler) ClearCache(c *fiber.Ctx) error {
	h.assembler.ClearCache(c.UserContext())

	user := middleware.CurrentUser(c)
	log.Printf("🗑️  [CACHE] Context cache cleared by %s", user.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Chatbot context cache cleared",
	})
}
