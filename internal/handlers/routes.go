package handlers

import (
	"github.com/gofiber/fiber/v2"

	"fitbot/internal/middleware"
	"fitbot/pkg/auth"
)

// RouteDeps are the handlers and middleware inputs behind the HTTP API
type RouteDeps struct {
	Chat        *ChatHandler
	Health      *HealthHandler
	JWTAuth     *auth.LocalJWTAuth // nil = anonymous only
	StaffIDs    []string
	Users       middleware.UserLookup // nil = token claims only
	ChatLimiter *middleware.ChatRateLimiter
}

// RegisterRoutes mounts the chatbot API on app
func RegisterRoutes(app *fiber.App, deps RouteDeps) {
	app.Get("/health", deps.Health.Handle)

	api := app.Group("/api",
		middleware.SessionKeyMiddleware(),
		middleware.OptionalAuthMiddleware(deps.JWTAuth, deps.StaffIDs, deps.Users),
	)

	sendHandlers := []fiber.Handler{deps.Chat.SendMessage}
	if deps.ChatLimiter != nil {
		sendHandlers = append([]fiber.Handler{deps.ChatLimiter.Middleware()}, sendHandlers...)
	}
	api.Post("/chat", sendHandlers...)

	api.Get("/chat/suggestions", deps.Chat.Suggestions)
	api.Get("/chat/status", deps.Chat.Status)
	api.Get("/chat/models", deps.Chat.Models)
	api.Get("/chat/conversations/:id", deps.Chat.Conversation)
	api.Get("/chat/context", middleware.StaffMiddleware(), deps.Chat.DatabaseContext)

	// Staff/admin cache control
	api.Post("/admin/chat/cache/clear", middleware.StaffMiddleware(), deps.Chat.ClearCache)
}
