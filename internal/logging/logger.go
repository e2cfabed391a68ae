package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRequest returns a logger with chat request fields attached.
// Use this for all logging within a single chat request.
func WithRequest(conversationID, userID string) *slog.Logger {
	if userID == "" {
		userID = "anonymous"
	}
	return slog.With(
		"conversation_id", conversationID,
		"user_id", userID,
	)
}

// WithIntent returns a logger scoped to the classified intent of a request.
func WithIntent(logger *slog.Logger, intent string, confidence float64) *slog.Logger {
	return logger.With(
		"intent", intent,
		"confidence", confidence,
	)
}
