package inference

import (
	"context"
	"strings"

	"fitbot/internal/models"
)

// Request is a single generation call. Sampling values come from configuration.
type Request struct {
	Prompt       string
	Temperature  float64
	MaxNewTokens int
	DoSample     bool
	TopP         float64
}

// Result is the text produced by a backend
type Result struct {
	Text  string
	Model string
}

// Backend is a remote text-generation service
type Backend interface {
	// Generate makes exactly one call. Failures are *BackendError or classifiable with Classify.
	Generate(ctx context.Context, req Request) (*Result, error)
	Model() string
	Configured() bool
}

// FormatPrompt flattens turns into the plain-text transcript the backends expect
func FormatPrompt(turns []models.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleSystem:
			b.WriteString("System: " + turn.Content + "\n\n")
		case models.RoleAssistant:
			b.WriteString("Assistant: " + turn.Content + "\n")
		default:
			b.WriteString("User: " + turn.Content + "\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}
