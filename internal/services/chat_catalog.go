package services

import (
	"fitbot/internal/inference"
	"fitbot/internal/models"
)

var (
	memberSuggestions = []string{
		"What's my membership status?",
		"How do I check my payment history?",
		"How do I use my kiosk PIN?",
		"How can I renew my membership?",
		"Show me workout tips for beginners",
		"What are the gym hours?",
	}

	staffSuggestions = []string{
		"Show me today's revenue summary",
		"Who checked in today?",
		"Find members expiring in 7 days",
		"Show pending payment approvals",
		"This week's attendance report",
		"Membership growth this month",
	}

	visitorSuggestions = []string{
		"What membership plans do you offer?",
		"How much are walk-in passes?",
		"How do I register for the gym?",
		"What payment methods do you accept?",
		"How do I check in at the gym?",
		"Tell me about your facilities",
	}
)

// QuickSuggestions returns the quick-reply prompts for the requester's role
func QuickSuggestions(user *models.User) []string {
	var src []string
	switch {
	case user.IsStaffOrAdmin():
		src = staffSuggestions
	case user.IsAuthenticated():
		src = memberSuggestions
	default:
		src = visitorSuggestions
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// BackendStatus reports whether backend has credentials
func BackendStatus(backend inference.Backend) models.BackendStatus {
	if backend != nil && backend.Configured() {
		return models.BackendStatus{
			Status:  "configured",
			Message: "Generative backend is configured and ready (model " + backend.Model() + ")",
		}
	}
	return models.BackendStatus{
		Status:  "not_configured",
		Message: "Generative backend API key is not set. Please configure HF_API_KEY or OPENAI_API_KEY.",
	}
}

// SupportedModels returns the text-generation models known to work with the chatbot
func SupportedModels() []string {
	out := make([]string, len(inference.SupportedModels))
	copy(out, inference.SupportedModels)
	return out
}
