package services

import "fitbot/internal/models"

// HistorySize returns how many prior turns are replayed for an intent
func HistorySize(intent models.Intent, configuredMax int) int {
	switch intent {
	case models.IntentAnalytical, models.IntentMemberLookup:
		return 0
	case models.IntentOperational:
		return 1
	case models.IntentInformational:
		return 2
	default:
		if configuredMax < 2 {
			return max(configuredMax, 0)
		}
		return 2
	}
}

// SelectHistory returns the most recent turns allowed for intent, in chronological order
func SelectHistory(history []models.Turn, intent models.Intent, configuredMax int) []models.Turn {
	n := HistorySize(intent, configuredMax)
	if n == 0 || len(history) == 0 {
		return nil
	}
	if n > len(history) {
		n = len(history)
	}
	out := make([]models.Turn, n)
	copy(out, history[len(history)-n:])
	return out
}
