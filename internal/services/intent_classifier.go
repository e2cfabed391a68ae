package services

import (
	"strings"

	"fitbot/internal/models"
)

// IntentRule maps a keyword set to an intent. Rules are evaluated in order.
type IntentRule struct {
	Intent   models.Intent
	Keywords []string
}

// DefaultIntentRules is the rule table used in production. Order breaks ties.
var DefaultIntentRules = []IntentRule{
	{
		Intent: models.IntentOperational,
		Keywords: []string{
			"approve", "pending payment", "confirm payment", "expiring", "renew member",
			"check in member", "check out member", "deactivate", "extend membership",
		},
	},
	{
		Intent: models.IntentAnalytical,
		Keywords: []string{
			"revenue", "report", "statistics", "stats", "how many", "total members", "trend",
			"growth", "analytics", "summary", "who checked in", "attendance report",
		},
	},
	{
		Intent: models.IntentMemberLookup,
		Keywords: []string{
			"my membership", "my status", "my pin", "my account", "my visits", "my attendance",
			"my payment", "membership status", "days left", "days remaining", "find member",
			"look up", "lookup",
		},
	},
}

// IntentClassifier is a deterministic keyword classifier. It performs no I/O.
type IntentClassifier struct {
	rules []IntentRule
}

// NewIntentClassifier creates a classifier over rules; nil uses DefaultIntentRules
func NewIntentClassifier(rules []IntentRule) *IntentClassifier {
	if rules == nil {
		rules = DefaultIntentRules
	}
	lowered := make([]IntentRule, len(rules))
	for i, rule := range rules {
		keywords := make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			keywords[j] = strings.ToLower(kw)
		}
		lowered[i] = IntentRule{Intent: rule.Intent, Keywords: keywords}
	}
	return &IntentClassifier{rules: lowered}
}

// Classify returns the intent with the most keyword hits and a confidence in [0,1].
// No hits yields informational with confidence 0.5.
func (c *IntentClassifier) Classify(message string) (models.Intent, float64) {
	lower := strings.ToLower(message)

	bestIdx := -1
	bestHits := 0
	totalHits := 0

	for i, rule := range c.rules {
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		totalHits += hits
		// Strictly greater keeps the earlier rule on ties
		if hits > bestHits {
			bestHits = hits
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return models.IntentInformational, 0.5
	}

	confidence := float64(bestHits) / float64(totalHits)
	if bestHits >= 2 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return c.rules[bestIdx].Intent, confidence
}
