package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fitbot/internal/cache"
	"fitbot/internal/models"
)

// Context cache keys and lifetimes
const (
	CacheKeyStaticBase       = "chatbot_static_base_context"
	CacheKeyMembershipPlans  = "chatbot_membership_plans"
	CacheKeyWalkInPasses     = "chatbot_walkin_passes"
	CacheKeyFitnessKnowledge = "chatbot_fitness_knowledge"
	CacheKeyStaffStatsPrefix = "chatbot_staff_stats"

	StaticContextTTL  = time.Hour
	CatalogContextTTL = 10 * time.Minute
	StaffStatsTTL     = 2 * time.Minute
)

// Fixed prompt sentences
const (
	analyticalDirective  = "You are FitBot, a gym customer service assistant. Answer briefly and concisely."
	operationalDirective = "You are FitBot, a gym system assistant. Provide clear, direct answers."
	anonymousLookup      = "You are FitBot, a gym customer service assistant."
	staffCapabilityHint  = "\nYou can help with analytics, operations, and member management."
)

var fitnessKeywords = []string{"workout", "exercise", "fitness", "training", "gym tips"}

// GymReader is the slice of gym data the assembler reads
type GymReader interface {
	ActivePlans(ctx context.Context) ([]models.MembershipPlan, error)
	ActivePasses(ctx context.Context) ([]models.FlexibleAccess, error)
	ActiveMembership(ctx context.Context, userID string, today time.Time) (*models.UserMembership, error)
	AttendanceCount(ctx context.Context, userID string) (int, error)
	CheckinsOn(ctx context.Context, day time.Time) (int, error)
	CurrentlyCheckedIn(ctx context.Context) (int, error)
}

// ContextAssembler builds the system prompt for the generative path
type ContextAssembler struct {
	cache   *cache.TieredCache
	data    GymReader
	gymName string
	now     func() time.Time
}

// NewContextAssembler creates an assembler. now defaults to time.Now.
func NewContextAssembler(c *cache.TieredCache, data GymReader, gymName string, now func() time.Time) *ContextAssembler {
	if now == nil {
		now = time.Now
	}
	if gymName == "" {
		gymName = "Rhose Gym"
	}
	return &ContextAssembler{cache: c, data: data, gymName: gymName, now: now}
}

// Build returns the system prompt for intent. Data failures shrink the prompt, never fail it.
func (a *ContextAssembler) Build(ctx context.Context, intent models.Intent, user *models.User, message string) string {
	var prompt string

	switch intent {
	case models.IntentAnalytical:
		prompt = analyticalDirective
	case models.IntentOperational:
		prompt = operationalDirective
	case models.IntentMemberLookup:
		if user.IsAuthenticated() {
			prompt = fmt.Sprintf("You are FitBot. The current user is %s (%s).", user.DisplayName(), user.Role)
		} else {
			prompt = anonymousLookup
		}
	default:
		prompt = a.SystemContext(ctx, user)
		if containsAnyKeyword(strings.ToLower(message), fitnessKeywords...) {
			prompt += a.FitnessKnowledge(ctx)
		}
	}

	if user.IsStaffOrAdmin() {
		prompt += staffCapabilityHint
	}
	return prompt
}

// SystemContext is the full informational context: static base, catalog and the requester's own state
func (a *ContextAssembler) SystemContext(ctx context.Context, user *models.User) string {
	return a.StaticBaseContext(ctx) +
		a.PlansContext(ctx) +
		a.PassesContext(ctx) +
		a.UserContext(ctx, user)
}

// StaticBaseContext returns the cached gym knowledge base
func (a *ContextAssembler) StaticBaseContext(ctx context.Context) string {
	return a.cached(ctx, CacheKeyStaticBase, StaticContextTTL, func(context.Context) (string, error) {
		return staticBaseContext(a.gymName), nil
	})
}

// FitnessKnowledge returns the cached workout and nutrition primer
func (a *ContextAssembler) FitnessKnowledge(ctx context.Context) string {
	return a.cached(ctx, CacheKeyFitnessKnowledge, StaticContextTTL, func(context.Context) (string, error) {
		return fitnessKnowledge, nil
	})
}

// PlansContext returns the cached active plan listing, empty when there are none
func (a *ContextAssembler) PlansContext(ctx context.Context) string {
	return a.cached(ctx, CacheKeyMembershipPlans, CatalogContextTTL, func(ctx context.Context) (string, error) {
		plans, err := a.data.ActivePlans(ctx)
		if err != nil || len(plans) == 0 {
			return "", err
		}
		var b strings.Builder
		b.WriteString("\n\nAVAILABLE MEMBERSHIP PLANS:\n")
		for _, plan := range plans {
			fmt.Fprintf(&b, "- %s: ₱%.2f for %d days\n", plan.Name, plan.Price, plan.DurationDays)
			if plan.Description != "" {
				fmt.Fprintf(&b, "  Description: %s\n", plan.Description)
			}
		}
		return b.String(), nil
	})
}

// PassesContext returns the cached active walk-in pass listing, empty when there are none
func (a *ContextAssembler) PassesContext(ctx context.Context) string {
	return a.cached(ctx, CacheKeyWalkInPasses, CatalogContextTTL, func(ctx context.Context) (string, error) {
		passes, err := a.data.ActivePasses(ctx)
		if err != nil || len(passes) == 0 {
			return "", err
		}
		var b strings.Builder
		b.WriteString("\n\nWALK-IN PASSES:\n")
		for _, pass := range passes {
			fmt.Fprintf(&b, "- %s: ₱%.2f for %d day(s)\n", pass.Name, pass.Price, pass.DurationDays)
		}
		return b.String(), nil
	})
}

// UserContext returns the requester's own state. Only the staff daily stats are cached.
func (a *ContextAssembler) UserContext(ctx context.Context, user *models.User) string {
	if !user.IsAuthenticated() {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\nCURRENT USER: %s (%s)\n", user.DisplayName(), user.Role)

	switch {
	case user.IsMember():
		b.WriteString(a.memberState(ctx, user))
	case user.IsStaffOrAdmin():
		b.WriteString(a.StaffStats(ctx))
	}
	return b.String()
}

// StaffStats returns today's check-in summary, cached under a per-day key
func (a *ContextAssembler) StaffStats(ctx context.Context) string {
	today := a.now()
	return a.cached(ctx, cache.DailyKey(CacheKeyStaffStatsPrefix, today), StaffStatsTTL, func(ctx context.Context) (string, error) {
		checkins, err := a.data.CheckinsOn(ctx, today)
		if err != nil {
			return "", err
		}
		inside, err := a.data.CurrentlyCheckedIn(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("\nTODAY'S STATS:\n- Check-ins today: %d\n- Currently in gym: %d\n", checkins, inside), nil
	})
}

// ClearCache drops every derived-context entry, including today's staff stats
func (a *ContextAssembler) ClearCache(ctx context.Context) {
	a.cache.Invalidate(ctx, CacheKeys(a.now())...)
	log.Printf("🧹 [CONTEXT] Cleared chatbot context cache")
}

// CacheKeys lists the derived-context keys live on day
func CacheKeys(day time.Time) []string {
	return []string{
		CacheKeyStaticBase,
		CacheKeyMembershipPlans,
		CacheKeyWalkInPasses,
		CacheKeyFitnessKnowledge,
		cache.DailyKey(CacheKeyStaffStatsPrefix, day),
	}
}

func (a *ContextAssembler) memberState(ctx context.Context, user *models.User) string {
	today := a.now()
	var b strings.Builder

	membership, err := a.data.ActiveMembership(ctx, user.ID, today)
	if err != nil {
		log.Printf("⚠️  [CONTEXT] Failed to load membership for %s: %v", user.ID, err)
	}
	if membership != nil {
		fmt.Fprintf(&b, "Active Membership: %s\n", membership.PlanName)
		fmt.Fprintf(&b, "Days Remaining: %d\n", membership.DaysRemaining(today))
		fmt.Fprintf(&b, "Expires: %s\n", membership.EndDate.Format("2006-01-02"))
		if user.KioskPIN != "" {
			fmt.Fprintf(&b, "Kiosk PIN: %s\n", user.KioskPIN)
		}
	} else if err == nil {
		b.WriteString("No active membership\n")
	}

	visits, err := a.data.AttendanceCount(ctx, user.ID)
	if err != nil {
		log.Printf("⚠️  [CONTEXT] Failed to count visits for %s: %v", user.ID, err)
	} else if visits > 0 {
		fmt.Fprintf(&b, "\nRECENT GYM VISITS: %d visits logged\n", visits)
	}
	return b.String()
}

func (a *ContextAssembler) cached(ctx context.Context, key string, ttl time.Duration, compute cache.ComputeFunc) string {
	value, err := a.cache.GetOrCompute(ctx, key, ttl, compute)
	if err != nil {
		log.Printf("⚠️  [CONTEXT] Failed to build %s: %v", key, err)
		return ""
	}
	return value
}
