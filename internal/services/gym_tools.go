package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fitbot/internal/models"
)

// ToolRouter answers structured questions from gym data. An empty answer means no tool applied.
type ToolRouter interface {
	Route(ctx context.Context, user *models.User, message string) (string, error)
}

// Fixed tool replies
const (
	staffOnlyReply = "Sorry, that information is only available to gym staff."
	loginReply     = "Please log in to view your membership details."
)

type toolAccess int

const (
	accessMember toolAccess = iota
	accessStaff
)

type gymTool struct {
	name     string
	access   toolAccess
	keywords []string
	run      func(ctx context.Context, user *models.User, message string) (string, error)
}

// GymTools routes messages to the first tool whose keywords match
type GymTools struct {
	data  *GymDataService
	stats StaffStatsSource
	now   func() time.Time
	tools []gymTool
}

// StaffStatsSource returns today's cached check-in summary, "" when unavailable
type StaffStatsSource interface {
	StaffStats(ctx context.Context) string
}

// SetStaffStats routes the today figures of gym_stats through src so staff see the
// same cached numbers as the prompt path within its TTL
func (g *GymTools) SetStaffStats(src StaffStatsSource) {
	g.stats = src
}

// NewGymTools creates the tool router. now defaults to time.Now.
func NewGymTools(data *GymDataService, now func() time.Time) *GymTools {
	if now == nil {
		now = time.Now
	}
	g := &GymTools{data: data, now: now}
	g.tools = []gymTool{
		{"pending_payments", accessStaff, []string{"pending payment", "payment approval", "approve"}, g.pendingPayments},
		{"expiring_memberships", accessStaff, []string{"expiring", "expire soon"}, g.expiringMemberships},
		{"find_member", accessStaff, []string{"find member", "look up", "lookup"}, g.findMember},
		{"revenue", accessStaff, []string{"revenue", "sales", "income"}, g.revenue},
		{"checkins_today", accessStaff, []string{"who checked in", "check-ins today", "checkins today"}, g.checkinsToday},
		{"weekly_attendance", accessStaff, []string{"attendance report", "this week", "weekly"}, g.weeklyAttendance},
		{"membership_growth", accessStaff, []string{"growth", "new members", "new memberships"}, g.membershipGrowth},
		{"gym_stats", accessStaff, []string{"statistics", "stats", "how many", "total members"}, g.gymStats},
		{"my_pin", accessMember, []string{"my pin", "kiosk pin"}, g.myPIN},
		{"my_visits", accessMember, []string{"my visits", "my attendance"}, g.myVisits},
		{"my_payments", accessMember, []string{"my payment", "payment history"}, g.myPayments},
		{"my_membership", accessMember, []string{"my membership", "membership status", "my status", "days left", "days remaining", "my account"}, g.myMembership},
	}
	return g
}

func (g *GymTools) Route(ctx context.Context, user *models.User, message string) (string, error) {
	lower := strings.ToLower(message)

	for _, tool := range g.tools {
		if !containsAnyKeyword(lower, tool.keywords...) {
			continue
		}

		switch tool.access {
		case accessStaff:
			if !user.IsStaffOrAdmin() {
				return staffOnlyReply, nil
			}
		case accessMember:
			if !user.IsAuthenticated() {
				return loginReply, nil
			}
		}

		answer, err := tool.run(ctx, user, message)
		if err != nil {
			return "", fmt.Errorf("tool %s failed: %w", tool.name, err)
		}
		return answer, nil
	}

	return "", nil
}

func (g *GymTools) pendingPayments(ctx context.Context, _ *models.User, _ string) (string, error) {
	payments, err := g.data.PendingPayments(ctx, 20)
	if err != nil {
		return "", err
	}
	if len(payments) == 0 {
		return "There are no pending payments awaiting approval.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending payments awaiting approval (%d):\n", len(payments))
	for _, p := range payments {
		fmt.Fprintf(&b, "- ₱%.2f via %s from user %s on %s", p.Amount, strings.ToUpper(p.Method), p.UserID, p.CreatedAt.Format("Jan 2, 2006"))
		if p.Reference != "" {
			fmt.Fprintf(&b, " (ref %s)", p.Reference)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

var daysPattern = regexp.MustCompile(`(\d+)\s*days?`)

func (g *GymTools) expiringMemberships(ctx context.Context, _ *models.User, message string) (string, error) {
	days := 7
	if m := daysPattern.FindStringSubmatch(strings.ToLower(message)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	members, err := g.data.ExpiringMemberships(ctx, g.now(), days)
	if err != nil {
		return "", err
	}
	if len(members) == 0 {
		return fmt.Sprintf("No memberships expire in the next %d days.", days), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Memberships expiring in the next %d days (%d):\n", days, len(members))
	for _, m := range members {
		fmt.Fprintf(&b, "- %s (%s) expires %s\n", m.FullName, m.PlanName, m.EndDate.Format("Jan 2, 2006"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

var findMemberPattern = regexp.MustCompile(`(?i)(?:find member|look ?up)\s+(?:member\s+)?(.+)`)

func (g *GymTools) findMember(ctx context.Context, _ *models.User, message string) (string, error) {
	m := findMemberPattern.FindStringSubmatch(message)
	if m == nil {
		return "", nil
	}
	term := strings.Trim(strings.TrimSpace(m[1]), "?.!\"'")
	if term == "" {
		return "", nil
	}

	users, err := g.data.FindMembers(ctx, term, 10)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return fmt.Sprintf("No members found matching \"%s\".", term), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Members matching \"%s\":\n", term)
	for _, u := range users {
		membership, err := g.data.ActiveMembership(ctx, u.ID, g.now())
		if err != nil {
			return "", err
		}
		status := "no active membership"
		if membership != nil {
			status = fmt.Sprintf("%s until %s", membership.PlanName, membership.EndDate.Format("Jan 2, 2006"))
		}
		fmt.Fprintf(&b, "- %s <%s>: %s\n", u.FullName, u.Email, status)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (g *GymTools) revenue(ctx context.Context, _ *models.User, message string) (string, error) {
	now := g.now()
	from := startOfDay(now)
	label := "today"
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "week"):
		from = from.AddDate(0, 0, -6)
		label = "the last 7 days"
	case strings.Contains(lower, "month"):
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		label = "this month"
	}

	total, count, err := g.data.RevenueBetween(ctx, from, startOfDay(now).AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Revenue for %s: ₱%.2f from %d confirmed payment(s).", label, total, count), nil
}

func (g *GymTools) checkinsToday(ctx context.Context, _ *models.User, _ string) (string, error) {
	names, err := g.data.CheckedInUsersOn(ctx, g.now())
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No one has checked in today yet.", nil
	}
	return fmt.Sprintf("%d member(s) checked in today: %s.", len(names), strings.Join(names, ", ")), nil
}

func (g *GymTools) weeklyAttendance(ctx context.Context, _ *models.User, _ string) (string, error) {
	today := startOfDay(g.now())
	var b strings.Builder
	b.WriteString("Attendance for the last 7 days:\n")
	total := 0
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		n, err := g.data.CheckinsOn(ctx, day)
		if err != nil {
			return "", err
		}
		total += n
		fmt.Fprintf(&b, "- %s: %d\n", day.Format("Mon Jan 2"), n)
	}
	fmt.Fprintf(&b, "Total check-ins: %d", total)
	return b.String(), nil
}

func (g *GymTools) membershipGrowth(ctx context.Context, _ *models.User, _ string) (string, error) {
	now := g.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	tomorrow := startOfDay(now).AddDate(0, 0, 1)

	thisMonth, err := g.data.MembershipsStartedBetween(ctx, monthStart, tomorrow)
	if err != nil {
		return "", err
	}
	lastMonth, err := g.data.MembershipsStartedBetween(ctx, monthStart.AddDate(0, -1, 0), monthStart)
	if err != nil {
		return "", err
	}

	change := "no change"
	switch {
	case lastMonth == 0 && thisMonth > 0:
		change = "up from none last month"
	case lastMonth > 0:
		pct := float64(thisMonth-lastMonth) / float64(lastMonth) * 100
		change = fmt.Sprintf("%+.0f%% vs last month", pct)
	}
	return fmt.Sprintf("New memberships this month: %d (%s; last month: %d).", thisMonth, change, lastMonth), nil
}

func (g *GymTools) gymStats(ctx context.Context, _ *models.User, _ string) (string, error) {
	now := g.now()
	total, err := g.data.TotalMembers(ctx)
	if err != nil {
		return "", err
	}
	active, err := g.data.ActiveMembershipCount(ctx, now)
	if err != nil {
		return "", err
	}
	summary := fmt.Sprintf("Gym statistics:\n- Total members: %d\n- Active memberships: %d", total, active)

	if g.stats != nil {
		if today := strings.TrimSpace(g.stats.StaffStats(ctx)); today != "" {
			return summary + "\n\n" + today, nil
		}
	}

	checkins, err := g.data.CheckinsOn(ctx, now)
	if err != nil {
		return "", err
	}
	inside, err := g.data.CurrentlyCheckedIn(ctx)
	if err != nil {
		return "", err
	}
	return summary + fmt.Sprintf("\n- Check-ins today: %d\n- Currently in gym: %d", checkins, inside), nil
}

func (g *GymTools) myMembership(ctx context.Context, user *models.User, _ string) (string, error) {
	if !user.IsMember() {
		return "", nil
	}
	now := g.now()
	membership, err := g.data.ActiveMembership(ctx, user.ID, now)
	if err != nil {
		return "", err
	}
	if membership == nil {
		return "You don't have an active membership. You can choose a plan from the Membership Plans page.", nil
	}
	return fmt.Sprintf("Your %s membership is active with %d day(s) remaining. It expires on %s.",
		membership.PlanName, membership.DaysRemaining(now), membership.EndDate.Format("January 2, 2006")), nil
}

func (g *GymTools) myPIN(_ context.Context, user *models.User, _ string) (string, error) {
	if user.KioskPIN == "" {
		return "You don't have a kiosk PIN yet. Please ask the front desk to set one up.", nil
	}
	return fmt.Sprintf("Your kiosk PIN is %s. Enter it at the kiosk to check in and out.", user.KioskPIN), nil
}

func (g *GymTools) myVisits(ctx context.Context, user *models.User, _ string) (string, error) {
	visits, err := g.data.AttendanceCount(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if visits == 0 {
		return "You haven't logged any gym visits yet.", nil
	}
	return fmt.Sprintf("You have %d gym visit(s) logged.", visits), nil
}

func (g *GymTools) myPayments(ctx context.Context, user *models.User, _ string) (string, error) {
	payments, err := g.data.PaymentsForUser(ctx, user.ID, 5)
	if err != nil {
		return "", err
	}
	if len(payments) == 0 {
		return "You don't have any recorded payments yet.", nil
	}

	var b strings.Builder
	b.WriteString("Your recent payments:\n")
	for _, p := range payments {
		fmt.Fprintf(&b, "- %s: ₱%.2f via %s (%s)\n", p.CreatedAt.Format("Jan 2, 2006"), p.Amount, strings.ToUpper(p.Method), p.Status)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
