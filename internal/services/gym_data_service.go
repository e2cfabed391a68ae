package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitbot/internal/database"
	"fitbot/internal/models"
)

// ErrUserNotFound is returned when a user id has no row
var ErrUserNotFound = models.ErrUserNotFound

// GymDataService runs the read-only gym queries the chat core needs
type GymDataService struct {
	db *database.DB
}

// NewGymDataService creates a new gym data service
func NewGymDataService(db *database.DB) *GymDataService {
	return &GymDataService{db: db}
}

// ActivePlans returns active membership plans ordered by price
func (s *GymDataService) ActivePlans(ctx context.Context) ([]models.MembershipPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, duration_days, description, is_active
		FROM membership_plans
		WHERE is_active = 1
		ORDER BY price, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.MembershipPlan
	for rows.Next() {
		var p models.MembershipPlan
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &description, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ActivePasses returns active walk-in passes ordered by price
func (s *GymDataService) ActivePasses(ctx context.Context) ([]models.FlexibleAccess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, duration_days, is_active
		FROM flexible_access
		WHERE is_active = 1
		ORDER BY price, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var passes []models.FlexibleAccess
	for rows.Next() {
		var p models.FlexibleAccess
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// GetUser loads a user by id
func (s *GymDataService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, role, kiosk_pin FROM users WHERE id = ?
	`, userID).Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &pin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if pin.Valid {
		u.KioskPIN = pin.String
	}
	return &u, nil
}

// ActiveMembership returns the user's active membership ending on or after today, or nil
func (s *GymDataService) ActiveMembership(ctx context.Context, userID string, today time.Time) (*models.UserMembership, error) {
	var m models.UserMembership
	err := s.db.QueryRowContext(ctx, `
		SELECT um.id, um.user_id, p.name, um.status, um.start_date, um.end_date
		FROM user_memberships um
		JOIN membership_plans p ON p.id = um.plan_id
		WHERE um.user_id = ? AND um.status = ? AND um.end_date >= ?
		ORDER BY um.end_date DESC
		LIMIT 1
	`, userID, models.MembershipActive, startOfDay(today)).Scan(&m.ID, &m.UserID, &m.PlanName, &m.Status, &m.StartDate, &m.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}
	return &m, nil
}

// AttendanceCount returns the number of check-ins ever logged for a user
func (s *GymDataService) AttendanceCount(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM attendance WHERE user_id = ?", userID)
}

// CheckinsOn returns the number of check-ins on the calendar day of day
func (s *GymDataService) CheckinsOn(ctx context.Context, day time.Time) (int, error) {
	start := startOfDay(day)
	return s.CheckinsBetween(ctx, start, start.AddDate(0, 0, 1))
}

// CheckinsBetween returns the number of check-ins in [from, to)
func (s *GymDataService) CheckinsBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM attendance WHERE check_in >= ? AND check_in < ?", from.UTC(), to.UTC())
}

// CurrentlyCheckedIn returns the number of open check-ins
func (s *GymDataService) CurrentlyCheckedIn(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM attendance WHERE check_out IS NULL")
}

// TotalMembers returns the number of member accounts
func (s *GymDataService) TotalMembers(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users WHERE role = ?", models.RoleMember)
}

// ActiveMembershipCount returns the number of active memberships not yet ended
func (s *GymDataService) ActiveMembershipCount(ctx context.Context, today time.Time) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM user_memberships WHERE status = ? AND end_date >= ?",
		models.MembershipActive, startOfDay(today))
}

// MembershipsStartedBetween returns memberships whose start date falls in [from, to)
func (s *GymDataService) MembershipsStartedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM user_memberships WHERE start_date >= ? AND start_date < ?",
		from.UTC(), to.UTC())
}

// RevenueBetween sums confirmed payments created in [from, to)
func (s *GymDataService) RevenueBetween(ctx context.Context, from, to time.Time) (float64, int, error) {
	var total sql.NullFloat64
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM payments
		WHERE status = ? AND created_at >= ? AND created_at < ?
	`, models.PaymentConfirmed, from.UTC(), to.UTC()).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total.Float64, count, nil
}

// PendingPayments returns payments awaiting staff confirmation, oldest first
func (s *GymDataService) PendingPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, method, status, reference, created_at
		FROM payments
		WHERE status = ?
		ORDER BY created_at
		LIMIT ?
	`, models.PaymentPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var reference sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status, &reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if reference.Valid {
			p.Reference = reference.String
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PaymentsForUser returns a user's most recent payments
func (s *GymDataService) PaymentsForUser(ctx context.Context, userID string, limit int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, method, status, reference, created_at
		FROM payments
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var reference sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status, &reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if reference.Valid {
			p.Reference = reference.String
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ExpiringMemberships returns active memberships ending within days of today
func (s *GymDataService) ExpiringMemberships(ctx context.Context, today time.Time, days int) ([]models.ExpiringMember, error) {
	start := startOfDay(today)
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.full_name, p.name, um.end_date
		FROM user_memberships um
		JOIN users u ON u.id = um.user_id
		JOIN membership_plans p ON p.id = um.plan_id
		WHERE um.status = ? AND um.end_date >= ? AND um.end_date < ?
		ORDER BY um.end_date, u.full_name
	`, models.MembershipActive, start, start.AddDate(0, 0, days+1))
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring memberships: %w", err)
	}
	defer rows.Close()

	var members []models.ExpiringMember
	for rows.Next() {
		var m models.ExpiringMember
		if err := rows.Scan(&m.FullName, &m.PlanName, &m.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan expiring member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CheckedInUsersOn returns the names of users who checked in on the calendar day of day
func (s *GymDataService) CheckedInUsersOn(ctx context.Context, day time.Time) ([]string, error) {
	start := startOfDay(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT u.full_name
		FROM attendance a
		JOIN users u ON u.id = a.user_id
		WHERE a.check_in >= ? AND a.check_in < ?
		ORDER BY u.full_name
	`, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FindMembers returns members whose name or email contains term
func (s *GymDataService) FindMembers(ctx context.Context, term string, limit int) ([]models.User, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, role
		FROM users
		WHERE role = ? AND (LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?)
		ORDER BY full_name
		LIMIT ?
	`, models.RoleMember, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// KeywordContext returns catalog and statistics data selected by keywords in query.
// Only the sections whose keywords appear are present in the result.
func (s *GymDataService) KeywordContext(ctx context.Context, query string, today time.Time) (map[string]interface{}, error) {
	lower := strings.ToLower(query)
	result := map[string]interface{}{}

	if containsAnyKeyword(lower, "membership", "plan", "price", "cost", "subscribe") {
		plans, err := s.ActivePlans(ctx)
		if err != nil {
			return nil, err
		}
		result["membership_plans"] = plans
	}

	if containsAnyKeyword(lower, "walk-in", "walk in", "day pass", "visitor", "guest") {
		passes, err := s.ActivePasses(ctx)
		if err != nil {
			return nil, err
		}
		result["walk_in_passes"] = passes
	}

	if containsAnyKeyword(lower, "stats", "statistics", "how many", "count") {
		total, err := s.TotalMembers(ctx)
		if err != nil {
			return nil, err
		}
		active, err := s.ActiveMembershipCount(ctx, today)
		if err != nil {
			return nil, err
		}
		inside, err := s.CurrentlyCheckedIn(ctx)
		if err != nil {
			return nil, err
		}
		result["stats"] = map[string]int{
			"total_members":      total,
			"active_memberships": active,
			"checked_in_now":     inside,
		}
	}

	return result, nil
}

func (s *GymDataService) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsAnyKeyword(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
