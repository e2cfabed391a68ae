package models

import (
	"math"
	"time"
)

// MembershipPlan is a purchasable long-term membership in the catalog
type MembershipPlan struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	Description  string  `json:"description,omitempty"`
	IsActive     bool    `json:"is_active"`
}

// FlexibleAccess is a walk-in or day pass in the catalog
type FlexibleAccess struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	IsActive     bool    `json:"is_active"`
}

// Membership status values
const (
	MembershipActive    = "active"
	MembershipExpired   = "expired"
	MembershipCancelled = "cancelled"
	MembershipPending   = "pending"
)

// UserMembership is a member's subscription to a plan
type UserMembership struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PlanName  string    `json:"plan_name"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// DaysRemaining returns whole calendar days from today until the end date, never negative
func (m *UserMembership) DaysRemaining(today time.Time) int {
	end := truncateDay(m.EndDate)
	start := truncateDay(today)
	days := int(math.Round(end.Sub(start).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// Attendance is a single kiosk check-in, with CheckOut unset while the member is inside
type Attendance struct {
	ID       int64      `json:"id"`
	UserID   string     `json:"user_id"`
	CheckIn  time.Time  `json:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty"`
}

// Payment status values
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
)

// Payment is a recorded membership or pass payment
type Payment struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"` // "cash" or "gcash"
	Status    string    `json:"status"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiringMember is a row of the expiring-memberships report
type ExpiringMember struct {
	FullName string    `json:"full_name"`
	PlanName string    `json:"plan_name"`
	EndDate  time.Time `json:"end_date"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
