package services

import (
	"testing"
	"time"

	"fitbot/internal/database"
	"fitbot/internal/models"
)

// fixedNow is the clock used across service tests
var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *database.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("Exec failed: %v\n%s", err, query)
	}
}

func seedUser(t *testing.T, db *database.DB, u models.User) {
	t.Helper()
	var pin interface{}
	if u.KioskPIN != "" {
		pin = u.KioskPIN
	}
	mustExec(t, db, "INSERT INTO users (id, full_name, email, role, kiosk_pin) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.FullName, u.Email, u.Role, pin)
}

func seedPlan(t *testing.T, db *database.DB, name string, price float64, days int, description string, active bool) int64 {
	t.Helper()
	res, err := db.Exec("INSERT INTO membership_plans (name, price, duration_days, description, is_active) VALUES (?, ?, ?, ?, ?)",
		name, price, days, description, active)
	if err != nil {
		t.Fatalf("Failed to seed plan: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func seedPass(t *testing.T, db *database.DB, name string, price float64, days int, active bool) {
	t.Helper()
	mustExec(t, db, "INSERT INTO flexible_access (name, price, duration_days, is_active) VALUES (?, ?, ?, ?)",
		name, price, days, active)
}

func seedMembership(t *testing.T, db *database.DB, userID string, planID int64, status string, start, end time.Time) {
	t.Helper()
	mustExec(t, db, "INSERT INTO user_memberships (user_id, plan_id, status, start_date, end_date) VALUES (?, ?, ?, ?, ?)",
		userID, planID, status, start.UTC(), end.UTC())
}

func seedCheckin(t *testing.T, db *database.DB, userID string, at time.Time, open bool) {
	t.Helper()
	var checkOut interface{}
	if !open {
		checkOut = at.Add(time.Hour).UTC()
	}
	mustExec(t, db, "INSERT INTO attendance (user_id, check_in, check_out) VALUES (?, ?, ?)",
		userID, at.UTC(), checkOut)
}

func seedPayment(t *testing.T, db *database.DB, userID string, amount float64, status string, at time.Time) {
	t.Helper()
	mustExec(t, db, "INSERT INTO payments (user_id, amount, method, status, reference, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID, amount, "gcash", status, "REF-"+userID, at.UTC())
}

var (
	testMember = models.User{ID: "m1", FullName: "Maria Santos", Email: "maria@example.com", Role: models.RoleMember, KioskPIN: "123456"}
	testStaff  = models.User{ID: "s1", FullName: "Sam Staff", Email: "sam@example.com", Role: models.RoleStaff}
	testAdmin  = models.User{ID: "a1", FullName: "Ada Admin", Email: "ada@example.com", Role: models.RoleAdmin}
)

// seedGym loads a small catalog, one active member and today's attendance
func seedGym(t *testing.T, db *database.DB) {
	t.Helper()

	seedUser(t, db, testMember)
	seedUser(t, db, testStaff)
	seedUser(t, db, testAdmin)
	seedUser(t, db, models.User{ID: "m2", FullName: "Juan Cruz", Email: "juan@example.com", Role: models.RoleMember})

	monthly := seedPlan(t, db, "Monthly", 1500, 30, "Unlimited gym access", true)
	seedPlan(t, db, "Annual", 15000, 365, "", true)
	seedPlan(t, db, "Legacy", 999, 30, "", false)

	seedPass(t, db, "Day Pass", 150, 1, true)
	seedPass(t, db, "Old Pass", 100, 1, false)

	seedMembership(t, db, testMember.ID, monthly, models.MembershipActive,
		fixedNow.AddDate(0, 0, -20), time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	seedMembership(t, db, "m2", monthly, models.MembershipActive,
		fixedNow.AddDate(0, 0, -25), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	seedCheckin(t, db, testMember.ID, fixedNow.Add(-time.Hour), true)
	seedCheckin(t, db, "m2", fixedNow.Add(-2*time.Hour), false)
	seedCheckin(t, db, testMember.ID, fixedNow.AddDate(0, 0, -3), false)

	seedPayment(t, db, testMember.ID, 1500, models.PaymentConfirmed, fixedNow.Add(-3*time.Hour))
	seedPayment(t, db, "m2", 150, models.PaymentPending, fixedNow.Add(-time.Hour))
}
