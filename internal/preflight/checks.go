package preflight

import (
	"context"
	"fmt"
	"log"
	"time"

	"fitbot/internal/config"
	"fitbot/internal/database"
	"fitbot/internal/jobs"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	db  *database.DB
	cfg *config.Config
}

// NewChecker creates a new preflight checker
func NewChecker(db *database.DB, cfg *config.Config) *Checker {
	return &Checker{db: db, cfg: cfg}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
		c.checkDatabaseSchema(),
		c.checkBackendCredentials(),
		c.checkAuthSecret(),
		c.checkRolloverSchedule(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkDatabaseConnection() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "Database Connection",
			Status:  "fail",
			Message: "Cannot connect to database",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Database Connection",
		Status:  "pass",
		Message: fmt.Sprintf("%s database reachable", c.db.Dialect),
	}
}

// checkDatabaseSchema verifies every table the chat core touches exists
func (c *Checker) checkDatabaseSchema() CheckResult {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if c.db.Dialect == database.DialectMySQL {
		query = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	}

	required := database.Tables()
	for _, table := range required {
		var count int
		err := c.db.QueryRow(query, table).Scan(&count)
		if err != nil || count == 0 {
			return CheckResult{
				Name:    "Database Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(required)),
	}
}

// checkBackendCredentials warns when only the FAQ and tool paths can answer
func (c *Checker) checkBackendCredentials() CheckResult {
	if c.cfg.BackendAPIKey() == "" {
		return CheckResult{
			Name:    "Generative Backend",
			Status:  "warning",
			Message: fmt.Sprintf("No API key for %s backend, AI answers disabled", c.cfg.Backend),
		}
	}

	return CheckResult{
		Name:    "Generative Backend",
		Status:  "pass",
		Message: fmt.Sprintf("%s backend configured with model %s", c.cfg.Backend, c.cfg.Chat.Model),
	}
}

// checkAuthSecret fails in production without a JWT secret
func (c *Checker) checkAuthSecret() CheckResult {
	if c.cfg.JWTSecret != "" {
		return CheckResult{
			Name:    "Authentication",
			Status:  "pass",
			Message: "JWT secret configured",
		}
	}

	if c.cfg.Environment == "production" {
		return CheckResult{
			Name:    "Authentication",
			Status:  "fail",
			Message: "JWT_SECRET is required in production",
		}
	}

	return CheckResult{
		Name:    "Authentication",
		Status:  "warning",
		Message: "JWT_SECRET not set, all requests are anonymous (development user in development mode)",
	}
}

func (c *Checker) checkRolloverSchedule() CheckResult {
	if err := jobs.ValidateCron(c.cfg.CacheRolloverCron); err != nil {
		return CheckResult{
			Name:    "Cache Rollover Schedule",
			Status:  "fail",
			Message: "CACHE_ROLLOVER_CRON is not a valid cron expression",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Cache Rollover Schedule",
		Status:  "pass",
		Message: fmt.Sprintf("Nightly rollover at '%s' UTC", c.cfg.CacheRolloverCron),
	}
}
