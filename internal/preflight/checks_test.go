package preflight

import (
	"testing"

	"fitbot/internal/config"
	"fitbot/internal/database"
)

func setupPreflightTest(t *testing.T) (*database.DB, *config.Config) {
	t.Helper()

	db, err := database.New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cfg := &config.Config{
		Environment:       "production",
		JWTSecret:         "secret",
		Backend:           "huggingface",
		HFAPIKey:          "hf_test",
		Chat:              config.DefaultChatConfig(),
		CacheRolloverCron: "5 0 * * *",
	}
	return db, cfg
}

func TestRunAll_AllPass(t *testing.T) {
	db, cfg := setupPreflightTest(t)

	results := NewChecker(db, cfg).RunAll()
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for _, result := range results {
		if result.Status != "pass" {
			t.Errorf("Expected %s to pass, got %s: %s", result.Name, result.Status, result.Message)
		}
	}
	if HasFailures(results) {
		t.Error("Expected no failures")
	}
}

func TestCheckDatabaseConnection_Failure(t *testing.T) {
	db, cfg := setupPreflightTest(t)
	db.Close()

	result := NewChecker(db, cfg).checkDatabaseConnection()
	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
	if result.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestCheckDatabaseSchema_MissingTable(t *testing.T) {
	db, cfg := setupPreflightTest(t)
	if _, err := db.Exec("DROP TABLE audit_logs"); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	result := NewChecker(db, cfg).checkDatabaseSchema()
	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
	if result.Message != "Required table 'audit_logs' not found" {
		t.Errorf("Unexpected message: %s", result.Message)
	}
}

func TestCheckBackendCredentials(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		hfKey   string
		oaiKey  string
		want    string
	}{
		{"huggingface with key", "huggingface", "hf", "", "pass"},
		{"huggingface without key", "huggingface", "", "sk", "warning"},
		{"openai with key", "openai", "", "sk", "pass"},
		{"openai without key", "openai", "hf", "", "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, cfg := setupPreflightTest(t)
			cfg.Backend = tt.backend
			cfg.HFAPIKey = tt.hfKey
			cfg.OpenAIAPIKey = tt.oaiKey

			if got := NewChecker(db, cfg).checkBackendCredentials().Status; got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCheckAuthSecret(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		secret      string
		want        string
	}{
		{"production with secret", "production", "s", "pass"},
		{"production without secret", "production", "", "fail"},
		{"development without secret", "development", "", "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, cfg := setupPreflightTest(t)
			cfg.Environment = tt.environment
			cfg.JWTSecret = tt.secret

			if got := NewChecker(db, cfg).checkAuthSecret().Status; got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCheckRolloverSchedule_Invalid(t *testing.T) {
	db, cfg := setupPreflightTest(t)
	cfg.CacheRolloverCron = "every night"

	results := []CheckResult{NewChecker(db, cfg).checkRolloverSchedule()}
	if !HasFailures(results) {
		t.Error("Expected invalid cron to fail")
	}
}
