package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer   abc", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestNewLocalJWTAuth(t *testing.T) {
	if _, err := NewLocalJWTAuth("", 0); err == nil {
		t.Error("Expected error for empty secret")
	}
	a, err := NewLocalJWTAuth("secret", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("Expected default expiry 15m, got %v", a.AccessTokenExpiry)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret", time.Minute)

	token, err := a.GenerateAccessToken(User{ID: "u1", Name: "Maria Santos", Email: "maria@example.com", Role: "member"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	user, err := a.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if user.ID != "u1" || user.Name != "Maria Santos" || user.Role != "member" {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret", time.Minute)
	other, _ := NewLocalJWTAuth("other-secret", time.Minute)
	expired, _ := NewLocalJWTAuth("secret", -time.Minute)

	wrongKey, _ := other.GenerateAccessToken(User{ID: "u1"})
	expiredToken, _ := expired.GenerateAccessToken(User{ID: "u1"})

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	foreignToken, _ := foreign.SignedString([]byte("secret"))

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	})
	noSubjectToken, _ := noSubject.SignedString([]byte("secret"))

	tests := map[string]string{
		"wrong key":      wrongKey,
		"expired":        expiredToken,
		"foreign issuer": foreignToken,
		"no subject":     noSubjectToken,
		"garbage":        "not-a-token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := a.VerifyAccessToken(token); err == nil {
				t.Error("Expected verification to fail")
			}
		})
	}
}
