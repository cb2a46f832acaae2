package auth

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		JWTSecret:            "test-secret-key",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
		Username:             "operator",
		Password:             "Str0ng!pass",
	}, "DU1234567", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	svc := newTestService(t)

	pair, err := svc.Login(LoginRequest{Username: "operator", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("Expected non-empty token pair")
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("Expected Bearer token type, got %s", pair.TokenType)
	}

	claims, err := svc.GetJWTManager().ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("Expected username operator, got %s", claims.Username)
	}
	if claims.Account != "DU1234567" {
		t.Errorf("Expected account DU1234567, got %s", claims.Account)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Login(LoginRequest{Username: "operator", Password: "wrong"}); err != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(LoginRequest{Username: "intruder", Password: "Str0ng!pass"}); err != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService(t)

	pair, err := svc.Login(LoginRequest{Username: "operator", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := svc.Refresh(RefreshRequest{RefreshToken: pair.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("Expected refresh token to rotate")
	}

	// The old token is revoked after use.
	if _, err := svc.Refresh(RefreshRequest{RefreshToken: pair.RefreshToken}); err != ErrSessionRevoked {
		t.Errorf("Expected ErrSessionRevoked, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := newTestService(t)

	pair, err := svc.Login(LoginRequest{Username: "operator", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	svc.Logout(pair.RefreshToken)
	if _, err := svc.Refresh(RefreshRequest{RefreshToken: pair.RefreshToken}); err != ErrSessionRevoked {
		t.Errorf("Expected ErrSessionRevoked after logout, got %v", err)
	}
}

func TestServiceRequiresSecret(t *testing.T) {
	_, err := NewService(Config{Username: "operator", Password: "Str0ng!pass"}, "DU1", zerolog.Nop())
	if err == nil {
		t.Error("Expected error without JWT secret")
	}
}
