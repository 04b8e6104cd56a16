package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestService(t *testing.T, now func() time.Time) *Service {
	t.Helper()
	// テストではMinCostでハッシュを生成する
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	issuer := NewTokenIssuer(testSecret, 0).WithClock(now)
	return NewService(issuer, ServiceConfig{
		AdminEmail:   "admin@example.com",
		PasswordHash: hash,
	})
}

func TestLogin_ValidCredentials_ReturnsToken(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, func() time.Time { return base })

	result, err := svc.Login("admin@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected non-empty token")
	}
	if !result.ExpiresAt.Equal(base.Add(12 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", result.ExpiresAt, base.Add(12*time.Hour))
	}

	email, err := svc.Verify(result.Token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if email != "admin@example.com" {
		t.Errorf("email = %q, want %q", email, "admin@example.com")
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	svc := newTestService(t, time.Now)

	if _, err := svc.Login("Admin@Example.com", "correct-horse"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLogin_InvalidCredentials_ReturnsError(t *testing.T) {
	svc := newTestService(t, time.Now)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "admin@example.com", "wrong"},
		{"wrong email", "other@example.com", "correct-horse"},
		{"both wrong", "other@example.com", "wrong"},
		{"empty password", "admin@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Login(tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("error = %v, want ErrInvalidCredentials", err)
			}
			if result != nil {
				t.Error("expected nil result")
			}
		})
	}
}

func TestHashPassword_ProducesComparableHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte("s3cret")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
}
