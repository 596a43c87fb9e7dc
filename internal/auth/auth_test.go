package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
}

func TestGenerateAndValidate(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-42", "Admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Fatalf("role was not normalized: %s", claims.Role)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestGenerateTokenRequiresUser(t *testing.T) {
	setSecret(t)

	if _, err := GenerateToken("  ", "admin", time.Hour); err == nil {
		t.Fatal("expected error for blank user id")
	}
	if _, err := GenerateToken("user-1", "admin", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-42", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := ParseAndValidate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-42", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Setenv(secretEnvVariable, "different-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setSecret(t)

	for _, token := range []string{"", "   ", "not.a.jwt", strings.Repeat("a", 64)} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
