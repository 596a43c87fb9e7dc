package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"littlelungs.org/internal/auth"
	"littlelungs.org/internal/directory"
)

func (e *testEnv) login(body map[string]any) *http.Response {
	e.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		e.t.Fatalf("marshal body: %v", err)
	}
	resp, err := e.client.Post(e.baseURL+"/v1/auth/token", "application/json", bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("post: %v", err)
	}
	return resp
}

func TestLoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.rows["acc-login"] = directory.Profile{
		ID: "acc-login", Email: "dr@clinic.test", Role: directory.RoleDoctor, IsActive: true,
	}

	resp := env.login(map[string]any{"email": "dr@clinic.test", "password": "correct-horse"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeBody[tokenResponse](t, resp)
	if payload.Token == "" {
		t.Fatal("empty token issued")
	}
	if payload.User.Role != directory.RoleDoctor {
		t.Fatalf("unexpected role: %s", payload.User.Role)
	}

	claims, err := auth.ParseAndValidate(payload.Token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.Subject != "acc-login" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.login(map[string]any{"email": "dr@clinic.test", "password": "wrong"})
	body := decodeBody[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body["error"] != "Invalid email or password" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.rows["acc-login"] = directory.Profile{
		ID: "acc-login", Email: "dr@clinic.test", Role: directory.RoleDoctor, IsActive: false,
	}

	resp := env.login(map[string]any{"email": "dr@clinic.test", "password": "correct-horse"})
	body := decodeBody[map[string]any](t, resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if body["error"] != "Account is deactivated" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestLoginValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	resp := env.login(map[string]any{"email": "not-an-email", "password": "x"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLoginRequiresBody(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Post(env.baseURL+"/v1/auth/token", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body := decodeBody[map[string]any](t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "request body is required" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}
