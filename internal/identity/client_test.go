package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "service-key", WithHTTPClient(srv.Client()))
}

func TestCreateAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/users" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Fatalf("missing service key header: %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "nurse@clinic.test" {
			t.Fatalf("unexpected email: %v", body["email"])
		}
		if body["email_confirm"] != true {
			t.Fatalf("expected email_confirm true")
		}
		if body["password"] != "s3cret1" {
			t.Fatalf("password not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "acc-1",
			"email": "nurse@clinic.test",
			"email_confirmed_at": "2026-01-02T15:04:05Z"
		}`))
	})

	acc, err := c.CreateAccount(context.Background(), CreateAccountParams{
		Email:    "nurse@clinic.test",
		Password: "s3cret1",
		Confirm:  true,
		Metadata: map[string]any{"role": "staff"},
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID != "acc-1" {
		t.Fatalf("unexpected id: %s", acc.ID)
	}
	if !acc.Confirmed {
		t.Fatal("expected confirmed account")
	}
}

func TestGetAccountNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetAccount(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpstreamErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"msg": "password is too weak"}`))
	})

	err := c.UpdatePassword(context.Background(), "acc-1", "x")
	var upstream *Error
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if upstream.Status != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", upstream.Status)
	}
	if upstream.Message != "password is too weak" {
		t.Fatalf("unexpected message: %q", upstream.Message)
	}
}

func TestGenerateLinkBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/generate_link" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["type"] != "invite" {
			t.Fatalf("unexpected link type: %v", body["type"])
		}
		if body["redirect_to"] != "https://app.clinic.test/login" {
			t.Fatalf("unexpected redirect: %v", body["redirect_to"])
		}
		w.WriteHeader(http.StatusOK)
	})

	err := c.GenerateLink(context.Background(), LinkParams{
		Type:       LinkInvite,
		Email:      "new@clinic.test",
		RedirectTo: "https://app.clinic.test/login",
		Metadata:   map[string]any{"role": "doctor"},
	})
	if err != nil {
		t.Fatalf("GenerateLink: %v", err)
	}
}

func TestLookupByEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("email"); got != "dr@clinic.test" {
			t.Fatalf("unexpected email filter: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users": [{"id": "acc-2", "email": "dr@clinic.test"}]}`))
	})

	acc, exists, err := c.LookupByEmail(context.Background(), "dr@clinic.test")
	if err != nil {
		t.Fatalf("LookupByEmail: %v", err)
	}
	if !exists {
		t.Fatal("expected a hit")
	}
	if acc.ID != "acc-2" {
		t.Fatalf("unexpected id: %s", acc.ID)
	}
}

func TestLookupByEmailMiss(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users": []}`))
	})

	_, exists, err := c.LookupByEmail(context.Background(), "nobody@clinic.test")
	if err != nil {
		t.Fatalf("LookupByEmail: %v", err)
	}
	if exists {
		t.Fatal("expected a miss")
	}
}

func TestVerifyPasswordMapsRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	})

	_, err := c.VerifyPassword(context.Background(), "dr@clinic.test", "wrong")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for rejected credentials, got %v", err)
	}
}

func TestVerifyPasswordSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "x", "user": {"id": "acc-3", "email": "dr@clinic.test"}}`))
	})

	acc, err := c.VerifyPassword(context.Background(), "dr@clinic.test", "right")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if acc.ID != "acc-3" {
		t.Fatalf("unexpected id: %s", acc.ID)
	}
}
