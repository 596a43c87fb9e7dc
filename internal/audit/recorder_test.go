package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

type captureStore struct {
	entries []Entry
	err     error
}

func (s *captureStore) AppendAudit(_ context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestRecordStampsCreatedAt(t *testing.T) {
	store := &captureStore{}
	rec := NewRecorder(store)
	rec.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	rec.Record(context.Background(), Entry{
		PerformedBy: "admin-1",
		Action:      "user_invited",
		TargetEmail: "new@clinic.test",
	})

	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
	if got.Action != "user_invited" {
		t.Fatalf("unexpected action: %s", got.Action)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(&captureStore{err: errors.New("db down")})

	// Must not panic or propagate anything.
	rec.Record(context.Background(), Entry{PerformedBy: "admin-1", Action: "user_deleted"})
}

func TestRecordWithoutStore(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Record(context.Background(), Entry{PerformedBy: "admin-1", Action: "user_deleted"})
}

func TestClientIPPrecedence(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.Header.Set("X-Real-Ip", "198.51.100.2")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}

	r = httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Real-Ip", "198.51.100.2")
	if got := ClientIP(r); got != "198.51.100.2" {
		t.Fatalf("expected real-ip fallback, got %q", got)
	}

	r = httptest.NewRequest("POST", "/", nil)
	if got := ClientIP(r); got != "unknown" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestUserAgentFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	if got := UserAgent(r); got != "unknown" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
	r.Header.Set("User-Agent", "clinic-admin/1.2")
	if got := UserAgent(r); got != "clinic-admin/1.2" {
		t.Fatalf("unexpected user agent: %q", got)
	}
}
