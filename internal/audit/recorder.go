// Package audit appends immutable records of completed privileged actions.
// Writes are best-effort by contract: a lost audit row must never fail the
// action it describes.
package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"littlelungs.org/internal/obs"
)

// Entry is one append-only audit record.
type Entry struct {
	ID           string
	PerformedBy  string
	Action       string
	TargetUserID string
	TargetEmail  string
	Details      map[string]any
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// Store persists audit entries.
type Store interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Recorder writes audit entries and mirrors them to the structured log.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends one entry. The signature returns nothing on purpose:
// failures are logged, counted, and discarded.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	logFields := map[string]any{
		"type":         "audit",
		"action":       e.Action,
		"performed_by": e.PerformedBy,
	}
	if e.TargetUserID != "" {
		logFields["target_user_id"] = e.TargetUserID
	}
	if e.TargetEmail != "" {
		logFields["target_user_email"] = e.TargetEmail
	}
	obs.Info("audit event", logFields)

	if r.store == nil {
		return
	}
	if err := r.store.AppendAudit(ctx, e); err != nil {
		obs.CountAuditWriteFailure()
		obs.Warn("audit write discarded", map[string]any{
			"action": e.Action,
			"error":  err.Error(),
		})
	}
}

// ClientIP resolves the caller address for audit entries:
// x-forwarded-for, then x-real-ip, then "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); rip != "" {
		return rip
	}
	return "unknown"
}

// UserAgent returns the caller's user agent or "unknown".
func UserAgent(r *http.Request) string {
	if ua := strings.TrimSpace(r.Header.Get("User-Agent")); ua != "" {
		return ua
	}
	return "unknown"
}
