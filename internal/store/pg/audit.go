package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"littlelungs.org/internal/audit"
	"littlelungs.org/internal/ids"
)

var _ audit.Store = (*Store)(nil)

// AppendAudit inserts one append-only audit row.
func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	details := []byte("null")
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_audit_log
			(id, performed_by, action, target_user_id, target_user_email,
			 details, ip_address, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.PerformedBy, e.Action,
		nullable(e.TargetUserID), nullable(e.TargetEmail),
		details, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}
