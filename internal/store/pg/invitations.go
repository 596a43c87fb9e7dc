package pg

import (
	"context"

	"littlelungs.org/internal/directory"
)

var _ directory.InvitationStore = (*Store)(nil)

// InsertInvitation records a pending signup invitation. The email column
// is unique; re-inviting an address with an open invitation conflicts.
func (s *Store) InsertInvitation(ctx context.Context, inv directory.Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_invitations
			(id, email, invited_by, role, department, phone, full_name, status, invited_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, inv.ID, inv.Email, inv.InvitedBy, inv.Role,
		nullable(inv.Department), nullable(inv.Phone), nullable(inv.FullName),
		inv.Status, inv.InvitedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.ErrConflict
		}
		return err
	}
	return nil
}
