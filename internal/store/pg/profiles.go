package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"littlelungs.org/internal/directory"
)

var _ directory.ProfileStore = (*Store)(nil)

// InsertProfile creates the profile row matching a freshly created
// account. The is_active column is omitted when the schema predates it.
func (s *Store) InsertProfile(ctx context.Context, p directory.Profile) error {
	var err error
	if s.activeFlag {
		_, err = s.db.ExecContext(ctx, `
			insert into profiles (id, email, full_name, role, department, phone, is_active)
			values ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.Email, nullable(p.FullName), p.Role, nullable(p.Department), nullable(p.Phone), p.IsActive)
	} else {
		_, err = s.db.ExecContext(ctx, `
			insert into profiles (id, email, full_name, role, department, phone)
			values ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.Email, nullable(p.FullName), p.Role, nullable(p.Department), nullable(p.Phone))
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.ErrConflict
		}
		return err
	}
	return nil
}

// GetProfile loads one profile by account id.
func (s *Store) GetProfile(ctx context.Context, id string) (directory.Profile, error) {
	return s.getProfile(ctx, "id", id)
}

// GetProfileByEmail loads one profile by its denormalized email.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (directory.Profile, error) {
	return s.getProfile(ctx, "email", email)
}

func (s *Store) getProfile(ctx context.Context, column, value string) (directory.Profile, error) {
	activeExpr := "is_active"
	if !s.activeFlag {
		activeExpr = "true as is_active"
	}
	query := fmt.Sprintf(`
		select id, email, full_name, role, department, phone, %s, created_at, updated_at
		from profiles
		where %s = $1
	`, activeExpr, column)

	var (
		p          directory.Profile
		fullName   sql.NullString
		department sql.NullString
		phone      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.Email, &fullName, &p.Role, &department, &phone,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Profile{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Profile{}, err
	}
	p.FullName = fullName.String
	p.Department = department.String
	p.Phone = phone.String
	return p, nil
}

// UpdateProfile patches only the fields present in the patch. A supplied
// empty value clears the column.
func (s *Store) UpdateProfile(ctx context.Context, id string, patch directory.ProfilePatch) error {
	if patch.IsEmpty() {
		return fmt.Errorf("%w: empty patch", directory.ErrInvalidInput)
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FullName != nil {
		add("full_name", nullable(strings.TrimSpace(*patch.FullName)))
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Department != nil {
		add("department", nullable(strings.TrimSpace(*patch.Department)))
	}
	if patch.Phone != nil {
		add("phone", nullable(strings.TrimSpace(*patch.Phone)))
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(`update profiles set %s where id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// SetProfileActive toggles the activation flag. Callers must not invoke
// this when the schema probe reported the column missing.
func (s *Store) SetProfileActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update profiles set is_active = $1, updated_at = now() where id = $2
	`, active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}
