package directory

import (
	"context"

	"littlelungs.org/internal/identity"
)

// ProfileStore persists directory profiles. SupportsActiveFlag reports the
// result of the startup schema probe: stores running against a database
// whose profiles table predates the is_active column answer false and the
// service degrades activation handling instead of failing.
type ProfileStore interface {
	InsertProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id string) (Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error
	SetProfileActive(ctx context.Context, id string, active bool) error
	SupportsActiveFlag() bool
}

// InvitationStore persists pending signup invitations.
type InvitationStore interface {
	InsertInvitation(ctx context.Context, inv Invitation) error
}

// Provider is the slice of the identity-provider admin API the directory
// consumes. The provider owns account lifecycle and credentials.
type Provider interface {
	CreateAccount(ctx context.Context, params identity.CreateAccountParams) (identity.Account, error)
	GenerateLink(ctx context.Context, params identity.LinkParams) error
	GetAccount(ctx context.Context, id string) (identity.Account, error)
	UpdatePassword(ctx context.Context, id, password string) error
	DeleteAccount(ctx context.Context, id string) error
	LookupByEmail(ctx context.Context, email string) (identity.Account, bool, error)
	VerifyPassword(ctx context.Context, email, password string) (identity.Account, error)
}
