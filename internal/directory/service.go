package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"littlelungs.org/internal/identity"
	"littlelungs.org/internal/ids"
	"littlelungs.org/internal/obs"
)

// Service composes the identity provider and the directory stores into the
// privileged user-lifecycle operations. Requests are handled statelessly;
// concurrent operations on the same user are not coordinated and resolve
// last-writer-wins at the backing stores.
type Service struct {
	idp         Provider
	profiles    ProfileStore
	invitations InvitationStore
	siteURL     string
	now         func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle service. siteURL is the redirect base
// embedded in invite and recovery links.
func NewService(idp Provider, profiles ProfileStore, invitations InvitationStore, siteURL string, opts ...Option) *Service {
	s := &Service{
		idp:         idp,
		profiles:    profiles,
		invitations: invitations,
		siteURL:     siteURL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Degraded reports whether the profile store is running without the
// is_active column, which downgrades activation handling service-wide.
func (s *Service) Degraded() bool {
	return !s.profiles.SupportsActiveFlag()
}

// Profile returns the directory profile for an account id.
func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	return s.profiles.GetProfile(ctx, id)
}

// InviteInput carries the fields of an invite_user request. A non-empty
// Password switches from the email-invitation flow to direct creation.
type InviteInput struct {
	Email      string
	Role       string
	Password   string
	FullName   string
	Department string
	Phone      string
}

// InviteResult reports which flow ran and what it produced.
type InviteResult struct {
	Created   bool
	Account   identity.Account
	InvitedAt time.Time
	Degraded  bool
}

// Invite creates an account directly (password supplied) or generates an
// email invitation (no password). Validation happens before any provider
// call; the provider account is the fatal step, while the profile or
// invitation row and the duplicate check are best-effort.
func (s *Service) Invite(ctx context.Context, invitedBy string, in InviteInput) (InviteResult, error) {
	email := trimmed(in.Email)
	if email == "" || in.Role == "" {
		return InviteResult{}, fmt.Errorf("%w: Email and role are required for invitations", ErrInvalidInput)
	}
	if err := validateEmail(email); err != nil {
		return InviteResult{}, err
	}
	if err := validateRole(in.Role); err != nil {
		return InviteResult{}, err
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return InviteResult{}, err
		}
	}

	metadata := map[string]any{
		"full_name":  trimmed(in.FullName),
		"role":       in.Role,
		"department": trimmed(in.Department),
		"phone":      trimmed(in.Phone),
	}

	if in.Password == "" {
		return s.inviteByEmail(ctx, invitedBy, email, in, metadata)
	}
	return s.createWithPassword(ctx, email, in, metadata)
}

func (s *Service) inviteByEmail(ctx context.Context, invitedBy, email string, in InviteInput, metadata map[string]any) (InviteResult, error) {
	// Duplicate check is an optimization: a lookup failure is logged and
	// the invitation proceeds, a hit is a hard conflict.
	if _, exists, err := s.idp.LookupByEmail(ctx, email); err != nil {
		obs.Warn("pre-invite account lookup failed, proceeding", map[string]any{
			"email": email,
			"error": err.Error(),
		})
	} else if exists {
		return InviteResult{}, fmt.Errorf("%w: User with this email already exists", ErrConflict)
	}

	if err := s.idp.GenerateLink(ctx, identity.LinkParams{
		Type:       identity.LinkInvite,
		Email:      email,
		RedirectTo: s.siteURL + "/login",
		Metadata:   metadata,
	}); err != nil {
		return InviteResult{}, fmt.Errorf("Failed to send invitation: %w", err)
	}

	invitedAt := s.now().UTC()
	inv := Invitation{
		ID:         ids.New(),
		Email:      email,
		InvitedBy:  invitedBy,
		Role:       in.Role,
		Department: trimmed(in.Department),
		Phone:      trimmed(in.Phone),
		FullName:   trimmed(in.FullName),
		Status:     InvitationPending,
		InvitedAt:  invitedAt,
	}
	if err := s.invitations.InsertInvitation(ctx, inv); err != nil {
		obs.Warn("failed to record invitation, continuing", map[string]any{
			"email": email,
			"error": err.Error(),
		})
	}

	return InviteResult{InvitedAt: invitedAt}, nil
}

func (s *Service) createWithPassword(ctx context.Context, email string, in InviteInput, metadata map[string]any) (InviteResult, error) {
	acc, err := s.idp.CreateAccount(ctx, identity.CreateAccountParams{
		Email:    email,
		Password: in.Password,
		Confirm:  true,
		Metadata: metadata,
	})
	if err != nil {
		return InviteResult{}, fmt.Errorf("Failed to create user: %w", err)
	}

	degraded := s.Degraded()
	profile := Profile{
		ID:         acc.ID,
		Email:      email,
		FullName:   trimmed(in.FullName),
		Role:       in.Role,
		Department: trimmed(in.Department),
		Phone:      trimmed(in.Phone),
		IsActive:   true,
	}
	if err := s.profiles.InsertProfile(ctx, profile); err != nil {
		// Account creation stands; the profile can be backfilled later.
		obs.Warn("failed to create profile record, continuing", map[string]any{
			"user_id": acc.ID,
			"error":   err.Error(),
		})
	}

	return InviteResult{Created: true, Account: acc, Degraded: degraded}, nil
}

// UpdateInput carries the optional fields of an update_user request.
type UpdateInput struct {
	FullName   *string
	Role       *string
	Department *string
	Phone      *string
}

// Update patches profile fields. Only supplied fields are touched.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	patch := ProfilePatch{
		FullName:   in.FullName,
		Role:       in.Role,
		Department: in.Department,
		Phone:      in.Phone,
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: At least one field must be provided for update", ErrInvalidInput)
	}
	if patch.Role != nil {
		if err := validateRole(*patch.Role); err != nil {
			return err
		}
	}
	if err := s.profiles.UpdateProfile(ctx, userID, patch); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("Failed to update user: %w", err)
	}
	return nil
}

// SetPassword overwrites an account's credential. The account is fetched
// first so an unknown id fails with not-found before any mutation.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if _, err := s.idp.GetAccount(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("%w: User not found in authentication system", ErrNotFound)
		}
		return fmt.Errorf("Failed to verify user exists: %w", err)
	}
	if err := s.idp.UpdatePassword(ctx, userID, password); err != nil {
		return fmt.Errorf("Failed to update password: %w", err)
	}
	return nil
}

// ResetPassword asks the provider to email a recovery link.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = trimmed(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.idp.GenerateLink(ctx, identity.LinkParams{
		Type:       identity.LinkRecovery,
		Email:      email,
		RedirectTo: s.siteURL,
	}); err != nil {
		return fmt.Errorf("Failed to send password reset: %w", err)
	}
	return nil
}

// ActionResult reports whether a completed action ran in degraded mode.
type ActionResult struct {
	Degraded bool
}

// SetActive toggles the profile's is_active flag. When the store predates
// the column the toggle is skipped, the condition is logged, and the
// action still reports success with Degraded set so the caller can see
// the misconfiguration.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) (ActionResult, error) {
	if userID == "" {
		return ActionResult{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if s.Degraded() {
		obs.Warn("is_active column unsupported, activation toggle skipped", map[string]any{
			"user_id": userID,
			"active":  active,
		})
		return ActionResult{Degraded: true}, nil
	}
	if err := s.profiles.SetProfileActive(ctx, userID, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ActionResult{}, err
		}
		verb := "deactivate"
		if active {
			verb = "activate"
		}
		return ActionResult{}, fmt.Errorf("Failed to %s user: %w", verb, err)
	}
	return ActionResult{}, nil
}

// Delete removes the account permanently. The profile is soft-deactivated
// first as a courtesy; that step never blocks the deletion. Failure of the
// provider delete is fatal and may leave a deactivated-but-present profile,
// which is an accepted terminal state.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	if s.Degraded() {
		obs.Warn("is_active column unsupported, skipping pre-delete deactivation", map[string]any{
			"user_id": userID,
		})
	} else if err := s.profiles.SetProfileActive(ctx, userID, false); err != nil {
		obs.Warn("pre-delete deactivation failed, continuing", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	if err := s.idp.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// The provider is the fatal step here; an unknown id is an
			// upstream failure of the deletion, not a directory 404.
			err = &identity.Error{Status: http.StatusNotFound, Message: "account not found"}
		}
		return fmt.Errorf("Failed to delete user: %w", err)
	}
	return nil
}

// Login verifies credentials against the provider and resolves the
// caller's directory profile. Deactivated profiles are refused.
func (s *Service) Login(ctx context.Context, email, password string) (Profile, error) {
	email = trimmed(email)
	if err := validateEmail(email); err != nil {
		return Profile{}, err
	}
	if password == "" {
		return Profile{}, fmt.Errorf("%w: Password is required", ErrInvalidInput)
	}
	acc, err := s.idp.VerifyPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("Failed to verify credentials: %w", err)
	}
	profile, err := s.profiles.GetProfile(ctx, acc.ID)
	if err != nil {
		return Profile{}, err
	}
	if !profile.IsActive {
		return Profile{}, ErrInactive
	}
	return profile, nil
}
