// Package directory implements the practice's staff directory: the user
// lifecycle operations an administrator performs on accounts and the
// profile records mirroring them.
package directory

import "time"

// Staff roles. Every profile carries exactly one.
const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
	RoleStaff  = "staff"
)

// Invitation lifecycle states. Only "pending" is written by this service;
// the signup completion flow owns the rest.
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)

// Profile mirrors an identity-provider account inside the directory.
// Profile.ID always equals the provider's account id.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	Role       string    `json:"role"`
	Department string    `json:"department,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Invitation tracks an email-based signup request before an account exists.
type Invitation struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	InvitedBy  string     `json:"invited_by"`
	Role       string     `json:"role"`
	Department string     `json:"department,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	FullName   string     `json:"full_name,omitempty"`
	Status     string     `json:"status"`
	InvitedAt  time.Time  `json:"invited_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched;
// a present-but-empty field clears the stored value.
type ProfilePatch struct {
	FullName   *string
	Role       *string
	Department *string
	Phone      *string
}

// IsEmpty reports whether the patch would touch nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.FullName == nil && p.Role == nil && p.Department == nil && p.Phone == nil
}
