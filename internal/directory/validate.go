package directory

import (
	"fmt"
	"regexp"
	"strings"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidRole reports whether role is one of the three staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleStaff:
		return true
	}
	return false
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: Email is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: Invalid email format", ErrInvalidInput)
	}
	return nil
}

func validateRole(role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: Invalid role. Must be admin, doctor, or staff", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: Password must be at least %d characters long", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

// trimmed normalizes an optional free-form field.
func trimmed(s string) string {
	return strings.TrimSpace(s)
}
