package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"littlelungs.org/internal/audit"
	"littlelungs.org/internal/auth"
	"littlelungs.org/internal/directory"
)

// manageUserRequest is the single envelope for every lifecycle action.
// Pointer fields distinguish "absent" from "present but empty" so that
// update_user can clear a stored value.
type manageUserRequest struct {
	Action     string  `json:"action"`
	UserID     string  `json:"userId"`
	Email      string  `json:"email"`
	FullName   *string `json:"full_name"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Password   string  `json:"password"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	caller, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	var req manageUserRequest
	if err := decodeJSON(r, w, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Action == "" {
		writeError(w, r, http.StatusBadRequest, "Action is required")
		return
	}

	if msg, blocked := selfTargetRefusal(caller, req); blocked {
		writeError(w, r, http.StatusForbidden, msg)
		return
	}

	switch req.Action {
	case "invite_user":
		a.inviteUser(w, r, caller, req)
	case "update_user":
		a.updateUser(w, r, caller, req)
	case "set_password":
		a.setPassword(w, r, caller, req)
	case "reset_password":
		a.resetPassword(w, r, caller, req)
	case "deactivate_user":
		a.setUserActive(w, r, caller, req, false)
	case "activate_user":
		a.setUserActive(w, r, caller, req, true)
	case "delete_user":
		a.deleteUser(w, r, caller, req)
	default:
		writeError(w, r, http.StatusBadRequest, "Invalid action")
	}
}

// requireAdmin resolves the authenticated caller's profile and enforces
// the admin-only guard. Failures are written to the response directly.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (directory.Profile, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return directory.Profile{}, false
	}
	profile, err := a.users.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusForbidden, "Admin access required")
			return directory.Profile{}, false
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to verify permissions")
		return directory.Profile{}, false
	}
	if profile.Role != directory.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "Admin access required")
		return directory.Profile{}, false
	}
	return profile, true
}

// selfTargetRefusal blocks an admin from running destructive or
// credential-changing actions against their own account.
func selfTargetRefusal(caller directory.Profile, req manageUserRequest) (string, bool) {
	switch req.Action {
	case "deactivate_user":
		if req.UserID == caller.ID {
			return "Cannot deactivate your own account", true
		}
	case "delete_user":
		if req.UserID == caller.ID {
			return "Cannot delete your own account", true
		}
	case "update_user", "set_password", "activate_user":
		if req.UserID == caller.ID {
			return "Cannot perform this action on your own account", true
		}
	case "reset_password":
		if req.Email != "" && strings.EqualFold(strings.TrimSpace(req.Email), caller.Email) {
			return "Cannot perform this action on your own account", true
		}
	}
	return "", false
}

func (a *API) inviteUser(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest) {
	in := directory.InviteInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   deref(req.FullName),
		Role:       deref(req.Role),
		Department: deref(req.Department),
		Phone:      deref(req.Phone),
	}
	res, err := a.users.Invite(r.Context(), caller.ID, in)
	if err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}

	details := map[string]any{
		"role":       in.Role,
		"department": in.Department,
		"phone":      in.Phone,
		"full_name":  in.FullName,
	}

	if res.Created {
		a.audit(r, caller.ID, "invite_user", res.Account.ID, res.Account.Email, details)
		payload := map[string]any{
			"success": true,
			"message": "User created successfully with the provided password. They can now log in immediately.",
			"user": map[string]any{
				"id":         res.Account.ID,
				"email":      res.Account.Email,
				"role":       in.Role,
				"created_at": res.Account.CreatedAt.UTC().Format(time.RFC3339),
			},
		}
		if res.Degraded {
			payload["degraded"] = true
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	a.audit(r, caller.ID, "invite_user", "", strings.TrimSpace(req.Email), details)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Invitation sent successfully. The user will receive an email with instructions to set up their account.",
		"user": map[string]any{
			"email":      strings.TrimSpace(req.Email),
			"role":       in.Role,
			"invited_at": res.InvitedAt.Format(time.RFC3339),
		},
	})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest) {
	in := directory.UpdateInput{
		FullName:   req.FullName,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
	}
	if err := a.users.Update(r.Context(), req.UserID, in); err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}

	details := map[string]any{}
	if req.FullName != nil {
		details["full_name"] = *req.FullName
	}
	if req.Role != nil {
		details["role"] = *req.Role
	}
	if req.Department != nil {
		details["department"] = *req.Department
	}
	if req.Phone != nil {
		details["phone"] = *req.Phone
	}
	a.audit(r, caller.ID, "update_user", req.UserID, "", details)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User updated successfully",
	})
}

func (a *API) setPassword(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest) {
	if err := a.users.SetPassword(r.Context(), req.UserID, req.Password); err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}
	a.audit(r, caller.ID, "set_password", req.UserID, "", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated successfully",
	})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest) {
	if err := a.users.ResetPassword(r.Context(), req.Email); err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}
	a.audit(r, caller.ID, "reset_password", "", strings.TrimSpace(req.Email), nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password reset email sent successfully",
	})
}

func (a *API) setUserActive(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest, active bool) {
	res, err := a.users.SetActive(r.Context(), req.UserID, active)
	if err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}

	action, message := "deactivate_user", "User deactivated successfully"
	if active {
		action, message = "activate_user", "User activated successfully"
	}
	a.audit(r, caller.ID, action, req.UserID, "", nil)

	payload := map[string]any{"success": true, "message": message}
	if res.Degraded {
		payload["degraded"] = true
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, caller directory.Profile, req manageUserRequest) {
	if err := a.users.Delete(r.Context(), req.UserID); err != nil {
		a.handleDirectoryError(w, r, err)
		return
	}
	a.audit(r, caller.ID, "delete_user", req.UserID, "", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted successfully",
	})
}

// audit records a completed action. Recording is fire-and-forget; the
// response is already decided by the time this runs.
func (a *API) audit(r *http.Request, performedBy, action, targetID, targetEmail string, details map[string]any) {
	a.recorder.Record(r.Context(), audit.Entry{
		PerformedBy:  performedBy,
		Action:       action,
		TargetUserID: targetID,
		TargetEmail:  targetEmail,
		Details:      details,
		IPAddress:    audit.ClientIP(r),
		UserAgent:    audit.UserAgent(r),
	})
}

// handleDirectoryError maps service errors onto HTTP statuses. Provider
// failures keep their upstream message so the operator can see what the
// identity API reported.
func (a *API) handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, trimSentinel(err, directory.ErrInvalidInput))
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, trimSentinel(err, directory.ErrConflict))
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, trimSentinel(err, directory.ErrNotFound))
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

// trimSentinel strips the wrapping sentinel prefix ("directory: ...: ")
// so clients see the human message, not the internal error chain.
func trimSentinel(err error, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return msg[len(prefix):]
	}
	if msg == sentinel.Error() {
		switch {
		case errors.Is(sentinel, directory.ErrNotFound):
			return "User not found"
		case errors.Is(sentinel, directory.ErrConflict):
			return "Conflict"
		default:
			return "Invalid request"
		}
	}
	return msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
