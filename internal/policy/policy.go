// Package policy is the pure authorization guard: it maps a caller
// identity, an operation, and the target's ownership fields to an
// allow/deny decision. It performs no I/O.
package policy

import "github.com/changedesk/changedesk/internal/models"

// Identity is the resolved session caller. A nil *Identity means the
// request carried no valid session token.
type Identity struct {
	UserID   uint
	Username string
	Role     models.Role
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// CanAdministerUsers gates user creation and role changes.
func CanAdministerUsers(caller *Identity) bool {
	return caller.IsAdmin()
}

// CanUpdateChangeRequest allows admins and the current assignee. The
// creator deliberately holds no update rights once the request exists:
// the requester must not be able to self-approve.
func CanUpdateChangeRequest(caller *Identity, cr *models.ChangeRequest) bool {
	if caller == nil {
		return false
	}
	if caller.Role == models.RoleAdmin {
		return true
	}
	return caller.UserID == cr.AssigneeID
}

// CanAccessChangeRequests gates create, list, get, search and stats.
// Any authenticated identity qualifies; there is no ownership check on
// reads.
func CanAccessChangeRequests(caller *Identity) bool {
	return caller != nil
}
