package auth

import "github.com/taskflow/apiserver/types"

// Client messages for authorization failures.
const (
	MsgAdminRequired = "Access denied. Admin privileges required."
	MsgNotOwner      = "Access denied. Not authorized to access this resource."
)

// IsAdmin reports whether user holds the admin role. Status and token version
// are not considered; the gate has already checked them.
func IsAdmin(user types.User) bool {
	switch user.Role {
	case types.RoleAdmin:
		return true
	case types.RoleUser:
		return false
	default:
		return false
	}
}

// IsOwnerOrAdmin reports whether user is an admin or the owner identified by ownerID.
func IsOwnerOrAdmin(user types.User, ownerID string) bool {
	if IsAdmin(user) {
		return true
	}
	return user.ID != "" && user.ID == ownerID
}
