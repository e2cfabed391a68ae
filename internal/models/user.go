package models

import "errors"

// ErrUserNotFound is returned when a user id has no stored record
var ErrUserNotFound = errors.New("user not found")

// Role values carried by authenticated gym users
const (
	RoleMember = "member"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"
)

// User is the requester of a chat message. A nil *User means anonymous.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	KioskPIN string `json:"-"` // only ever surfaced to its owner through the prompt
}

// IsAuthenticated reports whether u represents a signed-in user
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != ""
}

// IsStaffOrAdmin reports whether u holds an elevated role
func (u *User) IsStaffOrAdmin() bool {
	if !u.IsAuthenticated() {
		return false
	}
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

// IsMember reports whether u is an authenticated gym member
func (u *User) IsMember() bool {
	return u.IsAuthenticated() && u.Role == RoleMember
}

// DisplayName returns the full name, falling back to the email
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
