package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of account kinds the shop knows about.
type Role int

const (
	RoleBuyer Role = iota + 1
	RoleSeller
	RoleAdmin
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

// ParseRole maps the server's account type to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buyer":
		return RoleBuyer, nil
	case "seller":
		return RoleSeller, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown account type %q", s)
	}
}

// Identity is the currently authenticated actor.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        Role   `json:"-"`
	DisplayName string `json:"displayName"`
	IsAdminFlag bool   `json:"isAdmin"`
}

// IsAdmin is true only when the role and the independent admin flag agree.
func (i *Identity) IsAdmin() bool {
	if i == nil {
		return false
	}
	return i.Role == RoleAdmin && i.IsAdminFlag
}

// NameParts splits the display name into a first name and the remainder.
func (i *Identity) NameParts() (first, last string) {
	if i == nil {
		return "", ""
	}
	fields := strings.Fields(i.DisplayName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
