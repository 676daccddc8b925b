package auth

import "strings"

// Role distingue dueños de mascotas y veterinarios.
type Role string

const (
	RoleUser Role = "user"
	RoleVet  Role = "vet"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleVet:
		return RoleVet, true
	default:
		return "", false
	}
}

// Claims representa la información extraída del token.
// Viaja por valor en el context del request.
type Claims struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

func (c Claims) IsVet() bool { return c.Role == RoleVet }
