package model

import (
	"errors"
	"strings"
	"time"
)

var ErrUnknownRole = errors.New("unknown_role")

// Role is the closed set of access levels a user can hold.
type Role string

const (
	RoleReader Role = "Reader"
	RoleEditor Role = "Editor"
	RoleAdmin  Role = "Admin"
)

// ParseRole accepts the canonical role names case-insensitively, or their
// ordinals 0 to 2 as sent by older clients, and rejects anything else.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "reader", "0":
		return RoleReader, nil
	case "editor", "1":
		return RoleEditor, nil
	case "admin", "2":
		return RoleAdmin, nil
	default:
		return "", ErrUnknownRole
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type Note struct {
	ID        string
	Title     string
	Content   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
