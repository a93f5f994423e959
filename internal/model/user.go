package model

import "strings"

// Role identifies which part of the LMS a user may access.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Valid reports whether r is one of the known LMS roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// User is the profile object returned by the auth and profile endpoints.
type User struct {
	// ID is the backend's document identifier.
	ID string `json:"_id"`

	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`

	// Role decides which views the user may open.
	Role Role `json:"role"`
}

// DisplayName returns the name shown in headers, falling back to the
// email address and then the ID when no name is set.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
