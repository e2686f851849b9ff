package model

// Role distinguishes exam takers from exam owners.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is the identity record as seen by reports. Credentials never leave the
// identity service, so there is no password field here.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
