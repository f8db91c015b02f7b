package models

import "time"

// User is an account holder. PasswordHash is a bcrypt hash and never leaves
// the server.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	IsVerified   bool
	LastLogin    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
