package models

import "time"

// User is an account of the development auth backend. Email is stored
// lower-cased and is unique.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
