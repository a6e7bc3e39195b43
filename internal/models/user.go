package models

import "time"

// User is an authenticated operator of the assistant, scoped to a tenant.
type User struct {
	ID           int64     `json:"id"`
	Tenant       string    `json:"tenant"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
