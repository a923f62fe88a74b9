package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role tags carried on user records. Only "user" is assigned by this
// service; "admin" exists for operator tooling.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered player
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	HighScore    int64     `json:"highScore"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
