package core

import (
	"context"
	"time"
)

// User represents an authenticated account. CustomerID is set for
// customer-role accounts linked to a customer profile.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CustomerID   *int
	CreatedAt    time.Time
}

// Identity builds the explicit caller context for role-scoped reads.
func (u *User) Identity() (Identity, error) {
	role, err := RoleFromString(u.Role, u.CustomerID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: u.ID, Role: role}, nil
}

// UserService provides user lookup and credential checks.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// Authenticate returns the active user whose bcrypt hash matches password.
	// Unknown users and wrong passwords are indistinguishable to the caller.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// CreateUser hashes password and stores a new account.
	CreateUser(ctx context.Context, username, email, password, role string) (*User, error)
}
