package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform roles. They only gate the ops endpoints under /admin, never
// project data.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrInactive   = errors.New("user is inactive")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        *string   `json:"phone,omitempty"`
	JobTitle     *string   `json:"jobTitle,omitempty"`
	Specialty    *string   `json:"specialty,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile holds the optional self-described fields set at signup.
type Profile struct {
	Phone     *string
	JobTitle  *string
	Specialty *string
}

// NormalizeEmail is the stored and looked-up form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New returns an active user with a fresh id.
func New(email, passwordHash, name, role string, p Profile) User {
	now := time.Now().UTC()
	return User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Phone:        p.Phone,
		JobTitle:     p.JobTitle,
		Specialty:    p.Specialty,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
