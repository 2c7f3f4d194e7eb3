package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleGatherer  Role = "gatherer"
	RoleProcessor Role = "processor"
	RoleCreator   Role = "creator"
	RoleExplainer Role = "explainer"
	RoleStudent   Role = "student"
)

// ValidRole reports whether r is a known platform role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleGatherer, RoleProcessor, RoleCreator, RoleExplainer, RoleStudent:
		return true
	}
	return false
}

// Actor identifies who performs a workflow operation. Passed explicitly
// into every engine call; never read from ambient session state.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// User represents a platform user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
