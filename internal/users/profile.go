package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// Profile is what the API returns for a user. Credentials never leave the
// package.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       *string    `json:"phone,omitempty"`
	Role        enums.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// Account is a user about to be inserted. PasswordHash must already be
// hashed.
type Account struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         enums.Role
}

func (a Account) row() *models.User {
	role := a.Role
	if !role.IsValid() {
		role = enums.RoleOwner
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		FirstName:    strings.TrimSpace(a.FirstName),
		LastName:     strings.TrimSpace(a.LastName),
		Phone:        a.Phone,
		Role:         role,
		IsActive:     true,
	}
}

// NormalizeEmail folds an address to the form stored under the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
