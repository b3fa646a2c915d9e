package auth

import (
	"time"

	"github.com/angelmondragon/localbiz-backend/internal/users"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup is the registration body. AcceptTOS is only enforced for owners.
type Signup struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	AcceptTOS bool    `json:"accept_tos"`
}

// Grant is returned by every flow that opens a session. User is omitted on
// refresh.
type Grant struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         *users.Profile `json:"user,omitempty"`
}
