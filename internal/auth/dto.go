package auth

import (
	"github.com/willy-peters/SmartPOS/internal/users"
	"github.com/willy-peters/SmartPOS/pkg/enums"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token pair and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest is the payload for creating a staff account.
type RegisterRequest struct {
	Username        string     `json:"username" validate:"required,min=3,max=64"`
	Email           string     `json:"email" validate:"required,email"`
	Password        string     `json:"password" validate:"required,min=8"`
	PasswordConfirm string     `json:"password_confirm" validate:"required"`
	Role            enums.Role `json:"role,omitempty"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
}
