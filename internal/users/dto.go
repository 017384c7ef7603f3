package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// UserDTO is the transport shape of a staff account. The password hash never
// leaves the service layer.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        enums.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func NewUserDTO(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	return &UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func NewUserDTOs(rows []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewUserDTO(&rows[i]))
	}
	return out
}

// ListFilters narrow the user listing.
type ListFilters struct {
	Role     *enums.Role
	IsActive *bool
	Query    string
}

// ListInput captures pagination and filters for the user listing.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// UserListResult is one page of users plus the cursor for the next one.
type UserListResult struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// UpdateUserInput carries a partial update. Nil fields stay untouched.
// Role and IsActive are privileged: only admins may set them.
type UpdateUserInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Role      *enums.Role
	IsActive  *bool
	Password  *string
}
