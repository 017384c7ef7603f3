package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/security"
)

const minPasswordLength = 8

const (
	usernameConflictMessage = "user with this username already exists"
	emailConflictMessage    = "user with this email already exists"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages staff accounts. Account creation lives in internal/auth
// next to the credential handling.
type Service interface {
	List(ctx context.Context, identity access.Identity, input ListInput) (*UserListResult, error)
	Get(ctx context.Context, identity access.Identity, id uuid.UUID) (*UserDTO, error)
	Me(ctx context.Context, identity access.Identity) (*UserDTO, error)
	Update(ctx context.Context, identity access.Identity, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	Delete(ctx context.Context, identity access.Identity, id uuid.UUID) error
}

type service struct {
	repo        *Repository
	tx          txRunner
	passwordCfg config.PasswordConfig
}

func NewService(repo *Repository, tx txRunner, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users service requires a repository")
	}
	if tx == nil {
		return nil, fmt.Errorf("users service requires a transaction runner")
	}
	return &service{repo: repo, tx: tx, passwordCfg: passwordCfg}, nil
}

func (s *service) List(ctx context.Context, identity access.Identity, input ListInput) (*UserListResult, error) {
	if err := access.Authorize(identity, access.ActionListUsers, access.Resource{}); err != nil {
		return nil, err
	}

	rows, nextCursor, err := s.repo.ListUsers(ctx, userListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list users")
	}
	return &UserListResult{
		Users:      NewUserDTOs(rows),
		NextCursor: nextCursor,
	}, nil
}

func (s *service) Get(ctx context.Context, identity access.Identity, id uuid.UUID) (*UserDTO, error) {
	if err := access.Authorize(identity, access.ActionReadUser, access.Resource{OwnerID: id}); err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewUserDTO(user), nil
}

func (s *service) Me(ctx context.Context, identity access.Identity) (*UserDTO, error) {
	return s.Get(ctx, identity, identity.ID)
}

func (s *service) Update(ctx context.Context, identity access.Identity, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	if err := access.Authorize(identity, access.ActionUpdateUser, access.Resource{OwnerID: id}); err != nil {
		return nil, err
	}
	if identity.Role != enums.RoleAdmin && (input.Role != nil || input.IsActive != nil) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may change role or active status")
	}
	if identity.Role == enums.RoleAdmin && identity.ID == id {
		if input.Role != nil && *input.Role != enums.RoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot demote own account")
		}
		if input.IsActive != nil && !*input.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot deactivate own account")
		}
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "username cannot be empty")
		}
		if username != user.Username {
			taken, err := s.repo.UsernameTaken(ctx, username, user.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check username")
			}
			if taken {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, usernameConflictMessage)
			}
		}
		user.Username = username
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be empty")
		}
		if email != user.Email {
			taken, err := s.repo.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check email")
			}
			if taken {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, emailConflictMessage)
			}
		}
		user.Email = email
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to hash password")
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_username") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, usernameConflictMessage)
		}
		if db.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, emailConflictMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update user")
	}
	return NewUserDTO(user), nil
}

func (s *service) Delete(ctx context.Context, identity access.Identity, id uuid.UUID) error {
	if err := access.Authorize(identity, access.ActionDeleteUser, access.Resource{OwnerID: id}); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load user")
		}
		count, err := repo.CountSalesByCashier(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check recorded sales")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user has recorded sales and cannot be deleted")
		}
		return repo.DeleteUser(ctx, id)
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete user")
	}
	return nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load user")
	}
	return user, nil
}
