package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/internal/users"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterService creates staff accounts. Only admins may register users.
type RegisterService interface {
	Register(ctx context.Context, identity access.Identity, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TxRunner       txRunner
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &registerService{
		tx:          params.TxRunner,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, identity access.Identity, req RegisterRequest) (*users.UserDTO, error) {
	if err := access.Authorize(identity, access.ActionRegisterUser, access.Resource{}); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if req.Password != req.PasswordConfirm {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password confirmation does not match")
	}
	role := req.Role
	if role == "" {
		role = enums.RoleCashier
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		IsActive:     true,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)

		taken, err := repo.UsernameTaken(ctx, username, uuid.Nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check username")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "user with this username already exists")
		}
		taken, err = repo.EmailTaken(ctx, email, uuid.Nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "user with this email already exists")
		}

		if err := repo.CreateUser(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "idx_users_username") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user with this username already exists")
			}
			if db.IsUniqueViolation(err, "idx_users_email") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user with this email already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create user")
		}
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "registration failed")
	}

	return users.NewUserDTO(user), nil
}
