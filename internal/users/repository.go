package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/repo"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// Repository exposes user persistence operations.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// CreateUser inserts a new user row.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.DB(ctx).Create(user).Error
}

// FindByID loads a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername loads a user by their login name.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail loads a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser persists all fields of the given user row.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.DB(ctx).Save(user).Error
}

// DeleteUser removes the user row.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Delete(&models.User{}, "id = ?", id).Error
}

// UpdateLastLogin refreshes last_login_at without touching updated_at.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// CountSalesByCashier reports how many sales reference the user as cashier.
func (r *Repository) CountSalesByCashier(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Sale{}).
		Where("cashier_id = ?", id).
		Count(&count).Error
	return count, err
}

// UsernameTaken reports whether another user already holds the username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	return r.identifierTaken(ctx, "username", username, excludeID)
}

// EmailTaken reports whether another user already holds the email.
func (r *Repository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	return r.identifierTaken(ctx, "email", email, excludeID)
}

func (r *Repository) identifierTaken(ctx context.Context, column, value string, excludeID uuid.UUID) (bool, error) {
	var count int64
	qb := r.DB(ctx).
		Model(&models.User{}).
		Where(column+" = ?", value)
	if excludeID != uuid.Nil {
		qb = qb.Where("id <> ?", excludeID)
	}
	if err := qb.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type userListQuery struct {
	Pagination pagination.Params
	Filters    ListFilters
}

// ListUsers returns one page of users ordered newest first, plus the cursor
// for the following page when more rows exist.
func (r *Repository) ListUsers(ctx context.Context, query userListQuery) ([]models.User, string, error) {
	limit := pagination.LimitWithBuffer(query.Pagination.Limit)
	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination cursor")
	}

	qb := r.DB(ctx).
		Model(&models.User{}).
		Order("created_at DESC, id DESC").
		Limit(limit)

	filter := query.Filters
	if filter.Role != nil {
		qb = qb.Where("role = ?", *filter.Role)
	}
	if filter.IsActive != nil {
		qb = qb.Where("is_active = ?", *filter.IsActive)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where(
			"(LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)",
			pattern, pattern, pattern, pattern,
		)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.User
	if err := qb.Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list users")
	}

	nextCursor := ""
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}
