package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the shared foundation embedded by the user, product, and sale
// repositories: it holds the GORM handle and binds request contexts.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
