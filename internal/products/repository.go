package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/repo"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// Repository wires together the catalog persistence helpers.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// FindByID loads a product row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySKU loads a product row by its normalized SKU.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.DB(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.DB(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product by ID.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// CountSaleReferences reports how many recorded sale lines reference the
// product. Deletion is blocked while the count is non-zero.
func (r *Repository) CountSaleReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.SaleItem{}).
		Where("product_id = ?", productID).
		Count(&count).
		Error
	return count, err
}

// AddStock increments quantity_in_stock and reports how many rows changed.
func (r *Repository) AddStock(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("quantity_in_stock", gorm.Expr("quantity_in_stock + ?", qty))
	return res.RowsAffected, res.Error
}

// RemoveStock decrements quantity_in_stock only when enough stock remains.
// A zero row count means the product is missing or the decrement would go
// negative; callers disambiguate with a follow-up read.
func (r *Repository) RemoveStock(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity_in_stock >= ?", id, qty).
		Update("quantity_in_stock", gorm.Expr("quantity_in_stock - ?", qty))
	return res.RowsAffected, res.Error
}

// ListLowStock returns products at or under their restock threshold, the
// most depleted first.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Where("quantity_in_stock <= low_stock_threshold").
		Order("quantity_in_stock ASC").
		Order("name ASC").
		Find(&rows).
		Error
	return rows, err
}

type productListQuery struct {
	Pagination pagination.Params
	Filters    ProductListFilters
}

// ListProducts returns one page of the catalog plus the cursor for the next.
func (r *Repository) ListProducts(ctx context.Context, query productListQuery) ([]models.Product, string, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(query.Pagination.Limit)
	if limitWithBuffer <= pageSize {
		limitWithBuffer = pageSize + 1
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.DB(ctx).Model(&models.Product{})

	filter := query.Filters
	if filter.Category != nil {
		qb = qb.Where("category = ?", *filter.Category)
	}
	if filter.PriceMin != nil {
		qb = qb.Where("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		qb = qb.Where("price <= ?", *filter.PriceMax)
	}
	if filter.LowStock != nil {
		if *filter.LowStock {
			qb = qb.Where("quantity_in_stock <= low_stock_threshold")
		} else {
			qb = qb.Where("quantity_in_stock > low_stock_threshold")
		}
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)", pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer)

	var rows []models.Product
	if err := qb.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return rows, nextCursor, nil
}
