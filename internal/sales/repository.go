package sales

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/repo"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

type saleListQuery struct {
	Pagination pagination.Params
	Filters    ListFilters
	// CashierScope, when set, restricts every row to that cashier regardless
	// of the requested filters.
	CashierScope *uuid.UUID
}

// Repository provides persistence for sales and their line items.
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

// InsertSale persists a sale together with its line items in one create.
func (r *Repository) InsertSale(ctx context.Context, sale *models.Sale) error {
	return r.DB(ctx).Create(sale).Error
}

// TransactionIDExists reports whether a sale already carries the receipt
// number.
func (r *Repository) TransactionIDExists(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Sale{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID loads one sale with its items, item products, and cashier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.DB(ctx).
		Preload("Items.Product").
		Preload("Cashier").
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListSales returns one page of sales ordered newest first, plus the cursor
// for the following page when more rows exist.
func (r *Repository) ListSales(ctx context.Context, query saleListQuery) ([]models.Sale, string, error) {
	limit := pagination.LimitWithBuffer(query.Pagination.Limit)
	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination cursor")
	}

	tx := r.DB(ctx).
		Model(&models.Sale{}).
		Preload("Items.Product").
		Preload("Cashier").
		Order("sale_date DESC, id DESC").
		Limit(limit)

	tx = applySaleFilters(tx, query.Filters)
	if query.CashierScope != nil {
		tx = tx.Where("cashier_id = ?", *query.CashierScope)
	}
	if cursor != nil {
		tx = tx.Where("(sale_date < ?) OR (sale_date = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Sale
	if err := tx.Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list sales")
	}

	nextCursor := ""
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.SaleDate, ID: last.ID})
	}
	return rows, nextCursor, nil
}

func applySaleFilters(tx *gorm.DB, filters ListFilters) *gorm.DB {
	if filters.Date != nil {
		start, end := dayBounds(*filters.Date)
		tx = tx.Where("sale_date >= ? AND sale_date < ?", start, end)
	}
	if filters.DateFrom != nil {
		tx = tx.Where("sale_date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		// Exclusive upper bound: callers pass the first instant after the
		// window, so whole-day ranges stay half-open.
		tx = tx.Where("sale_date < ?", *filters.DateTo)
	}
	if filters.TransactionID != "" {
		// Receipt lookups are substring searches: clerks usually have only
		// the tail of the id printed on the slip.
		pattern := "%" + strings.ToUpper(filters.TransactionID) + "%"
		tx = tx.Where("UPPER(transaction_id) LIKE ?", pattern)
	}
	if filters.CashierID != nil {
		tx = tx.Where("cashier_id = ?", *filters.CashierID)
	}
	if filters.MinTotal != nil {
		tx = tx.Where("total_amount >= ?", *filters.MinTotal)
	}
	if filters.MaxTotal != nil {
		tx = tx.Where("total_amount <= ?", *filters.MaxTotal)
	}
	return tx
}

// ListForDay returns every sale recorded within the day containing the given
// instant, newest first, optionally scoped to one cashier.
func (r *Repository) ListForDay(ctx context.Context, day time.Time, cashierScope *uuid.UUID) ([]models.Sale, error) {
	start, end := dayBounds(day)

	tx := r.DB(ctx).
		Model(&models.Sale{}).
		Preload("Items.Product").
		Preload("Cashier").
		Where("sale_date >= ? AND sale_date < ?", start, end).
		Order("sale_date DESC, id DESC")
	if cashierScope != nil {
		tx = tx.Where("cashier_id = ?", *cashierScope)
	}

	var rows []models.Sale
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SalesTotals aggregates the sale count and revenue over [since, until].
func (r *Repository) SalesTotals(ctx context.Context, since, until time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		TotalSales   int64
		TotalRevenue decimal.Decimal
	}
	err := r.DB(ctx).
		Model(&models.Sale{}).
		Select("COUNT(*) AS total_sales, COALESCE(SUM(total_amount), 0) AS total_revenue").
		Where("sale_date >= ? AND sale_date <= ?", since, until).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.TotalSales, row.TotalRevenue, nil
}

// ItemsSold sums line-item quantities over sales in [since, until].
func (r *Repository) ItemsSold(ctx context.Context, since, until time.Time) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.SaleItem{}).
		Select("COALESCE(SUM(sale_items.quantity), 0)").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.sale_date >= ? AND sales.sale_date <= ?", since, until).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// TopCashiers ranks cashiers by revenue over [since, until].
func (r *Repository) TopCashiers(ctx context.Context, since, until time.Time, limit int) ([]CashierStats, error) {
	var rows []CashierStats
	err := r.DB(ctx).
		Model(&models.Sale{}).
		Select("users.username AS username, users.first_name AS first_name, users.last_name AS last_name, COUNT(sales.id) AS total_sales, COALESCE(SUM(sales.total_amount), 0) AS total_revenue").
		Joins("JOIN users ON users.id = sales.cashier_id").
		Where("sales.sale_date >= ? AND sales.sale_date <= ?", since, until).
		Group("users.username, users.first_name, users.last_name").
		Order("total_revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func dayBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	return start, start.Add(24 * time.Hour)
}
