package product

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

func setupProductTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  category TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL,
  quantity_in_stock INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  created_at DATETIME,
  updated_at DATETIME
);`
	saleItems := `
CREATE TABLE IF NOT EXISTS sale_items (
  id TEXT PRIMARY KEY,
  sale_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_sale NUMERIC NOT NULL
);`

	for _, ddl := range []string{products, saleItems} {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, name, sku string, price decimal.Decimal, qty, threshold int) *models.Product {
	t.Helper()
	row := &models.Product{
		ID:                uuid.New(),
		Name:              name,
		SKU:               sku,
		Price:             price,
		QuantityInStock:   qty,
		LowStockThreshold: threshold,
	}
	require.NoError(t, conn.Create(row).Error)
	return row
}

func TestRepositoryProductCRUD(t *testing.T) {
	t.Parallel()

	conn := setupProductTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.CreateProduct(ctx, &models.Product{
		ID:                uuid.New(),
		Name:              "Espresso Beans 1kg",
		SKU:               "BEAN-001",
		Category:          "coffee",
		Price:             decimal.RequireFromString("18.50"),
		QuantityInStock:   40,
		LowStockThreshold: 5,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "BEAN-001", found.SKU)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("18.50")))

	bySKU, err := repo.FindBySKU(ctx, "BEAN-001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySKU.ID)

	found.Name = "Espresso Beans 1kg (dark roast)"
	_, err = repo.UpdateProduct(ctx, found)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Espresso Beans 1kg (dark roast)", reloaded.Name)

	require.NoError(t, repo.DeleteProduct(ctx, created.ID))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryStockAdjustments(t *testing.T) {
	t.Parallel()

	conn := setupProductTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	row := seedProduct(t, conn, "Filter Papers", "FILT-01", decimal.RequireFromString("3.20"), 10, 5)

	affected, err := repo.AddStock(ctx, row.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.RemoveStock(ctx, row.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	reloaded, err := repo.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.QuantityInStock)

	// More than remains: the conditional update must not touch the row.
	affected, err = repo.RemoveStock(ctx, row.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	reloaded, err = repo.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.QuantityInStock)

	affected, err = repo.AddStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestRepositoryCountSaleReferences(t *testing.T) {
	t.Parallel()

	conn := setupProductTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	row := seedProduct(t, conn, "Mug", "MUG-01", decimal.RequireFromString("7.00"), 3, 1)

	count, err := repo.CountSaleReferences(ctx, row.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	item := &models.SaleItem{
		ID:          uuid.New(),
		SaleID:      uuid.New(),
		ProductID:   row.ID,
		Quantity:    1,
		PriceAtSale: row.Price,
	}
	require.NoError(t, conn.Create(item).Error)

	count, err = repo.CountSaleReferences(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryListLowStock(t *testing.T) {
	t.Parallel()

	conn := setupProductTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seedProduct(t, conn, "Plenty", "PL-01", decimal.RequireFromString("5.00"), 50, 5)
	seedProduct(t, conn, "At threshold", "AT-01", decimal.RequireFromString("5.00"), 5, 5)
	seedProduct(t, conn, "Depleted", "DEP-01", decimal.RequireFromString("5.00"), 0, 5)

	rows, err := repo.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "DEP-01", rows[0].SKU)
	assert.Equal(t, "AT-01", rows[1].SKU)
}

func TestRepositoryListProductsFiltersAndCursor(t *testing.T) {
	t.Parallel()

	conn := setupProductTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		row := &models.Product{
			ID:                uuid.New(),
			Name:              []string{"Americano Cup", "Latte Cup", "Teapot", "Grinder"}[i],
			SKU:               []string{"CUP-A", "CUP-L", "TEA-1", "GRD-1"}[i],
			Category:          []string{"cups", "cups", "tea", "equipment"}[i],
			Price:             decimal.NewFromInt(int64(5 * (i + 1))),
			QuantityInStock:   10,
			LowStockThreshold: 2,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(row).Error)
	}

	category := "cups"
	rows, next, err := repo.ListProducts(ctx, productListQuery{
		Filters: ProductListFilters{Category: &category},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Empty(t, next)

	min := decimal.NewFromInt(11)
	rows, _, err = repo.ListProducts(ctx, productListQuery{
		Filters: ProductListFilters{PriceMin: &min},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, _, err = repo.ListProducts(ctx, productListQuery{
		Filters: ProductListFilters{Query: "cup"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Page through everything two at a time; newest first.
	rows, next, err = repo.ListProducts(ctx, productListQuery{
		Pagination: pagination.Params{Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotEmpty(t, next)
	assert.Equal(t, "GRD-1", rows[0].SKU)
	assert.Equal(t, "TEA-1", rows[1].SKU)

	rows, next, err = repo.ListProducts(ctx, productListQuery{
		Pagination: pagination.Params{Limit: 2, Cursor: next},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, next)
	assert.Equal(t, "CUP-L", rows[0].SKU)
	assert.Equal(t, "CUP-A", rows[1].SKU)
}
