package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable catalog item and its live stock level.
// quantity_in_stock is guarded by a CHECK constraint; it never goes negative.
type Product struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	SKU               string          `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Category          string          `gorm:"column:category;not null;default:''"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	QuantityInStock   int             `gorm:"column:quantity_in_stock;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
