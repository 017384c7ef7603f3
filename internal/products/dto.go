package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/pkg/db/models"
)

// ProductDTO represents the catalog payload returned to clients. Price
// marshals as a decimal string.
type ProductDTO struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	QuantityInStock   int             `json:"quantity_in_stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsLowStock        bool            `json:"is_low_stock"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:                product.ID,
		Name:              product.Name,
		SKU:               product.SKU,
		Category:          product.Category,
		Price:             product.Price,
		QuantityInStock:   product.QuantityInStock,
		LowStockThreshold: product.LowStockThreshold,
		IsLowStock:        product.QuantityInStock <= product.LowStockThreshold,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}
}

// NewProductDTOs maps persisted rows into DTOs preserving order.
func NewProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out
}
