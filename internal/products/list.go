package product

import (
	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the catalog listing.
type ProductListFilters struct {
	Category *string          `json:"category,omitempty"`
	PriceMin *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax *decimal.Decimal `json:"price_max,omitempty"`
	LowStock *bool            `json:"low_stock,omitempty"`
	Query    string           `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductListResult is one catalog page plus the cursor for the next one.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// LowStockResult is the admin restock report.
type LowStockResult struct {
	Count    int          `json:"count"`
	Products []ProductDTO `json:"products"`
}
