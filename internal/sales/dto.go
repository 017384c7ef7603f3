package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// CreateInput carries the engine inputs for one sale. The cashier is always
// the authenticated identity; a caller-supplied cashier is never trusted.
type CreateInput struct {
	Lines []LineInput
}

// LineInput is one requested line: a product, a quantity, and an optional
// price override applied instead of the live catalog price.
type LineInput struct {
	ProductID     uuid.UUID
	Quantity      int
	PriceOverride *decimal.Decimal
}

// SaleItemDTO is one persisted line of a sale. Amounts marshal as decimal
// strings.
type SaleItemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"priceAtSale"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleDTO is the wire shape of a committed sale.
type SaleDTO struct {
	ID                 uuid.UUID       `json:"id"`
	TransactionID      string          `json:"transactionId"`
	SaleDate           time.Time       `json:"saleDate"`
	CashierID          uuid.UUID       `json:"cashierId"`
	CashierDisplayName string          `json:"cashierDisplayName"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Items              []SaleItemDTO   `json:"items"`
}

// NewSaleDTO maps a sale row with preloaded Cashier and Items.Product
// associations into the wire shape.
func NewSaleDTO(sale *models.Sale) *SaleDTO {
	dto := &SaleDTO{
		ID:            sale.ID,
		TransactionID: sale.TransactionID,
		SaleDate:      sale.SaleDate,
		CashierID:     sale.CashierID,
		TotalAmount:   sale.TotalAmount,
		Items:         make([]SaleItemDTO, 0, len(sale.Items)),
	}
	if sale.Cashier != nil {
		dto.CashierDisplayName = displayName(sale.Cashier)
	}
	for _, item := range sale.Items {
		line := SaleItemDTO{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtSale: item.PriceAtSale,
			Subtotal:    item.PriceAtSale.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}

// NewSaleDTOs maps sale rows preserving order.
func NewSaleDTOs(rows []models.Sale) []SaleDTO {
	out := make([]SaleDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewSaleDTO(&rows[i]))
	}
	return out
}

func displayName(user *models.User) string {
	name := user.FirstName
	if user.LastName != "" {
		if name != "" {
			name += " "
		}
		name += user.LastName
	}
	if name == "" {
		name = user.Username
	}
	return name
}

// ListFilters describe the supported sale listing filters. CashierID is
// honored for admins only; cashiers stay scoped to their own sales.
// DateFrom is inclusive, DateTo exclusive; TransactionID matches as a
// case-insensitive substring.
type ListFilters struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	Date          *time.Time
	TransactionID string
	CashierID     *uuid.UUID
	MinTotal      *decimal.Decimal
	MaxTotal      *decimal.Decimal
}

// ListInput captures pagination and filters for the sale listing.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// SaleListResult is one page of sales plus the cursor for the next one.
type SaleListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// TodayResult summarizes the requester's sales for the current day.
type TodayResult struct {
	Sales       []SaleDTO       `json:"sales"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        string          `json:"date"`
}

// CashierStats is one row of the statistics leaderboard.
type CashierStats struct {
	Username     string          `json:"username"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	TotalSales   int64           `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// StatisticsResult is the admin statistics payload for one period.
type StatisticsResult struct {
	TotalSales       int64           `json:"total_sales"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalItemsSold   int64           `json:"total_items_sold"`
	AverageSaleValue decimal.Decimal `json:"average_sale_value"`
	TopCashiers      []CashierStats  `json:"top_cashiers"`
	PeriodDays       int             `json:"period_days"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
}
