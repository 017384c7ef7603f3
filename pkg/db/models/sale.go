package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is the immutable record of a completed register transaction.
// Rows are only ever inserted; there is no update path.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID string          `gorm:"column:transaction_id;type:text;not null;uniqueIndex"`
	SaleDate      time.Time       `gorm:"column:sale_date;not null"`
	CashierID     uuid.UUID       `gorm:"column:cashier_id;type:uuid;not null"`
	Cashier       *User           `gorm:"foreignKey:CashierID;constraint:OnDelete:RESTRICT"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
