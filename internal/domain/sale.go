package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusReturned  SaleStatus = "returned"
)

// SaleReturnWindowDays is how many started days after a sale it can still be returned.
const SaleReturnWindowDays = 3

type Sale struct {
	ID            int64           `json:"id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	Status        SaleStatus      `json:"status"`
	ReturnDate    *time.Time      `json:"return_date,omitempty"`
	Lines         []SaleLine      `json:"lines"`
	CreatedOn     time.Time       `json:"created_on"`
	UpdatedOn     time.Time       `json:"updated_on"`
}

// SaleLine is one sold unit with its price at the time of sale.
type SaleLine struct {
	ID     int64           `json:"id"`
	SaleID int64           `json:"sale_id"`
	ItemID int64           `json:"item_id"`
	Price  decimal.Decimal `json:"price"`
}

// UnitsPerItem counts sold units per item id.
func (s *Sale) UnitsPerItem() map[int64]int {
	units := make(map[int64]int)
	for _, l := range s.Lines {
		units[l.ItemID]++
	}
	return units
}

type SaleItemRequest struct {
	ItemID   int64            `json:"item_id"`
	Quantity *int             `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

type CreateSaleInput struct {
	CustomerID    *int64            `json:"customer_id"`
	Items         []SaleItemRequest `json:"items"`
	Total         *decimal.Decimal  `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
}
