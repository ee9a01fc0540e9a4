package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalStatusActive   RentalStatus = "active"
	RentalStatusReturned RentalStatus = "returned"
	RentalStatusLost     RentalStatus = "lost"
)

// LineStatus is the state of one rented unit.
type LineStatus string

const (
	LineStatusRented   LineStatus = "rented"
	LineStatusComplete LineStatus = "complete"
	LineStatusDamaged  LineStatus = "damaged"
	LineStatusLost     LineStatus = "lost"
)

// ReturnOutcome is the condition a unit comes back in.
type ReturnOutcome string

const (
	OutcomeComplete ReturnOutcome = "complete"
	OutcomeDamaged  ReturnOutcome = "damaged"
	OutcomeLost     ReturnOutcome = "lost"
)

// ParseReturnOutcome accepts complete/damaged/lost and their Spanish forms.
func ParseReturnOutcome(s string) (ReturnOutcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete", "completo", "completed":
		return OutcomeComplete, nil
	case "damaged", "dañado", "danado":
		return OutcomeDamaged, nil
	case "lost", "perdido":
		return OutcomeLost, nil
	}
	return "", NewValidationError("outcome", "invalid return outcome %q", s)
}

// LineStatus maps an outcome to the line item status it produces.
func (o ReturnOutcome) LineStatus() LineStatus {
	switch o {
	case OutcomeComplete:
		return LineStatusComplete
	case OutcomeDamaged:
		return LineStatusDamaged
	case OutcomeLost:
		return LineStatusLost
	}
	return LineStatusRented
}

const DefaultPaymentMethod = "cash"

// Customer is the summary of the rental's customer. Customer records are
// owned by another service; only the fields shown on a rental are read.
type Customer struct {
	ID    int64  `json:"id"`
	DNI   string `json:"dni,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Rental struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	Customer        *Customer       `json:"customer,omitempty"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	RentalAmount    decimal.Decimal `json:"rental_amount"`
	Deposit         decimal.Decimal `json:"deposit"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	Status          RentalStatus    `json:"status"`
	ReturnDate      *time.Time      `json:"return_date,omitempty"`
	LateFeeCharged  decimal.Decimal `json:"late_fee_charged"`
	DepositRetained decimal.Decimal `json:"deposit_retained"`
	RetentionReason string          `json:"retention_reason,omitempty"`
	Lines           []RentalLine    `json:"lines"`
	CreatedOn       time.Time       `json:"created_on"`
	UpdatedOn       time.Time       `json:"updated_on"`
}

// RentalLine is one physical unit of a rental.
type RentalLine struct {
	ID         int64      `json:"id"`
	RentalID   int64      `json:"rental_id"`
	ItemID     int64      `json:"item_id"`
	ItemName   string     `json:"item_name,omitempty"`
	Status     LineStatus `json:"status"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
}

// IsClosed reports whether the rental reached a terminal status.
func (r *Rental) IsClosed() bool {
	return r.Status == RentalStatusReturned || r.Status == RentalStatusLost
}

// RentedLines counts units still out.
func (r *Rental) RentedLines() int {
	n := 0
	for _, l := range r.Lines {
		if l.Status == LineStatusRented {
			n++
		}
	}
	return n
}

// HasLostLines reports whether any unit was already recorded as lost.
func (r *Rental) HasLostLines() bool {
	for _, l := range r.Lines {
		if l.Status == LineStatusLost {
			return true
		}
	}
	return false
}

// UnitsPerItem counts lines per item id.
func (r *Rental) UnitsPerItem() map[int64]int {
	units := make(map[int64]int)
	for _, l := range r.Lines {
		units[l.ItemID]++
	}
	return units
}

// ClosingStatus is the terminal status for a rental whose lines are final:
// lost when every unit was lost, returned otherwise.
func ClosingStatus(lines []RentalLine) RentalStatus {
	if len(lines) == 0 {
		return RentalStatusReturned
	}
	for _, l := range lines {
		if l.Status != LineStatusLost {
			return RentalStatusReturned
		}
	}
	return RentalStatusLost
}

// RentalItemRequest asks for Quantity units of an item. A nil Quantity means one.
type RentalItemRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity *int  `json:"quantity"`
}

type CreateRentalInput struct {
	CustomerID    *int64
	Items         []RentalItemRequest
	StartDate     time.Time
	EndDate       time.Time
	RentalAmount  decimal.Decimal
	Deposit       *decimal.Decimal // nil takes the configured default
	PaymentMethod string
	Notes         string
}

// LineReturn names one returned unit, either by line id or by item id. When
// only the item is given the next unit of that item still out is used.
type LineReturn struct {
	LineID  *int64 `json:"line_id"`
	ItemID  *int64 `json:"item_id"`
	Outcome string `json:"outcome"`
}

type ReturnRentalInput struct {
	Lines           []LineReturn
	RetainDeposit   bool
	RetentionReason string
}

// LineOutcome is a resolved unit outcome.
type LineOutcome struct {
	LineID  int64         `json:"line_id"`
	ItemID  int64         `json:"item_id"`
	Outcome ReturnOutcome `json:"outcome"`
}

// ReturnCommand carries everything the atomic return needs.
type ReturnCommand struct {
	RentalID        int64
	Outcomes        []LineOutcome
	LateFee         decimal.Decimal
	DepositRetained decimal.Decimal
	RetentionReason string
	ReturnedAt      time.Time
	Hold            HoldPolicy
}

// ReturnResult is the outcome of a return. Warning is set when the rental
// had to be reopened because units were still out after it was closed.
type ReturnResult struct {
	Rental  *Rental `json:"rental"`
	Warning string  `json:"warning,omitempty"`
}
