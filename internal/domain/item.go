package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusAvailable   ItemStatus = "available"
	ItemStatusRented      ItemStatus = "rented"
	ItemStatusMaintenance ItemStatus = "maintenance"
	ItemStatusSold        ItemStatus = "sold"
	ItemStatusLost        ItemStatus = "lost"
)

// CounterKind names one of the unit counters of an item.
type CounterKind string

const (
	CounterAvailable   CounterKind = "available"
	CounterRented      CounterKind = "rented"
	CounterMaintenance CounterKind = "in_maintenance"
	CounterSold        CounterKind = "sold"
	CounterLost        CounterKind = "lost"
)

// ParseCounterKind accepts the English names and the legacy Spanish list names.
func ParseCounterKind(s string) (CounterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "disponibles":
		return CounterAvailable, nil
	case "rented", "alquilados":
		return CounterRented, nil
	case "in_maintenance", "maintenance", "mantenimiento":
		return CounterMaintenance, nil
	case "sold", "vendidos":
		return CounterSold, nil
	case "lost", "perdidos":
		return CounterLost, nil
	}
	return "", NewValidationError("counter", "unknown counter %q", s)
}

// Counters are the per-item unit counters. They are the source of truth for stock.
type Counters struct {
	Total         int `json:"total"`
	Available     int `json:"available"`
	Rented        int `json:"rented"`
	InMaintenance int `json:"in_maintenance"`
	Sold          int `json:"sold"`
	Lost          int `json:"lost"`
}

// Validate checks that no counter is negative and that they add up to Total.
func (c Counters) Validate() error {
	if c.Total < 0 || c.Available < 0 || c.Rented < 0 || c.InMaintenance < 0 || c.Sold < 0 || c.Lost < 0 {
		return fmt.Errorf("%w: negative counter %+v", ErrCounterInvariant, c)
	}
	if c.Available+c.Rented+c.InMaintenance+c.Sold+c.Lost != c.Total {
		return fmt.Errorf("%w: %+v", ErrCounterInvariant, c)
	}
	return nil
}

// Remaining is the number of physical units still owned.
func (c Counters) Remaining() int {
	return c.Total - c.Sold - c.Lost
}

// Exhausted reports whether the item has no physical units left.
func (c Counters) Exhausted() bool {
	return c.Remaining() <= 0
}

// Get returns the value of a single counter.
func (c Counters) Get(kind CounterKind) int {
	switch kind {
	case CounterAvailable:
		return c.Available
	case CounterRented:
		return c.Rented
	case CounterMaintenance:
		return c.InMaintenance
	case CounterSold:
		return c.Sold
	case CounterLost:
		return c.Lost
	}
	return 0
}

// HoldPolicy sets how long a returned unit stays in maintenance before the
// sweep may put it back into available stock.
type HoldPolicy struct {
	Complete time.Duration
	Damaged  time.Duration
}

func DefaultHoldPolicy() HoldPolicy {
	return HoldPolicy{Complete: 24 * time.Hour, Damaged: 72 * time.Hour}
}

// For returns the hold for an outcome. Lost units have none.
func (p HoldPolicy) For(outcome ReturnOutcome) time.Duration {
	switch outcome {
	case OutcomeComplete:
		return p.Complete
	case OutcomeDamaged:
		return p.Damaged
	}
	return 0
}

type Item struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Size        string          `json:"size"`
	Color       string          `json:"color,omitempty"`
	RentalPrice decimal.Decimal `json:"rental_price"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	Counters
	Status      ItemStatus `json:"status"`
	AvailableAt *time.Time `json:"available_at,omitempty"` // end of the current maintenance hold, nil when indefinite
	CreatedOn   time.Time  `json:"created_on"`
	UpdatedOn   time.Time  `json:"updated_on"`
	DeletedOn   *time.Time `json:"deleted_on,omitempty"`
}

// DeriveStatus computes the summary status from the counters.
func (it *Item) DeriveStatus() ItemStatus {
	switch {
	case it.Available > 0:
		return ItemStatusAvailable
	case it.Rented > 0:
		return ItemStatusRented
	case it.InMaintenance > 0:
		return ItemStatusMaintenance
	case it.Sold > 0 && it.Sold >= it.Lost:
		return ItemStatusSold
	case it.Lost > 0:
		return ItemStatusLost
	}
	return ItemStatusAvailable
}

// SyncStatus refreshes Status from the counters.
func (it *Item) SyncStatus() {
	it.Status = it.DeriveStatus()
}

func (it *Item) checkQuantity(n int) error {
	if n < 1 {
		return NewValidationError("quantity", "must be at least 1, got %d", n)
	}
	return nil
}

// Reserve moves n units from available to rented.
func (it *Item) Reserve(n int) error {
	if err := it.checkQuantity(n); err != nil {
		return err
	}
	if n > it.Available {
		return &InsufficientStockError{ItemID: it.ID, ItemName: it.Name, Available: it.Available, Requested: n}
	}
	it.Available -= n
	it.Rented += n
	it.SyncStatus()
	return nil
}

// Release moves n rented units to maintenance or lost depending on the outcome.
// Complete and damaged units get a maintenance hold ending at now plus the
// policy duration; an existing later hold is kept. An indefinite hold stays
// indefinite.
func (it *Item) Release(n int, outcome ReturnOutcome, now time.Time, policy HoldPolicy) error {
	if err := it.checkQuantity(n); err != nil {
		return err
	}
	if n > it.Rented {
		return fmt.Errorf("%w: item %d has %d rented units, cannot release %d", ErrCounterInvariant, it.ID, it.Rented, n)
	}
	switch outcome {
	case OutcomeComplete, OutcomeDamaged:
		indefinite := it.InMaintenance > 0 && it.AvailableAt == nil
		it.Rented -= n
		it.InMaintenance += n
		if !indefinite {
			until := now.Add(policy.For(outcome))
			if it.AvailableAt == nil || it.AvailableAt.Before(until) {
				it.AvailableAt = &until
			}
		}
	case OutcomeLost:
		it.Rented -= n
		it.Lost += n
	default:
		return NewValidationError("outcome", "unknown return outcome %q", outcome)
	}
	it.SyncStatus()
	return nil
}

// Sell moves n units from available to sold.
func (it *Item) Sell(n int) error {
	if err := it.checkQuantity(n); err != nil {
		return err
	}
	if n > it.Available {
		return &InsufficientStockError{ItemID: it.ID, ItemName: it.Name, Available: it.Available, Requested: n}
	}
	it.Available -= n
	it.Sold += n
	it.SyncStatus()
	return nil
}

// ReturnSale moves n units from sold back to available.
func (it *Item) ReturnSale(n int) error {
	if err := it.checkQuantity(n); err != nil {
		return err
	}
	if n > it.Sold {
		return fmt.Errorf("%w: item %d has %d sold units, cannot return %d", ErrCounterInvariant, it.ID, it.Sold, n)
	}
	it.Sold -= n
	it.Available += n
	it.SyncStatus()
	return nil
}

// PutInMaintenance moves n available units into maintenance until the given
// time. A nil until makes the hold indefinite. Otherwise the hold follows the
// same rule as Release: a later existing hold is kept and an indefinite one
// stays indefinite.
func (it *Item) PutInMaintenance(n int, until *time.Time) error {
	if err := it.checkQuantity(n); err != nil {
		return err
	}
	if n > it.Available {
		return &InsufficientStockError{ItemID: it.ID, ItemName: it.Name, Available: it.Available, Requested: n}
	}
	indefinite := it.InMaintenance > 0 && it.AvailableAt == nil
	it.Available -= n
	it.InMaintenance += n
	switch {
	case until == nil:
		it.AvailableAt = nil
	case indefinite:
	case it.InMaintenance == n || it.AvailableAt == nil || it.AvailableAt.Before(*until):
		t := *until
		it.AvailableAt = &t
	}
	it.SyncStatus()
	return nil
}

// TakeOutOfMaintenance moves n units back to available; n == 0 moves all of them.
// It returns the number of units moved.
func (it *Item) TakeOutOfMaintenance(n int) (int, error) {
	if n == 0 {
		n = it.InMaintenance
	}
	if n < 0 {
		return 0, NewValidationError("quantity", "must not be negative, got %d", n)
	}
	if n > it.InMaintenance {
		return 0, NewValidationError("quantity", "item %d has only %d units in maintenance", it.ID, it.InMaintenance)
	}
	it.InMaintenance -= n
	it.Available += n
	if it.InMaintenance == 0 {
		it.AvailableAt = nil
	}
	it.SyncStatus()
	return n, nil
}

// SetHold replaces the end of the maintenance hold of the units already in
// maintenance. A nil until makes it indefinite. Counters do not change.
func (it *Item) SetHold(until *time.Time) error {
	if it.InMaintenance == 0 {
		return NewValidationError("status", "item %d has no units in maintenance", it.ID)
	}
	if until == nil {
		it.AvailableAt = nil
		return nil
	}
	t := *until
	it.AvailableAt = &t
	return nil
}

// HoldExpired reports whether the maintenance hold has ended at now.
func (it *Item) HoldExpired(now time.Time) bool {
	return it.InMaintenance > 0 && it.AvailableAt != nil && !now.Before(*it.AvailableAt)
}

// Resize sets a new total. Growth goes to available; shrinking takes units
// from available only.
func (it *Item) Resize(total int) error {
	if total < 1 {
		return NewValidationError("quantity", "must be at least 1, got %d", total)
	}
	delta := total - it.Total
	if delta < 0 && -delta > it.Available {
		return NewValidationError("quantity", "cannot remove %d units, only %d are available", -delta, it.Available)
	}
	it.Total = total
	it.Available += delta
	it.SyncStatus()
	return nil
}

// InventorySummary counts items that hold at least one unit in each counter.
type InventorySummary struct {
	Available     int `json:"available"`
	Rented        int `json:"rented"`
	InMaintenance int `json:"in_maintenance"`
	Sold          int `json:"sold"`
	Lost          int `json:"lost"`
	Total         int `json:"total"`
}

// Add accounts for one item.
func (s *InventorySummary) Add(c Counters) {
	s.Total++
	if c.Available > 0 {
		s.Available++
	}
	if c.Rented > 0 {
		s.Rented++
	}
	if c.InMaintenance > 0 {
		s.InMaintenance++
	}
	if c.Sold > 0 {
		s.Sold++
	}
	if c.Lost > 0 {
		s.Lost++
	}
}

type CreateItemInput struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	RentalPrice decimal.Decimal `json:"rental_price"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	Quantity    *int            `json:"quantity"`
}

// UpdateItemInput only changes the fields that are set. A Quantity of zero
// or less deletes the item.
type UpdateItemInput struct {
	Name        *string          `json:"name"`
	Type        *string          `json:"type"`
	Size        *string          `json:"size"`
	Color       *string          `json:"color"`
	RentalPrice *decimal.Decimal `json:"rental_price"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	Quantity    *int             `json:"quantity"`
}

type MaintenanceAction string

const (
	MaintenanceAdd    MaintenanceAction = "add"
	MaintenanceRemove MaintenanceAction = "remove"
)

// ParseMaintenanceAction accepts add/remove and the legacy agregar/quitar.
func ParseMaintenanceAction(s string) (MaintenanceAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "agregar":
		return MaintenanceAdd, nil
	case "remove", "quitar":
		return MaintenanceRemove, nil
	}
	return "", NewValidationError("action", "unknown maintenance action %q", s)
}

type MaintenanceInput struct {
	Action     string `json:"action"`
	Quantity   int    `json:"quantity"`
	Hours      *int   `json:"hours"`
	Indefinite bool   `json:"indefinite"`
}

// StatusInput sets an item's status the way the front desk does: maintenance
// reschedules the hold of the units already in maintenance and available
// releases all of them. Other statuses follow from the counters and cannot be set.
type StatusInput struct {
	Status      string
	AvailableAt *time.Time // nil keeps the hold indefinite
}

// ParseSettableStatus accepts the statuses StatusInput can set, with Spanish aliases.
func ParseSettableStatus(s string) (ItemStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maintenance", "mantenimiento":
		return ItemStatusMaintenance, nil
	case "available", "disponible":
		return ItemStatusAvailable, nil
	}
	return "", NewValidationError("status", "status %q cannot be set directly, only maintenance or available", s)
}
