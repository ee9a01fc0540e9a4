package repository

import (
	"context"
	"time"

	"penguin-ternos-backend/internal/domain"
)

// ItemMutation changes an item while its row is locked. The returned
// movement, if any, is recorded in the same transaction.
type ItemMutation func(item *domain.Item) (*domain.StockMovement, error)

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context) ([]domain.Item, error)
	ListByCounter(ctx context.Context, kind domain.CounterKind) ([]domain.Item, error)
	// Mutate locks the item, applies fn, checks the counter invariant and persists it.
	Mutate(ctx context.Context, id int64, fn ItemMutation) (*domain.Item, error)
	Delete(ctx context.Context, id int64) error
	// DeleteExhausted removes the given items from the catalog when they
	// have no physical units left, and returns the ids it removed.
	DeleteExhausted(ctx context.Context, ids []int64) ([]int64, error)
	Summary(ctx context.Context) (*domain.InventorySummary, error)
	// ReleaseExpiredHolds returns maintenance units whose hold ended by now
	// to available stock, and returns the ids of the items it touched.
	ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]int64, error)
	ListMovements(ctx context.Context, itemID int64) ([]domain.StockMovement, error)
}

type SuitRepository interface {
	// Create inserts the suit and links its items in one transaction.
	Create(ctx context.Context, suit *domain.Suit) error
	// GetByID returns the suit with the current state of its catalog items.
	GetByID(ctx context.Context, id int64) (*domain.Suit, error)
	List(ctx context.Context) ([]domain.Suit, error)
}

type RentalRepository interface {
	// Create reserves one unit per line and inserts the rental atomically.
	// No reservation takes effect if any item lacks stock.
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int64) (*domain.Rental, error)
	List(ctx context.Context) ([]domain.Rental, error)
	ListByStatus(ctx context.Context, statuses ...domain.RentalStatus) ([]domain.Rental, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Rental, error)
	// ProcessReturn applies the return atomically and returns the updated rental.
	ProcessReturn(ctx context.Context, cmd *domain.ReturnCommand) (*domain.Rental, error)
	CountRentedLines(ctx context.Context, rentalID int64) (int, error)
	// Reopen puts a closed rental back to active and clears its return date.
	Reopen(ctx context.Context, rentalID int64) error
}

type SaleRepository interface {
	// Create sells one unit per line and inserts the sale atomically.
	Create(ctx context.Context, sale *domain.Sale) error
	GetByID(ctx context.Context, id int64) (*domain.Sale, error)
	List(ctx context.Context) ([]domain.Sale, error)
	// MarkReturned restores the sold units and marks the sale returned.
	MarkReturned(ctx context.Context, saleID int64, now time.Time) (*domain.Sale, error)
}

type SettingsRepository interface {
	// Get returns a NotFoundError when the singleton was never written.
	Get(ctx context.Context) (*domain.Settings, error)
	Upsert(ctx context.Context, settings *domain.Settings) error
}
