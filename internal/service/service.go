package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"penguin-ternos-backend/internal/domain"
)

type RentalService interface {
	CreateRental(ctx context.Context, in domain.CreateRentalInput) (*domain.Rental, error)
	ReturnRental(ctx context.Context, rentalID int64, in domain.ReturnRentalInput) (*domain.ReturnResult, error)
	GetRental(ctx context.Context, id int64) (*domain.Rental, error)
	ListRentals(ctx context.Context) ([]domain.Rental, error)
	ListActive(ctx context.Context) ([]domain.Rental, error)
	ListHistory(ctx context.Context) ([]domain.Rental, error) // returned and lost, newest first
	ListOverdue(ctx context.Context) ([]domain.Rental, error)
}

type SaleService interface {
	CreateSale(ctx context.Context, in domain.CreateSaleInput) (*domain.Sale, error)
	ReturnSale(ctx context.Context, saleID int64) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

type InventoryService interface {
	CreateItem(ctx context.Context, in domain.CreateItemInput) (*domain.Item, error)
	// UpdateItem returns a nil item when the update removed it from the catalog.
	UpdateItem(ctx context.Context, id int64, in domain.UpdateItemInput) (*domain.Item, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	CheckAvailability(ctx context.Context, id int64) (int, error)
	ApplyMaintenance(ctx context.Context, id int64, in domain.MaintenanceInput) (*domain.Item, error)
	Summary(ctx context.Context) (*domain.InventorySummary, error)
	ListByCounter(ctx context.Context, kind string) ([]domain.Item, error)
	ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]int64, error)
	ListMovements(ctx context.Context, itemID int64) ([]domain.StockMovement, error)
	SetStatus(ctx context.Context, id int64, in domain.StatusInput) (*domain.Item, error)
	CreateSuit(ctx context.Context, in domain.CreateSuitInput) (*domain.Suit, error)
	GetSuit(ctx context.Context, id int64) (*domain.Suit, error)
	ListSuits(ctx context.Context) ([]domain.Suit, error) // totals summed from item counters
}

type SettingsService interface {
	// GetSettings creates the singleton with defaults on first read.
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, update domain.SettingsUpdate) (*domain.Settings, error)
}

const tracerName = "penguin-ternos-backend/internal/service"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
