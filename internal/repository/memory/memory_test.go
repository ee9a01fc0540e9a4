package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func seedItem(t *testing.T, s *Store, code string, qty int) *domain.Item {
	t.Helper()
	it := &domain.Item{Code: code, Name: "Terno " + code, SalePrice: decimal.NewFromInt(400),
		Counters: domain.Counters{Total: qty, Available: qty}}
	require.NoError(t, s.ItemRepository.Create(context.Background(), it))
	return it
}

func rentalFor(customer int64, itemIDs ...int64) *domain.Rental {
	rt := &domain.Rental{CustomerID: customer, StartDate: time.Now(), EndDate: time.Now().Add(48 * time.Hour)}
	for _, id := range itemIDs {
		rt.Lines = append(rt.Lines, domain.RentalLine{ItemID: id})
	}
	return rt
}

func TestItemRepository_CreateRejectsDuplicateCode(t *testing.T) {
	s := NewStore()
	seedItem(t, s, "A", 1)

	err := s.ItemRepository.Create(context.Background(), &domain.Item{Code: "A", Name: "x", Counters: domain.Counters{Total: 1, Available: 1}})
	var valErr *domain.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestRentalRepository_CreateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedItem(t, s, "A", 2)
	b := seedItem(t, s, "B", 1)

	err := s.RentalRepository.Create(ctx, rentalFor(1, a.ID, b.ID, b.ID))
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ItemID)

	got, err := s.ItemRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Available)
	assert.Equal(t, 0, got.Rented)

	rentals, err := s.RentalRepository.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rentals)
}

func TestRentalRepository_ReturnFlow(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutCustomer(domain.Customer{ID: 1, Name: "Ana"})
	a := seedItem(t, s, "A", 3)

	rt := rentalFor(1, a.ID, a.ID)
	require.NoError(t, s.RentalRepository.Create(ctx, rt))
	require.Len(t, rt.Lines, 2)
	assert.NotEqual(t, rt.Lines[0].ID, rt.Lines[1].ID)

	item, _ := s.ItemRepository.GetByID(ctx, a.ID)
	assert.Equal(t, 1, item.Available)
	assert.Equal(t, 2, item.Rented)

	now := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	cmd := &domain.ReturnCommand{
		RentalID: rt.ID,
		Outcomes: []domain.LineOutcome{
			{LineID: rt.Lines[0].ID, ItemID: a.ID, Outcome: domain.OutcomeDamaged},
			{LineID: rt.Lines[1].ID, ItemID: a.ID, Outcome: domain.OutcomeLost},
		},
		LateFee:         decimal.NewFromInt(30),
		DepositRetained: decimal.NewFromInt(50),
		ReturnedAt:      now,
		Hold:            domain.DefaultHoldPolicy(),
	}
	closed, err := s.RentalRepository.ProcessReturn(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusReturned, closed.Status)
	require.NotNil(t, closed.Customer)
	assert.Equal(t, "Ana", closed.Customer.Name)
	assert.True(t, decimal.NewFromInt(30).Equal(closed.LateFeeCharged))

	item, _ = s.ItemRepository.GetByID(ctx, a.ID)
	assert.Equal(t, domain.Counters{Total: 3, Available: 1, InMaintenance: 1, Lost: 1}, item.Counters)
	require.NotNil(t, item.AvailableAt)
	assert.Equal(t, now.Add(72*time.Hour), *item.AvailableAt)

	_, err = s.RentalRepository.ProcessReturn(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrRentalClosed)

	movements, err := s.ItemRepository.ListMovements(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, domain.MovementReleaseLost, movements[0].Kind)
	assert.Equal(t, domain.MovementReserve, movements[2].Kind)

	released, err := s.ItemRepository.ReleaseExpiredHolds(ctx, now.Add(73*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, released)
	item, _ = s.ItemRepository.GetByID(ctx, a.ID)
	assert.Equal(t, 2, item.Available)
	assert.Nil(t, item.AvailableAt)
}

func TestRentalRepository_ReopenAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedItem(t, s, "A", 2)
	rt := rentalFor(1, a.ID, a.ID)
	require.NoError(t, s.RentalRepository.Create(ctx, rt))

	_, err := s.RentalRepository.ProcessReturn(ctx, &domain.ReturnCommand{
		RentalID:   rt.ID,
		Outcomes:   []domain.LineOutcome{{LineID: rt.Lines[0].ID, ItemID: a.ID, Outcome: domain.OutcomeComplete}},
		ReturnedAt: time.Now().UTC(),
		Hold:       domain.DefaultHoldPolicy(),
	})
	require.NoError(t, err)

	n, err := s.RentalRepository.CountRentedLines(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.RentalRepository.Reopen(ctx, rt.ID))
	got, err := s.RentalRepository.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusActive, got.Status)
	assert.Nil(t, got.ReturnDate)

	active, err := s.RentalRepository.ListByStatus(ctx, domain.RentalStatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.True(t, domain.IsNotFound(s.RentalRepository.Reopen(ctx, 999)))
}

func TestSaleRepository_SellAndReturn(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedItem(t, s, "A", 1)

	sale := &domain.Sale{Total: decimal.NewFromInt(400), Lines: []domain.SaleLine{{ItemID: a.ID, Price: decimal.NewFromInt(400)}}}
	require.NoError(t, s.SaleRepository.Create(ctx, sale))

	deleted, err := s.ItemRepository.DeleteExhausted(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, deleted)
	_, err = s.ItemRepository.GetByID(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))

	returned, err := s.SaleRepository.MarkReturned(ctx, sale.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusReturned, returned.Status)

	item, err := s.ItemRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Available)
	assert.Equal(t, 0, item.Sold)

	_, err = s.SaleRepository.MarkReturned(ctx, sale.ID, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrSaleReturned)
}

func TestItemRepository_DeleteBlockedWhileRented(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedItem(t, s, "A", 1)
	require.NoError(t, s.RentalRepository.Create(ctx, rentalFor(1, a.ID)))

	err := s.ItemRepository.Delete(ctx, a.ID)
	var valErr *domain.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.SettingsRepository.Get(ctx)
	assert.True(t, domain.IsNotFound(err))

	require.NoError(t, s.SettingsRepository.Upsert(ctx, domain.DefaultSettings()))
	got, err := s.SettingsRepository.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got.MaxLateFeeDays)
	assert.False(t, got.UpdatedOn.IsZero())
}
