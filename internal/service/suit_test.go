package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func TestCreateSuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jacket := f.item(t, "SACO", 3)
	trousers := f.item(t, "PANT", 2)

	suit, err := f.inventory.CreateSuit(ctx, domain.CreateSuitInput{
		Name:        "  Terno de gala ",
		Description: "saco y pantalon",
		ItemIDs:     []int64{jacket.ID, trousers.ID, jacket.ID},
	})
	require.NoError(t, err)
	assert.NotZero(t, suit.ID)
	assert.Equal(t, "Terno de gala", suit.Name)
	assert.Len(t, suit.Items, 2)
	assert.Equal(t, domain.SuitTotals{Total: 5, Available: 5}, suit.Totals)
	assert.Equal(t, f.now, suit.CreatedOn)

	t.Run("Name required", func(t *testing.T) {
		_, err := f.inventory.CreateSuit(ctx, domain.CreateSuitInput{Name: " ", ItemIDs: []int64{jacket.ID}})
		var valErr *domain.ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, "name", valErr.Field)
	})

	t.Run("Unknown item", func(t *testing.T) {
		_, err := f.inventory.CreateSuit(ctx, domain.CreateSuitInput{Name: "Incompleto", ItemIDs: []int64{jacket.ID, 999}})
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSuitTotalsFollowItemCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jacket := f.item(t, "SACO", 3)
	trousers := f.item(t, "PANT", 2)
	vest := f.item(t, "CHAL", 1)

	suit, err := f.inventory.CreateSuit(ctx, domain.CreateSuitInput{Name: "Terno", ItemIDs: []int64{jacket.ID, trousers.ID, vest.ID}})
	require.NoError(t, err)

	_, err = f.rentals.CreateRental(ctx, createInput(
		domain.RentalItemRequest{ItemID: jacket.ID},
		domain.RentalItemRequest{ItemID: trousers.ID},
	))
	require.NoError(t, err)
	_, err = f.inventory.ApplyMaintenance(ctx, jacket.ID, domain.MaintenanceInput{Action: "add", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, f.inventory.DeleteItem(ctx, vest.ID))

	got, err := f.inventory.GetSuit(ctx, suit.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2, "deleted items drop out of the suit")
	assert.Equal(t, domain.SuitTotals{Total: 5, Available: 2, Rented: 2, InMaintenance: 1}, got.Totals)
}

func TestListSuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 1)

	suits, err := f.inventory.ListSuits(ctx)
	require.NoError(t, err)
	assert.Empty(t, suits)

	_, err = f.inventory.CreateSuit(ctx, domain.CreateSuitInput{Name: "Marinera", ItemIDs: []int64{a.ID}})
	require.NoError(t, err)
	_, err = f.inventory.CreateSuit(ctx, domain.CreateSuitInput{Name: "Huayno"})
	require.NoError(t, err)

	suits, err = f.inventory.ListSuits(ctx)
	require.NoError(t, err)
	require.Len(t, suits, 2)
	assert.Equal(t, "Huayno", suits[0].Name)
	assert.Empty(t, suits[0].Items)
	assert.Equal(t, 1, suits[1].Totals.Available)

	_, err = f.inventory.GetSuit(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}
