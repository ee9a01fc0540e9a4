package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func TestCreateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	it, err := f.inventory.CreateItem(ctx, domain.CreateItemInput{Name: "  Terno negro  ", Size: "M"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(it.Code, "AUTO-"), "got %s", it.Code)
	assert.Equal(t, "Terno negro", it.Name)
	assert.Equal(t, domain.Counters{Total: 1, Available: 1}, it.Counters)
	assert.Equal(t, domain.ItemStatusAvailable, it.Status)

	_, err = f.inventory.CreateItem(ctx, domain.CreateItemInput{Name: " "})
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "name", valErr.Field)

	_, err = f.inventory.CreateItem(ctx, domain.CreateItemInput{Name: "Terno", Quantity: intPtr(0)})
	assert.True(t, errors.As(err, &valErr))
}

func TestUpdateItem_Resize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 3)
	_, err := f.rentals.CreateRental(ctx, createInput(domain.RentalItemRequest{ItemID: a.ID, Quantity: intPtr(2)}))
	require.NoError(t, err)

	name := "Terno azul"
	it, err := f.inventory.UpdateItem(ctx, a.ID, domain.UpdateItemInput{Name: &name, Quantity: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, name, it.Name)
	assert.Equal(t, domain.Counters{Total: 5, Available: 3, Rented: 2}, it.Counters)

	_, err = f.inventory.UpdateItem(ctx, a.ID, domain.UpdateItemInput{Quantity: intPtr(1)})
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr), "rented units cannot be removed")
	assert.Equal(t, domain.Counters{Total: 5, Available: 3, Rented: 2}, f.counters(t, a.ID))

	movements, err := f.inventory.ListMovements(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, domain.MovementAdjust, movements[0].Kind)
	assert.Equal(t, 2, movements[0].Quantity)
	assert.Equal(t, domain.MovementReserve, movements[1].Kind)
}

func TestUpdateItem_ZeroQuantityDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 2)

	it, err := f.inventory.UpdateItem(ctx, a.ID, domain.UpdateItemInput{Quantity: intPtr(0)})
	require.NoError(t, err)
	assert.Nil(t, it)

	_, err = f.inventory.GetItem(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))

	items, err := f.inventory.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteItem_BlockedWhileRented(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 1)
	_, err := f.rentals.CreateRental(ctx, createInput(domain.RentalItemRequest{ItemID: a.ID}))
	require.NoError(t, err)

	err = f.inventory.DeleteItem(ctx, a.ID)
	var valErr *domain.ValidationError
	assert.True(t, errors.As(err, &valErr))

	avail, err := f.inventory.CheckAvailability(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}

func TestApplyMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 4)

	it, err := f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "agregar", Quantity: 2, Hours: intPtr(48)})
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Total: 4, Available: 2, InMaintenance: 2}, it.Counters)
	require.NotNil(t, it.AvailableAt)
	assert.Equal(t, f.now.Add(48*time.Hour), *it.AvailableAt)

	it, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "remove", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Total: 4, Available: 3, InMaintenance: 1}, it.Counters)

	it, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "quitar"})
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Total: 4, Available: 4}, it.Counters)
	assert.Nil(t, it.AvailableAt)

	_, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "add", Quantity: 5})
	var stockErr *domain.InsufficientStockError
	assert.True(t, errors.As(err, &stockErr))

	_, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "repair"})
	var valErr *domain.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "add", Hours: intPtr(-1)})
	assert.True(t, errors.As(err, &valErr))
}

func TestMaintenanceHolds_Release(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	timed := f.item(t, "A", 1)
	indefinite := f.item(t, "B", 1)

	it, err := f.inventory.ApplyMaintenance(ctx, timed.ID, domain.MaintenanceInput{Action: "add"})
	require.NoError(t, err)
	require.NotNil(t, it.AvailableAt)
	assert.Equal(t, f.now.Add(24*time.Hour), *it.AvailableAt)

	it, err = f.inventory.ApplyMaintenance(ctx, indefinite.ID, domain.MaintenanceInput{Action: "add", Indefinite: true})
	require.NoError(t, err)
	assert.Nil(t, it.AvailableAt)

	released, err := f.inventory.ReleaseExpiredHolds(ctx, f.now.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = f.inventory.ReleaseExpiredHolds(ctx, f.now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{timed.ID}, released)
	assert.Equal(t, domain.Counters{Total: 1, Available: 1}, f.counters(t, timed.ID))
	assert.Equal(t, domain.Counters{Total: 1, InMaintenance: 1}, f.counters(t, indefinite.ID))
}

func TestMaintenanceHolds_ManualAddKeepsDamagedHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 3)

	rt, err := f.rentals.CreateRental(ctx, createInput(domain.RentalItemRequest{ItemID: a.ID}))
	require.NoError(t, err)
	_, err = f.rentals.ReturnRental(ctx, rt.ID, returnAll(rt, "damaged"))
	require.NoError(t, err)

	it, err := f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "add", Quantity: 1, Hours: intPtr(1)})
	require.NoError(t, err)
	require.NotNil(t, it.AvailableAt)
	assert.Equal(t, f.now.Add(72*time.Hour), *it.AvailableAt)

	released, err := f.inventory.ReleaseExpiredHolds(ctx, f.now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, domain.Counters{Total: 3, Available: 1, InMaintenance: 2}, f.counters(t, a.ID))

	released, err = f.inventory.ReleaseExpiredHolds(ctx, f.now.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, released)
	assert.Equal(t, domain.Counters{Total: 3, Available: 3}, f.counters(t, a.ID))
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 3)

	_, err := f.inventory.SetStatus(ctx, a.ID, domain.StatusInput{Status: "mantenimiento"})
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr), "nothing in maintenance to reschedule")

	_, err = f.inventory.ApplyMaintenance(ctx, a.ID, domain.MaintenanceInput{Action: "add", Quantity: 2})
	require.NoError(t, err)

	until := f.now.Add(5 * 24 * time.Hour)
	it, err := f.inventory.SetStatus(ctx, a.ID, domain.StatusInput{Status: "maintenance", AvailableAt: &until})
	require.NoError(t, err)
	require.NotNil(t, it.AvailableAt)
	assert.Equal(t, until, *it.AvailableAt)
	assert.Equal(t, domain.Counters{Total: 3, Available: 1, InMaintenance: 2}, it.Counters)

	released, err := f.inventory.ReleaseExpiredHolds(ctx, f.now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, released)

	past := f.now.Add(-time.Hour)
	_, err = f.inventory.SetStatus(ctx, a.ID, domain.StatusInput{Status: "maintenance", AvailableAt: &past})
	assert.True(t, errors.As(err, &valErr))

	_, err = f.inventory.SetStatus(ctx, a.ID, domain.StatusInput{Status: "vendido"})
	assert.True(t, errors.As(err, &valErr))

	it, err = f.inventory.SetStatus(ctx, a.ID, domain.StatusInput{Status: "disponible"})
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Total: 3, Available: 3}, it.Counters)
	assert.Nil(t, it.AvailableAt)
}

func TestListByCounterAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "A", 2)
	b := f.item(t, "B", 1)
	_, err := f.rentals.CreateRental(ctx, createInput(domain.RentalItemRequest{ItemID: a.ID}))
	require.NoError(t, err)

	tests := []struct {
		kind string
		want []int64
	}{
		{"disponibles", []int64{a.ID, b.ID}},
		{"alquilados", []int64{a.ID}},
		{"rented", []int64{a.ID}},
		{"mantenimiento", nil},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			items, err := f.inventory.ListByCounter(ctx, tt.kind)
			require.NoError(t, err)
			var ids []int64
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err = f.inventory.ListByCounter(ctx, "borrowed")
	var valErr *domain.ValidationError
	assert.True(t, errors.As(err, &valErr))

	summary, err := f.inventory.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.InventorySummary{Available: 2, Rented: 1, Total: 2}, *summary)
}

func TestListMovements_UnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.inventory.ListMovements(context.Background(), 42)
	assert.True(t, domain.IsNotFound(err))
}
