package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func TestItemRepository_Create(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	t.Run("Success", func(t *testing.T) {
		it := &domain.Item{Code: "TRN-1", Name: "Terno azul", RentalPrice: decimal.NewFromInt(120),
			Counters: domain.Counters{Total: 3, Available: 3}, CreatedOn: fixedTime, UpdatedOn: fixedTime}
		mock.ExpectQuery("INSERT INTO items").
			WithArgs("TRN-1", "Terno azul", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg(),
				3, 3, 0, 0, 0, 0, "available", nil, fixedTime, fixedTime).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		err := repo.Create(context.Background(), it)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), it.ID)
		assert.Equal(t, domain.ItemStatusAvailable, it.Status)
	})

	t.Run("Duplicate code", func(t *testing.T) {
		it := &domain.Item{Code: "TRN-1", Name: "Terno", Counters: domain.Counters{Total: 1, Available: 1}}
		mock.ExpectQuery("INSERT INTO items").WillReturnError(&pq.Error{Code: codeUniqueViolation})

		err := repo.Create(context.Background(), it)
		var valErr *domain.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})

	t.Run("Inconsistent counters are rejected", func(t *testing.T) {
		it := &domain.Item{Code: "X", Name: "X", Counters: domain.Counters{Total: 2, Available: 1}}
		err := repo.Create(context.Background(), it)
		assert.ErrorIs(t, err, domain.ErrCounterInvariant)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_GetByID(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("FROM items WHERE id = \\$1 AND deleted_on IS NULL").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{4, 1, 2, 1, 0, 0}))

		it, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Terno azul", it.Name)
		assert.Equal(t, 2, it.Rented)
		assert.True(t, decimal.NewFromInt(120).Equal(it.RentalPrice))
		assert.Equal(t, domain.ItemStatusAvailable, it.Status)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("FROM items WHERE id = \\$1").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(itemColList))

		_, err := repo.GetByID(context.Background(), 9)
		assert.True(t, domain.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_ListByCounter(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	mock.ExpectQuery("WHERE deleted_on IS NULL AND in_maintenance > 0").
		WillReturnRows(itemRows(1, [6]int{2, 0, 0, 2, 0, 0}))

	items, err := repo.ListByCounter(context.Background(), domain.CounterMaintenance)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemStatusMaintenance, items[0].Status)

	_, err = repo.ListByCounter(context.Background(), domain.CounterKind("broken"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_Mutate(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	t.Run("Success records movement", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM items WHERE id = \\$1 AND deleted_on IS NULL FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{3, 3, 0, 0, 0, 0}))
		mock.ExpectExec("UPDATE items SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO stock_movements").
			WithArgs(int64(1), "maintenance_in", 2, nil, nil, "", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		it, err := repo.Mutate(context.Background(), 1, func(it *domain.Item) (*domain.StockMovement, error) {
			if err := it.PutInMaintenance(2, nil); err != nil {
				return nil, err
			}
			return &domain.StockMovement{Kind: domain.MovementMaintenanceIn, Quantity: 2}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, it.Available)
		assert.Equal(t, 2, it.InMaintenance)
	})

	t.Run("Mutation error rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{3, 1, 2, 0, 0, 0}))
		mock.ExpectRollback()

		_, err := repo.Mutate(context.Background(), 1, func(it *domain.Item) (*domain.StockMovement, error) {
			return nil, it.Sell(2)
		})
		var stockErr *domain.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 1, stockErr.Available)
	})

	t.Run("Retries serialization failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnError(&pq.Error{Code: codeSerializationFailure})
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{3, 3, 0, 0, 0, 0}))
		mock.ExpectExec("UPDATE items SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		it, err := repo.Mutate(context.Background(), 1, func(it *domain.Item) (*domain.StockMovement, error) {
			it.Name = "Terno azul marino"
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Terno azul marino", it.Name)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_Delete(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	t.Run("Rented item cannot be deleted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{2, 1, 1, 0, 0, 0}))
		mock.ExpectRollback()

		err := repo.Delete(context.Background(), 1)
		var valErr *domain.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(itemRows(1, [6]int{2, 2, 0, 0, 0, 0}))
		mock.ExpectExec("UPDATE items SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Delete(context.Background(), 1))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_DeleteExhausted(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	mock.ExpectQuery("UPDATE items SET deleted_on = \\$1").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	deleted, err := repo.DeleteExhausted(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, deleted)

	deleted, err = repo.DeleteExhausted(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_Summary(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)

	mock.ExpectQuery("COUNT\\(\\*\\) FILTER").
		WillReturnRows(sqlmock.NewRows([]string{"a", "r", "m", "s", "l", "t"}).AddRow(5, 2, 1, 1, 0, 6))

	s, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.InventorySummary{Available: 5, Rented: 2, InMaintenance: 1, Sold: 1, Lost: 0, Total: 6}, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_ReleaseExpiredHolds(t *testing.T) {
	db, mock, tx := newMock(t)
	repo := NewItemRepository(db, tx)
	now := fixedTime.Add(48 * time.Hour)

	hold := fixedTime.Add(24 * time.Hour)
	rows := sqlmock.NewRows(itemColList).AddRow(int64(4), "TRN-4", "Frac", "frac", "L", "", "80.00", "300.00",
		3, 1, 0, 2, 0, 0, hold, fixedTime, fixedTime, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("available_at <= \\$1 ORDER BY id FOR UPDATE SKIP LOCKED").
		WithArgs(now).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE items SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO stock_movements").
		WithArgs(int64(4), "maintenance_out", 2, nil, nil, "maintenance hold expired", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	ids, err := repo.ReleaseExpiredHolds(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
