package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func TestSettingsRepository(t *testing.T) {
	db, mock, _ := newMock(t)
	repo := NewSettingsRepository(db)

	t.Run("Missing row", func(t *testing.T) {
		mock.ExpectQuery("FROM settings WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"employee_name", "dark_theme", "default_deposit", "daily_late_fee", "max_late_fee_days", "updated_on"}))

		_, err := repo.Get(context.Background())
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Get", func(t *testing.T) {
		mock.ExpectQuery("FROM settings WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"employee_name", "dark_theme", "default_deposit", "daily_late_fee", "max_late_fee_days", "updated_on"}).
				AddRow("Rosa", true, "80.00", "15.00", 5, fixedTime))

		s, err := repo.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Rosa", s.EmployeeName)
		assert.True(t, s.DarkTheme)
		assert.True(t, decimal.NewFromInt(15).Equal(s.DailyLateFee))
		assert.Equal(t, 5, s.MaxLateFeeDays)
	})

	t.Run("Upsert", func(t *testing.T) {
		s := domain.DefaultSettings()
		mock.ExpectExec("INSERT INTO settings .* ON CONFLICT \\(id\\) DO UPDATE").
			WithArgs(1, "Empleado", false, sqlmock.AnyArg(), sqlmock.AnyArg(), 7, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Upsert(context.Background(), s))
		assert.False(t, s.UpdatedOn.IsZero())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
