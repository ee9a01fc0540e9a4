package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/domain"
)

func TestGetSettings_CreatesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, err := f.settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Empleado", settings.EmployeeName)
	assert.True(t, decimal.NewFromInt(50).Equal(settings.DefaultDeposit))
	assert.Equal(t, 7, settings.MaxLateFeeDays)

	stored, err := f.store.SettingsRepository.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.EmployeeName, stored.EmployeeName)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "Rosa"
	deposit := decimal.NewFromInt(80)

	updated, err := f.settings.UpdateSettings(ctx, domain.SettingsUpdate{EmployeeName: &name, DefaultDeposit: &deposit})
	require.NoError(t, err)
	assert.Equal(t, "Rosa", updated.EmployeeName)
	assert.True(t, deposit.Equal(updated.DefaultDeposit))
	assert.True(t, decimal.NewFromInt(10).Equal(updated.DailyLateFee), "unset fields keep their value")

	negative := decimal.NewFromInt(-5)
	_, err = f.settings.UpdateSettings(ctx, domain.SettingsUpdate{DailyLateFee: &negative})
	var valErr *domain.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "daily_late_fee", valErr.Field)

	current, err := f.settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(current.DailyLateFee))
	assert.Equal(t, "Rosa", current.EmployeeName)
}
