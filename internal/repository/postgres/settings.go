package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/repository"
)

// The settings table holds a single row with id 1.
const settingsRowID = 1

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	s := &domain.Settings{}
	query := `SELECT COALESCE(employee_name, ''), dark_theme, default_deposit, daily_late_fee, max_late_fee_days, updated_on
	          FROM settings WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, settingsRowID).Scan(&s.EmployeeName, &s.DarkTheme, &s.DefaultDeposit,
		&s.DailyLateFee, &s.MaxLateFeeDays, &s.UpdatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("settings", settingsRowID)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *domain.Settings) error {
	s.UpdatedOn = time.Now().UTC()
	query := `INSERT INTO settings (id, employee_name, dark_theme, default_deposit, daily_late_fee, max_late_fee_days, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (id) DO UPDATE SET employee_name = EXCLUDED.employee_name, dark_theme = EXCLUDED.dark_theme,
	          default_deposit = EXCLUDED.default_deposit, daily_late_fee = EXCLUDED.daily_late_fee,
	          max_late_fee_days = EXCLUDED.max_late_fee_days, updated_on = EXCLUDED.updated_on`
	_, err := r.db.ExecContext(ctx, query, settingsRowID, s.EmployeeName, s.DarkTheme, s.DefaultDeposit,
		s.DailyLateFee, s.MaxLateFeeDays, s.UpdatedOn)
	return err
}
