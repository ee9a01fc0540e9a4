package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the business configuration singleton.
type Settings struct {
	EmployeeName   string          `json:"employee_name"`
	DarkTheme      bool            `json:"dark_theme"`
	DefaultDeposit decimal.Decimal `json:"default_deposit"`
	DailyLateFee   decimal.Decimal `json:"daily_late_fee"`
	MaxLateFeeDays int             `json:"max_late_fee_days"`
	UpdatedOn      time.Time       `json:"updated_on"`
}

func DefaultSettings() *Settings {
	return &Settings{
		EmployeeName:   "Empleado",
		DarkTheme:      false,
		DefaultDeposit: decimal.NewFromInt(50),
		DailyLateFee:   decimal.NewFromInt(10),
		MaxLateFeeDays: 7,
	}
}

type SettingsUpdate struct {
	EmployeeName   *string          `json:"employee_name"`
	DarkTheme      *bool            `json:"dark_theme"`
	DefaultDeposit *decimal.Decimal `json:"default_deposit"`
	DailyLateFee   *decimal.Decimal `json:"daily_late_fee"`
	MaxLateFeeDays *int             `json:"max_late_fee_days"`
}

// Apply merges the set fields into s and validates the result.
func (u SettingsUpdate) Apply(s *Settings) error {
	if u.EmployeeName != nil {
		s.EmployeeName = *u.EmployeeName
	}
	if u.DarkTheme != nil {
		s.DarkTheme = *u.DarkTheme
	}
	if u.DefaultDeposit != nil {
		s.DefaultDeposit = *u.DefaultDeposit
	}
	if u.DailyLateFee != nil {
		s.DailyLateFee = *u.DailyLateFee
	}
	if u.MaxLateFeeDays != nil {
		s.MaxLateFeeDays = *u.MaxLateFeeDays
	}
	if s.DefaultDeposit.IsNegative() {
		return NewValidationError("default_deposit", "must not be negative")
	}
	if s.DailyLateFee.IsNegative() {
		return NewValidationError("daily_late_fee", "must not be negative")
	}
	if s.MaxLateFeeDays < 0 {
		return NewValidationError("max_late_fee_days", "must not be negative")
	}
	return nil
}
