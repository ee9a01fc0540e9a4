package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// dateLayouts are the formats accepted for rental dates, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateTime parses an RFC3339 timestamp or a yyyy-mm-dd date. Dates
// without a zone are taken as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format %q, expected yyyy-mm-dd or RFC3339", s)
}

// StartedDays returns the number of started 24h periods between from and to,
// rounding up. It is zero when to is not after from.
func StartedDays(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int((to.Sub(from) + day - 1) / day)
}

// OverdueDays is the number of started days past the rental end date.
func OverdueDays(endDate, now time.Time) int {
	return StartedDays(endDate, now)
}

// LateFeeBreakdown explains how a late fee was computed.
type LateFeeBreakdown struct {
	OverdueDays  int
	BillableDays int
	DailyFee     decimal.Decimal
	Total        decimal.Decimal
}

// CalculateLateFee charges dailyFee for each overdue day, capped at maxDays.
func CalculateLateFee(endDate, now time.Time, dailyFee decimal.Decimal, maxDays int) decimal.Decimal {
	return CalculateLateFeeWithBreakdown(endDate, now, dailyFee, maxDays).Total
}

// CalculateLateFeeWithBreakdown is CalculateLateFee with the intermediate values.
func CalculateLateFeeWithBreakdown(endDate, now time.Time, dailyFee decimal.Decimal, maxDays int) LateFeeBreakdown {
	overdue := OverdueDays(endDate, now)
	billable := overdue
	if maxDays < billable {
		billable = maxDays
	}
	if billable < 0 {
		billable = 0
	}
	return LateFeeBreakdown{
		OverdueDays:  overdue,
		BillableDays: billable,
		DailyFee:     dailyFee,
		Total:        dailyFee.Mul(decimal.NewFromInt(int64(billable))),
	}
}

// WithinReturnWindow reports whether a sale made at soldAt can still be
// returned at now, counting started days.
func WithinReturnWindow(soldAt, now time.Time, windowDays int) bool {
	return StartedDays(soldAt, now) <= windowDays
}
