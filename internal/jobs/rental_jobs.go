package jobs

import (
	"context"

	"github.com/shopspring/decimal"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/utils"
)

// ReleaseMaintenanceHolds moves units whose maintenance hold has ended back
// to available stock. Indefinite holds are left alone.
func (jr *JobRunner) ReleaseMaintenanceHolds() {
	jr.runWithRecovery("ReleaseMaintenanceHolds", func() {
		ctx := context.Background()

		ids, err := jr.services.Inventory.ReleaseExpiredHolds(ctx, jr.now())
		if err != nil {
			logger.Error("Failed to release maintenance holds", "error", err)
			return
		}
		logger.Info("Released maintenance holds", "count", len(ids))
		for _, id := range ids {
			logger.Debug("Released maintenance hold", "item_id", id)
		}
	})
}

// OverdueReport summarises active rentals past their end date.
type OverdueReport struct {
	Count          int
	AccruedLateFee decimal.Decimal
}

// ReportOverdueRentals logs every active rental past its end date with the
// late fee it would be charged if returned now.
func (jr *JobRunner) ReportOverdueRentals() {
	jr.runWithRecovery("ReportOverdueRentals", func() {
		if _, err := jr.overdueReport(context.Background()); err != nil {
			logger.Error("Failed to report overdue rentals", "error", err)
		}
	})
}

func (jr *JobRunner) overdueReport(ctx context.Context) (*OverdueReport, error) {
	rentals, err := jr.services.Rental.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := jr.services.Settings.GetSettings(ctx)
	if err != nil {
		logger.Warn("Could not read settings, using defaults", "error", err)
		settings = domain.DefaultSettings()
	}

	now := jr.now()
	report := &OverdueReport{Count: len(rentals), AccruedLateFee: decimal.Zero}
	for _, rt := range rentals {
		fee := utils.CalculateLateFeeWithBreakdown(rt.EndDate, now, settings.DailyLateFee, settings.MaxLateFeeDays)
		report.AccruedLateFee = report.AccruedLateFee.Add(fee.Total)
		logger.Info("Overdue rental",
			"rental_id", rt.ID,
			"customer_id", rt.CustomerID,
			"end_date", rt.EndDate,
			"overdue_days", fee.OverdueDays,
			"late_fee", fee.Total.String(),
			"rented_units", rt.RentedLines())
	}

	logger.Info("Overdue rentals", "count", report.Count, "accrued_late_fee", report.AccruedLateFee.String())
	return report, nil
}
