package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"
	"penguin-ternos-backend/internal/utils"
)

// PartialCloseWarning is returned with a rental that was reopened because
// units were still out after the return closed it.
const PartialCloseWarning = "partial return: the rental was reopened because units are still rented"

const lostRetentionReason = "lost units"

type rentalService struct {
	rentalRepo  repository.RentalRepository
	settingsSvc SettingsService
	hold        domain.HoldPolicy
	now         Clock
}

func NewRentalService(
	rentalRepo repository.RentalRepository,
	settingsSvc SettingsService,
	hold domain.HoldPolicy,
	clock Clock,
) RentalService {
	if clock == nil {
		clock = systemClock
	}
	return &rentalService{
		rentalRepo:  rentalRepo,
		settingsSvc: settingsSvc,
		hold:        hold,
		now:         clock,
	}
}

// settings falls back to the defaults when the singleton cannot be read.
func (s *rentalService) settings(ctx context.Context) (*domain.Settings, bool) {
	settings, err := s.settingsSvc.GetSettings(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Could not read settings, using defaults", "error", err)
		return domain.DefaultSettings(), false
	}
	return settings, true
}

func (s *rentalService) CreateRental(ctx context.Context, in domain.CreateRentalInput) (rt *domain.Rental, err error) {
	ctx, span := startSpan(ctx, "rental.create", attribute.Int("rental.items", len(in.Items)))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod("rentalService.CreateRental", "items", len(in.Items))

	if in.CustomerID == nil || *in.CustomerID <= 0 {
		return nil, domain.NewValidationError("customer_id", "is required")
	}
	if len(in.Items) == 0 {
		return nil, domain.NewValidationError("items", "at least one item is required")
	}

	// Repeated item ids are merged so availability is checked on the sum.
	var order []int64
	units := make(map[int64]int)
	for _, req := range in.Items {
		if req.ItemID <= 0 {
			return nil, domain.NewValidationError("items", "item_id is required")
		}
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		if qty < 1 {
			return nil, domain.NewValidationError("quantity", "must be at least 1 for item %d", req.ItemID)
		}
		if _, seen := units[req.ItemID]; !seen {
			order = append(order, req.ItemID)
		}
		units[req.ItemID] += qty
	}

	now := s.now()
	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	if in.EndDate.IsZero() {
		return nil, domain.NewValidationError("end_date", "is required")
	}
	if in.EndDate.Before(start) {
		return nil, domain.NewValidationError("end_date", "must not be before start_date")
	}
	if in.RentalAmount.IsNegative() {
		return nil, domain.NewValidationError("rental_amount", "must not be negative")
	}

	deposit := decimal.Zero
	if in.Deposit != nil {
		deposit = *in.Deposit
	} else if settings, ok := s.settings(ctx); ok {
		deposit = settings.DefaultDeposit
	}
	if deposit.IsNegative() {
		return nil, domain.NewValidationError("deposit", "must not be negative")
	}

	payment := in.PaymentMethod
	if payment == "" {
		payment = domain.DefaultPaymentMethod
	}

	rt = &domain.Rental{
		CustomerID:    *in.CustomerID,
		StartDate:     start,
		EndDate:       in.EndDate,
		RentalAmount:  in.RentalAmount,
		Deposit:       deposit,
		PaymentMethod: payment,
		Notes:         in.Notes,
	}
	for _, id := range order {
		for i := 0; i < units[id]; i++ {
			rt.Lines = append(rt.Lines, domain.RentalLine{ItemID: id})
		}
	}

	if err := s.rentalRepo.Create(ctx, rt); err != nil {
		logger.ExitMethodWithError("rentalService.CreateRental", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("rental.id", rt.ID), attribute.Int("rental.units", len(rt.Lines)))
	logger.ExitMethod("rentalService.CreateRental", "id", rt.ID, "units", len(rt.Lines))
	return rt, nil
}

// resolveLines maps each requested unit to a rented line of the rental.
func resolveLines(rt *domain.Rental, requested []domain.LineReturn) ([]domain.LineOutcome, error) {
	byID := make(map[int64]*domain.RentalLine, len(rt.Lines))
	for i := range rt.Lines {
		byID[rt.Lines[i].ID] = &rt.Lines[i]
	}
	used := make(map[int64]bool, len(requested))

	outcomes := make([]domain.LineOutcome, 0, len(requested))
	for _, req := range requested {
		outcome, err := domain.ParseReturnOutcome(req.Outcome)
		if err != nil {
			return nil, err
		}

		var line *domain.RentalLine
		switch {
		case req.LineID != nil:
			line = byID[*req.LineID]
			if line == nil {
				return nil, domain.NewValidationError("lines", "line %d does not belong to rental %d", *req.LineID, rt.ID)
			}
			if used[line.ID] {
				return nil, domain.NewValidationError("lines", "line %d is returned twice", line.ID)
			}
			if line.Status != domain.LineStatusRented {
				return nil, domain.NewValidationError("lines", "line %d is not rented", line.ID)
			}
		case req.ItemID != nil:
			for i := range rt.Lines {
				l := &rt.Lines[i]
				if l.ItemID == *req.ItemID && l.Status == domain.LineStatusRented && !used[l.ID] {
					line = l
					break
				}
			}
			if line == nil {
				return nil, domain.NewValidationError("lines", "no rented unit of item %d left on rental %d", *req.ItemID, rt.ID)
			}
		default:
			return nil, domain.NewValidationError("lines", "line_id or item_id is required")
		}

		used[line.ID] = true
		outcomes = append(outcomes, domain.LineOutcome{LineID: line.ID, ItemID: line.ItemID, Outcome: outcome})
	}
	return outcomes, nil
}

func (s *rentalService) ReturnRental(ctx context.Context, rentalID int64, in domain.ReturnRentalInput) (result *domain.ReturnResult, err error) {
	ctx, span := startSpan(ctx, "rental.return", attribute.Int64("rental.id", rentalID))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod("rentalService.ReturnRental", "id", rentalID, "units", len(in.Lines))

	if len(in.Lines) == 0 {
		return nil, domain.NewValidationError("lines", "at least one returned unit is required")
	}

	rt, err := s.rentalRepo.GetByID(ctx, rentalID)
	if err != nil {
		logger.ExitMethodWithError("rentalService.ReturnRental", err, "id", rentalID)
		return nil, err
	}
	if rt.IsClosed() {
		return nil, domain.ErrRentalClosed
	}

	outcomes, err := resolveLines(rt, in.Lines)
	if err != nil {
		return nil, err
	}

	settings, _ := s.settings(ctx)
	now := s.now()
	fee := utils.CalculateLateFeeWithBreakdown(rt.EndDate, now, settings.DailyLateFee, settings.MaxLateFeeDays)

	lost := rt.HasLostLines()
	for _, o := range outcomes {
		if o.Outcome == domain.OutcomeLost {
			lost = true
		}
	}
	retained := decimal.Zero
	reason := in.RetentionReason
	if in.RetainDeposit || lost {
		retained = rt.Deposit
		if reason == "" && lost {
			reason = lostRetentionReason
		}
	}

	cmd := &domain.ReturnCommand{
		RentalID:        rentalID,
		Outcomes:        outcomes,
		LateFee:         fee.Total,
		DepositRetained: retained,
		RetentionReason: reason,
		ReturnedAt:      now,
		Hold:            s.hold,
	}
	span.SetAttributes(
		attribute.Int("rental.overdue_days", fee.OverdueDays),
		attribute.String("rental.late_fee", fee.Total.String()),
		attribute.Bool("rental.deposit_retained", retained.IsPositive()),
	)

	updated, err := s.rentalRepo.ProcessReturn(ctx, cmd)
	if err != nil {
		logger.ExitMethodWithError("rentalService.ReturnRental", err, "id", rentalID)
		return nil, err
	}

	result = &domain.ReturnResult{Rental: updated}
	if updated.IsClosed() {
		result = s.guardClosed(ctx, result)
	}
	logger.ExitMethod("rentalService.ReturnRental", "id", rentalID, "status", result.Rental.Status, "late_fee", fee.Total.String())
	return result, nil
}

// guardClosed reopens a rental that was closed while some of its units are
// still rented.
func (s *rentalService) guardClosed(ctx context.Context, result *domain.ReturnResult) *domain.ReturnResult {
	id := result.Rental.ID
	remaining, err := s.rentalRepo.CountRentedLines(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Could not verify rented units after return", "rental_id", id, "error", err)
		return result
	}
	if remaining == 0 {
		return result
	}

	logger.WarnContext(ctx, "Rental closed with units still rented, reopening", "rental_id", id, "rented", remaining)
	if err := s.rentalRepo.Reopen(ctx, id); err != nil {
		logger.ErrorContext(ctx, "Failed to reopen rental", "rental_id", id, "error", err)
		return result
	}
	reopened, err := s.rentalRepo.GetByID(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to reload reopened rental", "rental_id", id, "error", err)
		reopened = result.Rental
		reopened.Status = domain.RentalStatusActive
		reopened.ReturnDate = nil
	}
	return &domain.ReturnResult{Rental: reopened, Warning: PartialCloseWarning}
}

func (s *rentalService) GetRental(ctx context.Context, id int64) (*domain.Rental, error) {
	return s.rentalRepo.GetByID(ctx, id)
}

func (s *rentalService) ListRentals(ctx context.Context) ([]domain.Rental, error) {
	return s.rentalRepo.List(ctx)
}

func (s *rentalService) ListActive(ctx context.Context) ([]domain.Rental, error) {
	return s.rentalRepo.ListByStatus(ctx, domain.RentalStatusActive)
}

func (s *rentalService) ListHistory(ctx context.Context) ([]domain.Rental, error) {
	return s.rentalRepo.ListByStatus(ctx, domain.RentalStatusReturned, domain.RentalStatusLost)
}

func (s *rentalService) ListOverdue(ctx context.Context) ([]domain.Rental, error) {
	return s.rentalRepo.ListOverdue(ctx, s.now())
}
