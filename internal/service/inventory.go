package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"
)

type inventoryService struct {
	itemRepo repository.ItemRepository
	suitRepo repository.SuitRepository
	hold     domain.HoldPolicy
	now      Clock
}

func NewInventoryService(itemRepo repository.ItemRepository, suitRepo repository.SuitRepository, hold domain.HoldPolicy, clock Clock) InventoryService {
	if clock == nil {
		clock = systemClock
	}
	return &inventoryService{itemRepo: itemRepo, suitRepo: suitRepo, hold: hold, now: clock}
}

func autoCode(now time.Time) string {
	return "AUTO-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}

func (s *inventoryService) CreateItem(ctx context.Context, in domain.CreateItemInput) (*domain.Item, error) {
	logger.EnterMethod("inventoryService.CreateItem", "code", in.Code)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if qty < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if in.RentalPrice.IsNegative() || in.SalePrice.IsNegative() {
		return nil, domain.NewValidationError("price", "must not be negative")
	}

	now := s.now()
	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = autoCode(now)
	}
	it := &domain.Item{
		Code:        code,
		Name:        name,
		Type:        in.Type,
		Size:        in.Size,
		Color:       in.Color,
		RentalPrice: in.RentalPrice,
		SalePrice:   in.SalePrice,
		Counters:    domain.Counters{Total: qty, Available: qty},
		CreatedOn:   now,
		UpdatedOn:   now,
	}
	if err := s.itemRepo.Create(ctx, it); err != nil {
		logger.ExitMethodWithError("inventoryService.CreateItem", err)
		return nil, err
	}
	logger.ExitMethod("inventoryService.CreateItem", "id", it.ID)
	return it, nil
}

func (s *inventoryService) UpdateItem(ctx context.Context, id int64, in domain.UpdateItemInput) (*domain.Item, error) {
	logger.EnterMethod("inventoryService.UpdateItem", "id", id)
	if in.Quantity != nil && *in.Quantity <= 0 {
		if err := s.itemRepo.Delete(ctx, id); err != nil {
			logger.ExitMethodWithError("inventoryService.UpdateItem", err, "id", id)
			return nil, err
		}
		logger.ExitMethod("inventoryService.UpdateItem", "id", id, "deleted", true)
		return nil, nil
	}

	it, err := s.itemRepo.Mutate(ctx, id, func(it *domain.Item) (*domain.StockMovement, error) {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return nil, domain.NewValidationError("name", "must not be empty")
			}
			it.Name = name
		}
		if in.Type != nil {
			it.Type = *in.Type
		}
		if in.Size != nil {
			it.Size = *in.Size
		}
		if in.Color != nil {
			it.Color = *in.Color
		}
		if in.RentalPrice != nil {
			if in.RentalPrice.IsNegative() {
				return nil, domain.NewValidationError("rental_price", "must not be negative")
			}
			it.RentalPrice = *in.RentalPrice
		}
		if in.SalePrice != nil {
			if in.SalePrice.IsNegative() {
				return nil, domain.NewValidationError("sale_price", "must not be negative")
			}
			it.SalePrice = *in.SalePrice
		}
		if in.Quantity == nil || *in.Quantity == it.Total {
			return nil, nil
		}
		delta := *in.Quantity - it.Total
		if err := it.Resize(*in.Quantity); err != nil {
			return nil, err
		}
		return &domain.StockMovement{Kind: domain.MovementAdjust, Quantity: delta, Note: "quantity edited"}, nil
	})
	if err != nil {
		logger.ExitMethodWithError("inventoryService.UpdateItem", err, "id", id)
		return nil, err
	}
	logger.ExitMethod("inventoryService.UpdateItem", "id", id)
	return it, nil
}

func (s *inventoryService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

func (s *inventoryService) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.itemRepo.List(ctx)
}

func (s *inventoryService) DeleteItem(ctx context.Context, id int64) error {
	return s.itemRepo.Delete(ctx, id)
}

// CheckAvailability returns the units currently available. It is advisory:
// reservations re-check stock under a row lock.
func (s *inventoryService) CheckAvailability(ctx context.Context, id int64) (int, error) {
	it, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return it.Available, nil
}

func (s *inventoryService) ApplyMaintenance(ctx context.Context, id int64, in domain.MaintenanceInput) (it *domain.Item, err error) {
	ctx, span := startSpan(ctx, "item.maintenance", attribute.Int64("item.id", id), attribute.String("maintenance.action", in.Action))
	defer func() { endSpan(span, err) }()

	action, err := domain.ParseMaintenanceAction(in.Action)
	if err != nil {
		return nil, err
	}

	switch action {
	case domain.MaintenanceAdd:
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		var until *time.Time
		if !in.Indefinite {
			hold := s.hold.Complete
			if in.Hours != nil {
				if *in.Hours < 0 {
					return nil, domain.NewValidationError("hours", "must not be negative")
				}
				hold = time.Duration(*in.Hours) * time.Hour
			}
			t := s.now().Add(hold)
			until = &t
		}
		return s.itemRepo.Mutate(ctx, id, func(item *domain.Item) (*domain.StockMovement, error) {
			if err := item.PutInMaintenance(qty, until); err != nil {
				return nil, err
			}
			return &domain.StockMovement{Kind: domain.MovementMaintenanceIn, Quantity: qty}, nil
		})
	default:
		return s.itemRepo.Mutate(ctx, id, func(item *domain.Item) (*domain.StockMovement, error) {
			moved, err := item.TakeOutOfMaintenance(in.Quantity)
			if err != nil {
				return nil, err
			}
			if moved == 0 {
				return nil, nil
			}
			return &domain.StockMovement{Kind: domain.MovementMaintenanceOut, Quantity: moved}, nil
		})
	}
}

// SetStatus maps a directly requested status onto the counters. Maintenance
// reschedules the hold of the units already in maintenance; available
// releases every unit in maintenance.
func (s *inventoryService) SetStatus(ctx context.Context, id int64, in domain.StatusInput) (it *domain.Item, err error) {
	ctx, span := startSpan(ctx, "item.status", attribute.Int64("item.id", id), attribute.String("item.status", in.Status))
	defer func() { endSpan(span, err) }()

	status, err := domain.ParseSettableStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if status == domain.ItemStatusAvailable {
		return s.ApplyMaintenance(ctx, id, domain.MaintenanceInput{Action: string(domain.MaintenanceRemove)})
	}
	if in.AvailableAt != nil && !in.AvailableAt.After(s.now()) {
		return nil, domain.NewValidationError("available_at", "must be in the future")
	}
	return s.itemRepo.Mutate(ctx, id, func(item *domain.Item) (*domain.StockMovement, error) {
		return nil, item.SetHold(in.AvailableAt)
	})
}

func (s *inventoryService) CreateSuit(ctx context.Context, in domain.CreateSuitInput) (*domain.Suit, error) {
	logger.EnterMethod("inventoryService.CreateSuit", "name", in.Name)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	suit := &domain.Suit{Name: name, Description: strings.TrimSpace(in.Description), CreatedOn: s.now()}
	seen := make(map[int64]bool, len(in.ItemIDs))
	for _, itemID := range in.ItemIDs {
		if seen[itemID] {
			continue
		}
		seen[itemID] = true
		if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
			logger.ExitMethodWithError("inventoryService.CreateSuit", err, "item_id", itemID)
			return nil, err
		}
		suit.Items = append(suit.Items, domain.Item{ID: itemID})
	}
	if err := s.suitRepo.Create(ctx, suit); err != nil {
		logger.ExitMethodWithError("inventoryService.CreateSuit", err)
		return nil, err
	}
	logger.ExitMethod("inventoryService.CreateSuit", "id", suit.ID)
	return s.suitRepo.GetByID(ctx, suit.ID)
}

func (s *inventoryService) GetSuit(ctx context.Context, id int64) (*domain.Suit, error) {
	return s.suitRepo.GetByID(ctx, id)
}

func (s *inventoryService) ListSuits(ctx context.Context) ([]domain.Suit, error) {
	return s.suitRepo.List(ctx)
}

func (s *inventoryService) Summary(ctx context.Context) (*domain.InventorySummary, error) {
	return s.itemRepo.Summary(ctx)
}

func (s *inventoryService) ListByCounter(ctx context.Context, kind string) ([]domain.Item, error) {
	counter, err := domain.ParseCounterKind(kind)
	if err != nil {
		return nil, err
	}
	return s.itemRepo.ListByCounter(ctx, counter)
}

func (s *inventoryService) ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]int64, error) {
	logger.EnterMethod("inventoryService.ReleaseExpiredHolds", "now", now)
	ids, err := s.itemRepo.ReleaseExpiredHolds(ctx, now)
	if err != nil {
		logger.ExitMethodWithError("inventoryService.ReleaseExpiredHolds", err)
		return nil, err
	}
	logger.ExitMethod("inventoryService.ReleaseExpiredHolds", "released", len(ids))
	return ids, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, itemID int64) ([]domain.StockMovement, error) {
	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.itemRepo.ListMovements(ctx, itemID)
}
