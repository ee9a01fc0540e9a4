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

type saleService struct {
	saleRepo repository.SaleRepository
	itemRepo repository.ItemRepository
	now      Clock
}

func NewSaleService(saleRepo repository.SaleRepository, itemRepo repository.ItemRepository, clock Clock) SaleService {
	if clock == nil {
		clock = systemClock
	}
	return &saleService{saleRepo: saleRepo, itemRepo: itemRepo, now: clock}
}

func (s *saleService) CreateSale(ctx context.Context, in domain.CreateSaleInput) (sale *domain.Sale, err error) {
	ctx, span := startSpan(ctx, "sale.create", attribute.Int("sale.items", len(in.Items)))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod("saleService.CreateSale", "items", len(in.Items))

	if len(in.Items) == 0 {
		return nil, domain.NewValidationError("items", "at least one item is required")
	}

	sale = &domain.Sale{CustomerID: in.CustomerID, PaymentMethod: in.PaymentMethod, Notes: in.Notes}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = domain.DefaultPaymentMethod
	}

	prices := make(map[int64]decimal.Decimal)
	var itemIDs []int64
	sum := decimal.Zero
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

		var price decimal.Decimal
		switch {
		case req.Price != nil:
			price = *req.Price
		default:
			p, ok := prices[req.ItemID]
			if !ok {
				it, err := s.itemRepo.GetByID(ctx, req.ItemID)
				if err != nil {
					return nil, err
				}
				p = it.SalePrice
				prices[req.ItemID] = p
			}
			price = p
		}
		if price.IsNegative() {
			return nil, domain.NewValidationError("price", "must not be negative for item %d", req.ItemID)
		}

		for i := 0; i < qty; i++ {
			sale.Lines = append(sale.Lines, domain.SaleLine{ItemID: req.ItemID, Price: price})
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		itemIDs = append(itemIDs, req.ItemID)
	}

	sale.Total = sum
	if in.Total != nil {
		if in.Total.IsNegative() {
			return nil, domain.NewValidationError("total", "must not be negative")
		}
		sale.Total = *in.Total
	}

	if err := s.saleRepo.Create(ctx, sale); err != nil {
		logger.ExitMethodWithError("saleService.CreateSale", err)
		return nil, err
	}

	// Cleanup is best effort; the sale already committed.
	deleted, cleanupErr := s.itemRepo.DeleteExhausted(ctx, itemIDs)
	if cleanupErr != nil {
		logger.WarnContext(ctx, "Failed to remove exhausted items", "sale_id", sale.ID, "error", cleanupErr)
	} else if len(deleted) > 0 {
		logger.InfoContext(ctx, "Removed exhausted items from catalog", "sale_id", sale.ID, "items", deleted)
	}

	span.SetAttributes(attribute.Int64("sale.id", sale.ID), attribute.String("sale.total", sale.Total.String()))
	logger.ExitMethod("saleService.CreateSale", "id", sale.ID, "units", len(sale.Lines))
	return sale, nil
}

func (s *saleService) ReturnSale(ctx context.Context, saleID int64) (sale *domain.Sale, err error) {
	ctx, span := startSpan(ctx, "sale.return", attribute.Int64("sale.id", saleID))
	defer func() { endSpan(span, err) }()
	logger.EnterMethod("saleService.ReturnSale", "id", saleID)

	existing, err := s.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if existing.Status == domain.SaleStatusReturned {
		return nil, domain.ErrSaleReturned
	}
	now := s.now()
	if !utils.WithinReturnWindow(existing.CreatedOn, now, domain.SaleReturnWindowDays) {
		logger.ExitMethodWithError("saleService.ReturnSale", domain.ErrReturnWindowExpired, "id", saleID)
		return nil, domain.ErrReturnWindowExpired
	}

	sale, err = s.saleRepo.MarkReturned(ctx, saleID, now)
	if err != nil {
		logger.ExitMethodWithError("saleService.ReturnSale", err, "id", saleID)
		return nil, err
	}
	logger.ExitMethod("saleService.ReturnSale", "id", saleID)
	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.saleRepo.GetByID(ctx, id)
}

func (s *saleService) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.saleRepo.List(ctx)
}
