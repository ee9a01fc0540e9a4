package memory

import (
	"context"
	"sort"
	"time"

	"penguin-ternos-backend/internal/domain"
)

type saleRepository struct{ st *state }

func (r *saleRepository) Create(_ context.Context, s *domain.Sale) error {
	if len(s.Lines) == 0 {
		return domain.NewValidationError("items", "a sale needs at least one unit")
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	units := s.UnitsPerItem()
	staged, err := r.st.stage(units, false)
	if err != nil {
		return err
	}
	for _, id := range sortedIDs(units) {
		if err := staged[id].Sell(units[id]); err != nil {
			return err
		}
	}
	now := r.st.now()
	if err := r.st.commit(staged, now); err != nil {
		return err
	}

	s.ID = r.st.id()
	s.Status = domain.SaleStatusCompleted
	s.CreatedOn = now
	s.UpdatedOn = now
	for i := range s.Lines {
		s.Lines[i].ID = r.st.id()
		s.Lines[i].SaleID = s.ID
	}
	for _, id := range sortedIDs(units) {
		saleID := s.ID
		r.st.record(domain.StockMovement{ItemID: id, Kind: domain.MovementSell, Quantity: units[id], SaleID: &saleID, CreatedOn: now})
	}
	r.st.sales[s.ID] = cloneSale(s)
	return nil
}

func (r *saleRepository) GetByID(_ context.Context, id int64) (*domain.Sale, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.sales[id]
	if !ok {
		return nil, domain.NewNotFoundError("sale", id)
	}
	return cloneSale(s), nil
}

func (r *saleRepository) List(_ context.Context) ([]domain.Sale, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.Sale, 0, len(r.st.sales))
	for _, s := range r.st.sales {
		out = append(out, *cloneSale(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.After(out[j].CreatedOn)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *saleRepository) MarkReturned(_ context.Context, saleID int64, now time.Time) (*domain.Sale, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stored, ok := r.st.sales[saleID]
	if !ok {
		return nil, domain.NewNotFoundError("sale", saleID)
	}
	if stored.Status == domain.SaleStatusReturned {
		return nil, domain.ErrSaleReturned
	}

	units := stored.UnitsPerItem()
	staged, err := r.st.stage(units, true)
	if err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(units) {
		it := staged[id]
		if err := it.ReturnSale(units[id]); err != nil {
			return nil, err
		}
		if it.DeletedOn != nil && !it.Exhausted() {
			it.DeletedOn = nil
		}
	}
	if err := r.st.commit(staged, now); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(units) {
		sid := saleID
		r.st.record(domain.StockMovement{ItemID: id, Kind: domain.MovementReturnSale, Quantity: units[id], SaleID: &sid, CreatedOn: now})
	}

	s := cloneSale(stored)
	returnedAt := now
	s.Status = domain.SaleStatusReturned
	s.ReturnDate = &returnedAt
	s.UpdatedOn = now
	r.st.sales[saleID] = s
	return cloneSale(s), nil
}
