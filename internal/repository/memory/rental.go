package memory

import (
	"context"
	"sort"
	"time"

	"penguin-ternos-backend/internal/domain"
)

var outcomeOrder = []domain.ReturnOutcome{domain.OutcomeComplete, domain.OutcomeDamaged, domain.OutcomeLost}

type rentalRepository struct{ st *state }

func (r *rentalRepository) Create(_ context.Context, rt *domain.Rental) error {
	if len(rt.Lines) == 0 {
		return domain.NewValidationError("items", "a rental needs at least one unit")
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	units := rt.UnitsPerItem()
	staged, err := r.st.stage(units, false)
	if err != nil {
		return err
	}
	for _, id := range sortedIDs(units) {
		if err := staged[id].Reserve(units[id]); err != nil {
			return err
		}
	}
	now := r.st.now()
	if err := r.st.commit(staged, now); err != nil {
		return err
	}

	rt.ID = r.st.id()
	rt.Status = domain.RentalStatusActive
	rt.CreatedOn = now
	rt.UpdatedOn = now
	for i := range rt.Lines {
		l := &rt.Lines[i]
		l.ID = r.st.id()
		l.RentalID = rt.ID
		l.Status = domain.LineStatusRented
		l.ItemName = staged[l.ItemID].Name
	}
	for _, id := range sortedIDs(units) {
		rentalID := rt.ID
		r.st.record(domain.StockMovement{ItemID: id, Kind: domain.MovementReserve, Quantity: units[id], RentalID: &rentalID, CreatedOn: now})
	}
	r.st.rentals[rt.ID] = cloneRental(rt)
	return nil
}

func (r *rentalRepository) view(rt *domain.Rental) domain.Rental {
	c := cloneRental(rt)
	if cust, ok := r.st.customers[c.CustomerID]; ok {
		c.Customer = &cust
	}
	return *c
}

func (r *rentalRepository) GetByID(_ context.Context, id int64) (*domain.Rental, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rt, ok := r.st.rentals[id]
	if !ok {
		return nil, domain.NewNotFoundError("rental", id)
	}
	v := r.view(rt)
	return &v, nil
}

func (r *rentalRepository) filter(keep func(*domain.Rental) bool, less func(a, b *domain.Rental) bool) []domain.Rental {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []domain.Rental
	for _, rt := range r.st.rentals {
		if keep(rt) {
			out = append(out, r.view(rt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

func newestFirst(a, b *domain.Rental) bool {
	if !a.CreatedOn.Equal(b.CreatedOn) {
		return a.CreatedOn.After(b.CreatedOn)
	}
	return a.ID > b.ID
}

func (r *rentalRepository) List(_ context.Context) ([]domain.Rental, error) {
	return r.filter(func(*domain.Rental) bool { return true }, newestFirst), nil
}

func (r *rentalRepository) ListByStatus(_ context.Context, statuses ...domain.RentalStatus) ([]domain.Rental, error) {
	return r.filter(func(rt *domain.Rental) bool {
		for _, s := range statuses {
			if rt.Status == s {
				return true
			}
		}
		return false
	}, newestFirst), nil
}

func (r *rentalRepository) ListOverdue(_ context.Context, now time.Time) ([]domain.Rental, error) {
	return r.filter(func(rt *domain.Rental) bool {
		return rt.Status == domain.RentalStatusActive && rt.EndDate.Before(now)
	}, func(a, b *domain.Rental) bool { return a.EndDate.Before(b.EndDate) }), nil
}

func (r *rentalRepository) ProcessReturn(_ context.Context, cmd *domain.ReturnCommand) (*domain.Rental, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stored, ok := r.st.rentals[cmd.RentalID]
	if !ok {
		return nil, domain.NewNotFoundError("rental", cmd.RentalID)
	}
	if stored.Status != domain.RentalStatusActive {
		return nil, domain.ErrRentalClosed
	}

	rt := cloneRental(stored)
	index := make(map[int64]int, len(rt.Lines))
	for i, l := range rt.Lines {
		index[l.ID] = i
	}

	released := make(map[int64]map[domain.ReturnOutcome]int)
	units := make(map[int64]int)
	for _, o := range cmd.Outcomes {
		i, ok := index[o.LineID]
		if !ok {
			return nil, domain.NewValidationError("lines", "line %d does not belong to rental %d", o.LineID, cmd.RentalID)
		}
		l := &rt.Lines[i]
		if l.Status != domain.LineStatusRented {
			return nil, domain.NewValidationError("lines", "line %d is not rented", o.LineID)
		}
		l.Status = o.Outcome.LineStatus()
		returnedOn := cmd.ReturnedAt
		l.ReturnedOn = &returnedOn
		if released[l.ItemID] == nil {
			released[l.ItemID] = make(map[domain.ReturnOutcome]int)
		}
		released[l.ItemID][o.Outcome]++
		units[l.ItemID]++
	}

	staged, err := r.st.stage(units, true)
	if err != nil {
		return nil, err
	}
	var movements []domain.StockMovement
	for _, id := range sortedIDs(units) {
		for _, outcome := range outcomeOrder {
			n := released[id][outcome]
			if n == 0 {
				continue
			}
			if err := staged[id].Release(n, outcome, cmd.ReturnedAt, cmd.Hold); err != nil {
				return nil, err
			}
			rentalID := cmd.RentalID
			movements = append(movements, domain.StockMovement{
				ItemID: id, Kind: domain.ReleaseMovement(outcome), Quantity: n, RentalID: &rentalID, CreatedOn: cmd.ReturnedAt,
			})
		}
	}
	if err := r.st.commit(staged, cmd.ReturnedAt); err != nil {
		return nil, err
	}
	for _, m := range movements {
		r.st.record(m)
	}

	returnedAt := cmd.ReturnedAt
	rt.Status = domain.ClosingStatus(rt.Lines)
	rt.ReturnDate = &returnedAt
	rt.LateFeeCharged = cmd.LateFee
	rt.DepositRetained = cmd.DepositRetained
	rt.RetentionReason = cmd.RetentionReason
	rt.UpdatedOn = cmd.ReturnedAt
	r.st.rentals[rt.ID] = rt

	v := r.view(rt)
	return &v, nil
}

func (r *rentalRepository) CountRentedLines(_ context.Context, rentalID int64) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rt, ok := r.st.rentals[rentalID]
	if !ok {
		return 0, nil
	}
	return rt.RentedLines(), nil
}

func (r *rentalRepository) Reopen(_ context.Context, rentalID int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rt, ok := r.st.rentals[rentalID]
	if !ok {
		return domain.NewNotFoundError("rental", rentalID)
	}
	rt.Status = domain.RentalStatusActive
	rt.ReturnDate = nil
	rt.UpdatedOn = r.st.now()
	return nil
}
