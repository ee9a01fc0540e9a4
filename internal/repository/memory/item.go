package memory

import (
	"context"
	"sort"
	"time"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/repository"
)

type itemRepository struct{ st *state }

func (r *itemRepository) Create(_ context.Context, it *domain.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.codes[it.Code]; ok {
		return domain.NewValidationError("code", "item code %q already exists", it.Code)
	}
	it.ID = r.st.id()
	it.SyncStatus()
	r.st.items[it.ID] = cloneItem(it)
	r.st.codes[it.Code] = it.ID
	return nil
}

func (r *itemRepository) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	it, ok := r.st.items[id]
	if !ok || it.DeletedOn != nil {
		return nil, domain.NewNotFoundError("item", id)
	}
	return cloneItem(it), nil
}

func (r *itemRepository) filter(keep func(*domain.Item) bool) []domain.Item {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []domain.Item
	for _, it := range r.st.items {
		if it.DeletedOn == nil && keep(it) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *itemRepository) List(_ context.Context) ([]domain.Item, error) {
	return r.filter(func(*domain.Item) bool { return true }), nil
}

func (r *itemRepository) ListByCounter(_ context.Context, kind domain.CounterKind) ([]domain.Item, error) {
	if _, err := domain.ParseCounterKind(string(kind)); err != nil {
		return nil, err
	}
	return r.filter(func(it *domain.Item) bool { return it.Get(kind) > 0 }), nil
}

func (r *itemRepository) Mutate(_ context.Context, id int64, fn repository.ItemMutation) (*domain.Item, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	staged, err := r.st.stage(map[int64]int{id: 1}, false)
	if err != nil {
		return nil, err
	}
	it := staged[id]
	movement, err := fn(it)
	if err != nil {
		return nil, err
	}
	now := r.st.now()
	if err := r.st.commit(staged, now); err != nil {
		return nil, err
	}
	if movement != nil {
		movement.ItemID = id
		movement.CreatedOn = now
		r.st.record(*movement)
	}
	return cloneItem(it), nil
}

func (r *itemRepository) Delete(_ context.Context, id int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	it, ok := r.st.items[id]
	if !ok || it.DeletedOn != nil {
		return domain.NewNotFoundError("item", id)
	}
	if it.Rented > 0 {
		return domain.NewValidationError("item", "item %d has %d units rented out", id, it.Rented)
	}
	now := r.st.now()
	it.DeletedOn = &now
	it.UpdatedOn = now
	return nil
}

func (r *itemRepository) DeleteExhausted(_ context.Context, ids []int64) ([]int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	now := r.st.now()
	var deleted []int64
	for _, id := range ids {
		it, ok := r.st.items[id]
		if !ok || it.DeletedOn != nil || !it.Exhausted() {
			continue
		}
		t := now
		it.DeletedOn = &t
		it.UpdatedOn = now
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (r *itemRepository) Summary(_ context.Context) (*domain.InventorySummary, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s := &domain.InventorySummary{}
	for _, it := range r.st.items {
		if it.DeletedOn == nil {
			s.Add(it.Counters)
		}
	}
	return s, nil
}

func (r *itemRepository) ReleaseExpiredHolds(_ context.Context, now time.Time) ([]int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var released []int64
	for id, it := range r.st.items {
		if it.DeletedOn != nil || !it.HoldExpired(now) {
			continue
		}
		moved, err := it.TakeOutOfMaintenance(0)
		if err != nil {
			return nil, err
		}
		it.UpdatedOn = now
		r.st.record(domain.StockMovement{ItemID: id, Kind: domain.MovementMaintenanceOut, Quantity: moved,
			Note: "maintenance hold expired", CreatedOn: now})
		released = append(released, id)
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released, nil
}

func (r *itemRepository) ListMovements(_ context.Context, itemID int64) ([]domain.StockMovement, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []domain.StockMovement
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		if r.st.movements[i].ItemID == itemID {
			out = append(out, r.st.movements[i])
		}
	}
	return out, nil
}
