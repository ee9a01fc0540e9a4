// Package memory keeps the whole store in process memory behind one mutex.
// It backs the "memory" database driver used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/repository"
)

type state struct {
	mu        sync.Mutex
	now       func() time.Time
	nextID    int64
	items     map[int64]*domain.Item
	codes     map[string]int64
	rentals   map[int64]*domain.Rental
	sales     map[int64]*domain.Sale
	settings  *domain.Settings
	movements []domain.StockMovement
	customers map[int64]domain.Customer
	suits     map[int64]*suitRecord
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	st *state
	repository.ItemRepository
	repository.RentalRepository
	repository.SaleRepository
	repository.SettingsRepository
	repository.SuitRepository
}

func NewStore() *Store {
	st := &state{
		now:       func() time.Time { return time.Now().UTC() },
		items:     make(map[int64]*domain.Item),
		codes:     make(map[string]int64),
		rentals:   make(map[int64]*domain.Rental),
		sales:     make(map[int64]*domain.Sale),
		customers: make(map[int64]domain.Customer),
		suits:     make(map[int64]*suitRecord),
	}
	return &Store{
		st:                 st,
		ItemRepository:     &itemRepository{st},
		RentalRepository:   &rentalRepository{st},
		SaleRepository:     &saleRepository{st},
		SettingsRepository: &settingsRepository{st},
		SuitRepository:     &suitRepository{st},
	}
}

// SetClock replaces the time source used for created and updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.now = now
}

// PutCustomer registers the customer summary shown on rentals.
func (s *Store) PutCustomer(c domain.Customer) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.customers[c.ID] = c
}

func cloneItem(it *domain.Item) *domain.Item {
	c := *it
	return &c
}

func cloneRental(rt *domain.Rental) *domain.Rental {
	c := *rt
	c.Lines = append([]domain.RentalLine(nil), rt.Lines...)
	return &c
}

func cloneSale(s *domain.Sale) *domain.Sale {
	c := *s
	c.Lines = append([]domain.SaleLine(nil), s.Lines...)
	return &c
}

func sortedIDs(units map[int64]int) []int64 {
	ids := make([]int64, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// stage copies the live items named in units so a multi item operation can
// be applied to the copies and committed only if every step succeeds.
func (s *state) stage(units map[int64]int, includeDeleted bool) (map[int64]*domain.Item, error) {
	staged := make(map[int64]*domain.Item, len(units))
	for _, id := range sortedIDs(units) {
		it, ok := s.items[id]
		if !ok || (!includeDeleted && it.DeletedOn != nil) {
			return nil, domain.NewNotFoundError("item", id)
		}
		staged[id] = cloneItem(it)
	}
	return staged, nil
}

func (s *state) commit(staged map[int64]*domain.Item, now time.Time) error {
	for _, it := range staged {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	for id, it := range staged {
		it.SyncStatus()
		it.UpdatedOn = now
		s.items[id] = it
	}
	return nil
}

func (s *state) record(m domain.StockMovement) {
	m.ID = s.id()
	s.movements = append(s.movements, m)
}

type settingsRepository struct{ st *state }

func (r *settingsRepository) Get(_ context.Context) (*domain.Settings, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.settings == nil {
		return nil, domain.NewNotFoundError("settings", 1)
	}
	c := *r.st.settings
	return &c, nil
}

func (r *settingsRepository) Upsert(_ context.Context, s *domain.Settings) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s.UpdatedOn = r.st.now()
	c := *s
	r.st.settings = &c
	return nil
}
