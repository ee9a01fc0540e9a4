package memory

import (
	"context"
	"sort"

	"penguin-ternos-backend/internal/domain"
)

type suitRecord struct {
	suit    domain.Suit
	itemIDs []int64
}

type suitRepository struct{ st *state }

func (r *suitRepository) Create(_ context.Context, suit *domain.Suit) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	ids := suit.ItemIDs()
	for _, id := range ids {
		if _, ok := r.st.items[id]; !ok {
			return domain.NewNotFoundError("item", id)
		}
	}
	suit.ID = r.st.id()
	if suit.CreatedOn.IsZero() {
		suit.CreatedOn = r.st.now()
	}
	rec := &suitRecord{suit: *suit, itemIDs: ids}
	rec.suit.Items = nil
	r.st.suits[suit.ID] = rec
	return nil
}

// assemble copies the suit with the live items it references.
func (s *state) assemble(rec *suitRecord) domain.Suit {
	out := rec.suit
	out.Items = []domain.Item{}
	for _, id := range rec.itemIDs {
		if it, ok := s.items[id]; ok && it.DeletedOn == nil {
			out.Items = append(out.Items, *it)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool {
		if out.Items[i].Name != out.Items[j].Name {
			return out.Items[i].Name < out.Items[j].Name
		}
		return out.Items[i].ID < out.Items[j].ID
	})
	out.ComputeTotals()
	return out
}

func (r *suitRepository) GetByID(_ context.Context, id int64) (*domain.Suit, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.suits[id]
	if !ok {
		return nil, domain.NewNotFoundError("suit", id)
	}
	s := r.st.assemble(rec)
	return &s, nil
}

func (r *suitRepository) List(_ context.Context) ([]domain.Suit, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]domain.Suit, 0, len(r.st.suits))
	for _, rec := range r.st.suits {
		out = append(out, r.st.assemble(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
