package domain

import "time"

// Suit is a named outfit made of catalog items. It has no stock of its own;
// its totals are summed from the counters of its items.
type Suit struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Items       []Item     `json:"items"`
	Totals      SuitTotals `json:"totals"`
	CreatedOn   time.Time  `json:"created_on"`
}

type SuitTotals struct {
	Total         int `json:"total"`
	Available     int `json:"available"`
	Rented        int `json:"rented"`
	InMaintenance int `json:"in_maintenance"`
}

// ComputeTotals sums the counters of the suit's items.
func (s *Suit) ComputeTotals() {
	var t SuitTotals
	for _, it := range s.Items {
		t.Total += it.Total
		t.Available += it.Available
		t.Rented += it.Rented
		t.InMaintenance += it.InMaintenance
	}
	s.Totals = t
}

// ItemIDs returns the ids of the suit's items in order.
func (s *Suit) ItemIDs() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

type CreateSuitInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ItemIDs     []int64 `json:"items"`
}
