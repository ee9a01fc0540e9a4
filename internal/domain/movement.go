package domain

import "time"

type MovementKind string

const (
	MovementReserve         MovementKind = "reserve"
	MovementReleaseComplete MovementKind = "release_complete"
	MovementReleaseDamaged  MovementKind = "release_damaged"
	MovementReleaseLost     MovementKind = "release_lost"
	MovementSell            MovementKind = "sell"
	MovementReturnSale      MovementKind = "return_sale"
	MovementMaintenanceIn   MovementKind = "maintenance_in"
	MovementMaintenanceOut  MovementKind = "maintenance_out"
	MovementAdjust          MovementKind = "adjust"
)

// ReleaseMovement returns the movement kind recorded for a return outcome.
func ReleaseMovement(o ReturnOutcome) MovementKind {
	switch o {
	case OutcomeDamaged:
		return MovementReleaseDamaged
	case OutcomeLost:
		return MovementReleaseLost
	}
	return MovementReleaseComplete
}

// StockMovement is an audit record of one counter change on an item.
type StockMovement struct {
	ID        int64        `json:"id"`
	ItemID    int64        `json:"item_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int          `json:"quantity"`
	RentalID  *int64       `json:"rental_id,omitempty"`
	SaleID    *int64       `json:"sale_id,omitempty"`
	Note      string       `json:"note,omitempty"`
	CreatedOn time.Time    `json:"created_on"`
}
