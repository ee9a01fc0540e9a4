package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/service"
	"penguin-ternos-backend/internal/utils"
)

type RentalHandler struct {
	svc service.RentalService
}

func NewRentalHandler(svc service.RentalService) *RentalHandler {
	return &RentalHandler{svc: svc}
}

type createRentalRequest struct {
	CustomerID    *int64                     `json:"customer_id"`
	Items         []domain.RentalItemRequest `json:"items"`
	StartDate     string                     `json:"start_date"`
	EndDate       string                     `json:"end_date"`
	RentalAmount  decimal.Decimal            `json:"rental_amount"`
	Deposit       *decimal.Decimal           `json:"deposit"`
	PaymentMethod string                     `json:"payment_method"`
	Notes         string                     `json:"notes"`
}

func (req createRentalRequest) toInput() (domain.CreateRentalInput, error) {
	in := domain.CreateRentalInput{
		CustomerID:    req.CustomerID,
		Items:         req.Items,
		RentalAmount:  req.RentalAmount,
		Deposit:       req.Deposit,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	var err error
	if req.StartDate != "" {
		if in.StartDate, err = utils.ParseDateTime(req.StartDate); err != nil {
			return in, domain.NewValidationError("start_date", "%v", err)
		}
	}
	if req.EndDate == "" {
		return in, domain.NewValidationError("end_date", "is required")
	}
	if in.EndDate, err = utils.ParseDateTime(req.EndDate); err != nil {
		return in, domain.NewValidationError("end_date", "%v", err)
	}
	return in, nil
}

type returnRentalRequest struct {
	Lines           []domain.LineReturn `json:"lines"`
	RetainDeposit   bool                `json:"retain_deposit"`
	RetentionReason string              `json:"retention_reason"`
}

func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.svc.CreateRental(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

// Return always answers 200 with {rental, warning?}.
func (h *RentalHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req returnRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.ReturnRental(r.Context(), id, domain.ReturnRentalInput{
		Lines:           req.Lines,
		RetainDeposit:   req.RetainDeposit,
		RetentionReason: req.RetentionReason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.svc.GetRental(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *RentalHandler) list(fn func(r *http.Request) ([]domain.Rental, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rentals, err := fn(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if rentals == nil {
			rentals = []domain.Rental{}
		}
		writeJSON(w, http.StatusOK, rentals)
	}
}

func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(func(r *http.Request) ([]domain.Rental, error) { return h.svc.ListRentals(r.Context()) })(w, r)
}

func (h *RentalHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(func(r *http.Request) ([]domain.Rental, error) { return h.svc.ListActive(r.Context()) })(w, r)
}

func (h *RentalHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	h.list(func(r *http.Request) ([]domain.Rental, error) { return h.svc.ListHistory(r.Context()) })(w, r)
}

type overdueRental struct {
	domain.Rental
	OverdueDays int `json:"overdue_days"`
}

// ListOverdue adds the started days past the end date to each active rental.
func (h *RentalHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	rentals, err := h.svc.ListOverdue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := time.Now().UTC()
	out := make([]overdueRental, 0, len(rentals))
	for _, rt := range rentals {
		out = append(out, overdueRental{Rental: rt, OverdueDays: utils.OverdueDays(rt.EndDate, now)})
	}
	writeJSON(w, http.StatusOK, out)
}
