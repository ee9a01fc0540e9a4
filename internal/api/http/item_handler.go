package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/service"
	"penguin-ternos-backend/internal/utils"
)

type ItemHandler struct {
	svc service.InventoryService
}

func NewItemHandler(svc service.InventoryService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

func writeItems(w http.ResponseWriter, items []domain.Item) {
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeItems(w, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := h.svc.CreateItem(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// Update answers 204 when the new quantity removed the item.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.UpdateItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := h.svc.UpdateItem(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if it == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.svc.CheckAvailability(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": id, "available": n})
}

func (h *ItemHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.MaintenanceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := h.svc.ApplyMaintenance(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type statusRequest struct {
	Status      string  `json:"status"`
	AvailableAt *string `json:"available_at"`
}

func (h *ItemHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := domain.StatusInput{Status: req.Status}
	if req.AvailableAt != nil && *req.AvailableAt != "" {
		at, err := utils.ParseDateTime(*req.AvailableAt)
		if err != nil {
			writeError(w, r, domain.NewValidationError("available_at", "%v", err))
			return
		}
		in.AvailableAt = &at
	}
	it, err := h.svc.SetStatus(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ItemHandler) ByCounter(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByCounter(r.Context(), mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeItems(w, items)
}

func (h *ItemHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	movements, err := h.svc.ListMovements(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if movements == nil {
		movements = []domain.StockMovement{}
	}
	writeJSON(w, http.StatusOK, movements)
}
