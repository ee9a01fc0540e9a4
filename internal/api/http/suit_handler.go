package http

import (
	"net/http"

	"penguin-ternos-backend/internal/domain"
)

func (h *ItemHandler) ListSuits(w http.ResponseWriter, r *http.Request) {
	suits, err := h.svc.ListSuits(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if suits == nil {
		suits = []domain.Suit{}
	}
	writeJSON(w, http.StatusOK, suits)
}

func (h *ItemHandler) GetSuit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	suit, err := h.svc.GetSuit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suit)
}

func (h *ItemHandler) CreateSuit(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateSuitInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	suit, err := h.svc.CreateSuit(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, suit)
}
