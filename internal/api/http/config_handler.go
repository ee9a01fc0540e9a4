package http

import (
	"net/http"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/service"
)

type ConfigHandler struct {
	svc service.SettingsService
}

func NewConfigHandler(svc service.SettingsService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update domain.SettingsUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := h.svc.UpdateSettings(r.Context(), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
