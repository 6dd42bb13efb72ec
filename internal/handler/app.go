package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rbaird/canteen/internal/app"
	"github.com/rbaird/canteen/internal/model"
)

// AppHandler exposes the orchestrator's state and operations as the JSON API
// the frontend consumes. It is the only write path into the orchestrator.
type AppHandler struct {
	orch   *app.Orchestrator
	logger *slog.Logger
}

func NewAppHandler(orch *app.Orchestrator, logger *slog.Logger) *AppHandler {
	return &AppHandler{orch: orch, logger: logger}
}

// State returns the full state snapshot.
func (h *AppHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

// Buildings returns the building list for the selected city.
func (h *AppHandler) Buildings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Snapshot().Buildings)
}

// Refresh re-runs the top-level buildings fetch. This is also the retry
// action behind the error banner.
func (h *AppHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.orch.RefreshBuildings(r.Context())
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

// ToggleBuilding flips one building in or out of the selection.
func (h *AppHandler) ToggleBuilding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "building id is required"})
		return
	}

	h.orch.ToggleSelection(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"selected_building_ids": h.orch.Snapshot().SelectedBuildingIDs,
	})
}

// Search runs a menu item search. An empty query clears the stored results.
func (h *AppHandler) Search(w http.ResponseWriter, r *http.Request) {
	results := h.orch.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []model.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// UpdateFilters updates the ignored-brand list and/or the minimum price
// floor. Fields left out of the request body are unchanged.
func (h *AppHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IgnoredBrands *[]string `json:"ignored_brands"`
		MinPrice      *float64  `json:"min_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.MinPrice != nil && *req.MinPrice < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min_price must not be negative"})
		return
	}

	if req.IgnoredBrands != nil {
		brands := make([]string, 0, len(*req.IgnoredBrands))
		for _, b := range *req.IgnoredBrands {
			if b = strings.TrimSpace(b); b != "" {
				brands = append(brands, b)
			}
		}
		h.orch.SetIgnoredBrands(r.Context(), brands)
	}
	if req.MinPrice != nil {
		h.orch.SetMinPrice(*req.MinPrice)
	}

	snap := h.orch.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ignored_brands": snap.IgnoredBrands,
		"min_price":      snap.MinPrice,
	})
}

// UpdateCity switches the selected city. Switching is a hard reset of all
// city-scoped state.
func (h *AppHandler) UpdateCity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.City = strings.TrimSpace(req.City)
	if req.City == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "city is required"})
		return
	}

	h.orch.SetSelectedCity(r.Context(), req.City)
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

// CacheStatus reports whether the latest menu batch was served from cache and
// how old that cached data is.
func (h *AppHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.orch.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"is_showing_cached_data": snap.IsShowingCachedData,
		"cache_date":             snap.CacheDate,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response", "error", err)
	}
}
