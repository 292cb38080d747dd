// Package handlers provides HTTP handlers and middleware for the Penchant
// web chat and preference API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scrypster/penchant/internal/store"
)

// maxTopK caps the search result size to prevent resource exhaustion.
const maxTopK = 100

// ErrorResponse is the JSON shape for error replies.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIHandlers contains HTTP handlers for the preference REST API.
type APIHandlers struct {
	prefs store.PreferenceStore
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(prefs store.PreferenceStore) *APIHandlers {
	return &APIHandlers{prefs: prefs}
}

// ListPreferences handles GET /api/preferences - every stored preference in
// insertion order.
func (h *APIHandlers) ListPreferences(w http.ResponseWriter, r *http.Request) {
	records, err := h.prefs.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list preferences", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"preferences": records,
		"count":       len(records),
	})
}

// SearchPreferences handles GET /api/preferences/search?q=...&top_k=...&category=...
// similarity-ranked retrieval against the stored preferences.
func (h *APIHandlers) SearchPreferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}

	topK := parseInt(r.URL.Query().Get("top_k"), 5)
	if topK > maxTopK {
		topK = maxTopK
	}
	category := r.URL.Query().Get("category")

	records, err := h.prefs.Query(r.Context(), q, topK, category)
	if errors.Is(err, store.ErrEmptyStore) {
		respondError(w, http.StatusNotFound, "no preferences stored yet", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"preferences": records,
		"count":       len(records),
	})
}

// DeletePreference handles DELETE /api/preferences/{id} - retract one record.
func (h *APIHandlers) DeletePreference(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "preference ID is required", nil)
		return
	}

	n, err := h.prefs.Retract(r.Context(), store.MatchID(id))
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyStore) {
		respondError(w, http.StatusNotFound, "preference not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete preference", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

// RegisterRoutes wires the API handlers onto a mux.
func (h *APIHandlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/preferences", h.ListPreferences)
	mux.HandleFunc("GET /api/preferences/search", h.SearchPreferences)
	mux.HandleFunc("DELETE /api/preferences/{id}", h.DeletePreference)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing to do but log.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
