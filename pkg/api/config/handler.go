package config

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"portfolio_ingest/pkg/core/ingest"
	"portfolio_ingest/pkg/core/normalize"
)

// Response describes what the running service accepts and recognises.
type Response struct {
	SupportedFormats    []string  `json:"supportedFormats"`
	ProjectVocabulary   []string  `json:"projectVocabulary"`
	FinancialVocabulary []string  `json:"financialVocabulary"`
	Countries           []string  `json:"countries"`
	DefaultLocation     []float64 `json:"defaultLocation"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Tables *normalize.Tables
}

// NewHandler creates a new config handler
func NewHandler(tables *normalize.Tables) *Handler {
	return &Handler{
		Tables: tables,
	}
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.HandleConfig)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	countries := make([]string, 0, len(h.Tables.Location.Centroids))
	for c := range h.Tables.Location.Centroids {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	resp := Response{
		SupportedFormats:    ingest.SupportedFormats,
		ProjectVocabulary:   h.Tables.ProjectVocabulary,
		FinancialVocabulary: h.Tables.FinancialVocabulary,
		Countries:           countries,
		DefaultLocation:     h.Tables.Location.Default,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
