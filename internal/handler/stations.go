package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
)

// StationStore defines the database methods needed by station handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StationStore interface {
	CreateStation(ctx context.Context, arg database.CreateStationParams) (database.Station, error)
	GetStation(ctx context.Context, id uuid.UUID) (database.Station, error)
	ListStations(ctx context.Context) ([]database.Station, error)
	UpdateStation(ctx context.Context, arg database.UpdateStationParams) (database.Station, error)
}

// StationHandler handles kitchen station endpoints.
type StationHandler struct {
	store StationStore
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(store StationStore) *StationHandler {
	return &StationHandler{store: store}
}

// RegisterRoutes registers station endpoints on the given Chi router.
func (h *StationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
}

type stationRequest struct {
	Name                string `json:"name"`
	AutoCompleteTickets bool   `json:"auto_complete_tickets"`
}

type stationResponse struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	AutoCompleteTickets bool      `json:"auto_complete_tickets"`
	CreatedAt           time.Time `json:"created_at"`
}

func toStationResponse(s database.Station) stationResponse {
	return stationResponse{
		ID:                  s.ID,
		Name:                s.Name,
		AutoCompleteTickets: s.AutoCompleteTickets,
		CreatedAt:           s.CreatedAt,
	}
}

// List handles GET /stations.
func (h *StationHandler) List(w http.ResponseWriter, r *http.Request) {
	stations, err := h.store.ListStations(r.Context())
	if err != nil {
		log.Printf("ERROR: list stations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stationResponse, len(stations))
	for i, s := range stations {
		resp[i] = toStationResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /stations.
func (h *StationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	station, err := h.store.CreateStation(r.Context(), database.CreateStationParams{
		Name:                req.Name,
		AutoCompleteTickets: req.AutoCompleteTickets,
	})
	if err != nil {
		log.Printf("ERROR: create station: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toStationResponse(station))
}

// Get handles GET /stations/{id}.
func (h *StationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station ID"})
		return
	}

	station, err := h.store.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
			return
		}
		log.Printf("ERROR: get station: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStationResponse(station))
}

// Update handles PUT /stations/{id}.
func (h *StationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station ID"})
		return
	}

	var req stationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	station, err := h.store.UpdateStation(r.Context(), database.UpdateStationParams{
		ID:                  id,
		Name:                req.Name,
		AutoCompleteTickets: req.AutoCompleteTickets,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
			return
		}
		log.Printf("ERROR: update station: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStationResponse(station))
}
