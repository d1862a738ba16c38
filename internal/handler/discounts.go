package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

// DiscountStore defines the database methods needed by discount handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DiscountStore interface {
	CreateDiscount(ctx context.Context, arg database.CreateDiscountParams) (database.Discount, error)
	GetDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error)
	ListDiscounts(ctx context.Context) ([]database.Discount, error)
}

// DiscountHandler handles discount catalog endpoints.
type DiscountHandler struct {
	store DiscountStore
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(store DiscountStore) *DiscountHandler {
	return &DiscountHandler{store: store}
}

// RegisterRoutes registers discount endpoints on the given Chi router.
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

type createDiscountRequest struct {
	Name         string `json:"name"`
	DiscountType string `json:"discount_type"`
	Value        string `json:"value"`
}

type discountResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	DiscountType string    `json:"discount_type"`
	Value        string    `json:"value"`
	Active       bool      `json:"active"`
}

func toDiscountResponse(d database.Discount) discountResponse {
	return discountResponse{
		ID:           d.ID,
		Name:         d.Name,
		DiscountType: d.DiscountType,
		Value:        numericToString(d.Value),
		Active:       d.Active,
	}
}

// List handles GET /discounts.
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.store.ListDiscounts(r.Context())
	if err != nil {
		log.Printf("ERROR: list discounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]discountResponse, len(discounts))
	for i, d := range discounts {
		resp[i] = toDiscountResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /discounts.
func (h *DiscountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.DiscountType != enum.DiscountTypePercentage && req.DiscountType != enum.DiscountTypeFixed {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount_type"})
		return
	}
	value, err := parseMoney(req.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid value"})
		return
	}

	discount, err := h.store.CreateDiscount(r.Context(), database.CreateDiscountParams{
		Name:         req.Name,
		DiscountType: req.DiscountType,
		Value:        value,
	})
	if err != nil {
		log.Printf("ERROR: create discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toDiscountResponse(discount))
}

// Get handles GET /discounts/{id}.
func (h *DiscountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount ID"})
		return
	}

	discount, err := h.store.GetDiscount(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		log.Printf("ERROR: get discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toDiscountResponse(discount))
}
