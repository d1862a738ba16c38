package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// StockStore defines the database methods needed by stock handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StockStore interface {
	CreateStockItem(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error)
	GetStockItem(ctx context.Context, id uuid.UUID) (database.StockItem, error)
	ListStockItems(ctx context.Context) ([]database.StockItem, error)
	AdjustStockItem(ctx context.Context, id uuid.UUID, delta pgtype.Numeric) (database.StockItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	ListStockMovements(ctx context.Context, stockItemID uuid.UUID) ([]database.StockMovement, error)
}

// StockHandler handles stock item endpoints.
type StockHandler struct {
	store StockStore
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(store StockStore) *StockHandler {
	return &StockHandler{store: store}
}

// RegisterRoutes registers stock endpoints on the given Chi router.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/adjust", h.Adjust)
	r.Get("/{id}/movements", h.ListMovements)
}

type createStockItemRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type adjustStockRequest struct {
	Delta  string `json:"delta"`
	Reason string `json:"reason"`
}

type stockItemResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Quantity  string    `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type stockMovementResponse struct {
	ID          uuid.UUID  `json:"id"`
	StockItemID uuid.UUID  `json:"stock_item_id"`
	Delta       string     `json:"delta"`
	Reason      string     `json:"reason"`
	OrderItemID *uuid.UUID `json:"order_item_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toStockItemResponse(s database.StockItem) stockItemResponse {
	return stockItemResponse{
		ID:        s.ID,
		Name:      s.Name,
		Unit:      s.Unit,
		Quantity:  numericToString(s.Quantity),
		CreatedAt: s.CreatedAt,
	}
}

func toStockMovementResponse(m database.StockMovement) stockMovementResponse {
	resp := stockMovementResponse{
		ID:          m.ID,
		StockItemID: m.StockItemID,
		Delta:       numericToString(m.Delta),
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt,
	}
	if m.OrderItemID.Valid {
		u := uuid.UUID(m.OrderItemID.Bytes)
		resp.OrderItemID = &u
	}
	return resp
}

// List handles GET /stock-items.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListStockItems(r.Context())
	if err != nil {
		respondServiceError(w, "list stock items", err)
		return
	}

	resp := make([]stockItemResponse, len(items))
	for i, s := range items {
		resp[i] = toStockItemResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /stock-items.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStockItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}
	quantity, err := parseMoney(req.Quantity)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}

	item, err := h.store.CreateStockItem(r.Context(), database.CreateStockItemParams{
		Name:     req.Name,
		Unit:     req.Unit,
		Quantity: quantity,
	})
	if err != nil {
		respondServiceError(w, "create stock item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStockItemResponse(item))
}

// Get handles GET /stock-items/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	item, err := h.store.GetStockItem(r.Context(), id)
	if err != nil {
		respondServiceError(w, "get stock item", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockItemResponse(item))
}

// Adjust handles POST /stock-items/{id}/adjust: applies a signed quantity
// delta and records the movement.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil || delta.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delta"})
		return
	}
	deltaNum := database.DecimalToNumeric(delta)

	item, err := h.store.AdjustStockItem(r.Context(), id, deltaNum)
	if err != nil {
		respondServiceError(w, "adjust stock item", err)
		return
	}
	if _, err := h.store.CreateStockMovement(r.Context(), database.CreateStockMovementParams{
		StockItemID: id,
		Delta:       deltaNum,
		Reason:      req.Reason,
	}); err != nil {
		respondServiceError(w, "record stock movement", err)
		return
	}

	writeJSON(w, http.StatusOK, toStockItemResponse(item))
}

// ListMovements handles GET /stock-items/{id}/movements.
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	movements, err := h.store.ListStockMovements(r.Context(), id)
	if err != nil {
		respondServiceError(w, "list stock movements", err)
		return
	}

	resp := make([]stockMovementResponse, len(movements))
	for i, m := range movements {
		resp[i] = toStockMovementResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}
