package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
)

// ItemServicer defines the service methods needed by item handlers.
// Satisfied by *service.ItemService; narrow interface for testability.
type ItemServicer interface {
	AddItem(ctx context.Context, claims *auth.Claims, req service.AddItemRequest) (*service.ItemResult, error)
	UpdateItem(ctx context.Context, claims *auth.Claims, req service.UpdateItemRequest) (*service.ItemResult, error)
	CancelQuantity(ctx context.Context, claims *auth.Claims, req service.CancelItemRequest) (*database.OrderItem, error)
	DeleteItem(ctx context.Context, claims *auth.Claims, itemID uuid.UUID) error
}

// ItemHandler handles order line item endpoints.
type ItemHandler struct {
	svc ItemServicer
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(svc ItemServicer) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// RegisterOrderRoutes registers the item creation endpoint on the /orders
// subrouter.
func (h *ItemHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/items", h.Add)
}

// RegisterRoutes registers item endpoints on the given Chi router.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Put("/{id}", h.Update)
	r.Post("/{id}/cancel", h.Cancel)
	r.Delete("/{id}", h.Delete)
}

type addItemRequest struct {
	TicketID   string   `json:"ticket_id"`
	MenuItemID string   `json:"menu_item_id"`
	VariantID  string   `json:"variant_id"`
	Quantity   int32    `json:"quantity"`
	Notes      string   `json:"notes"`
	Modifiers  []string `json:"modifiers"`
}

type updateItemRequest struct {
	TicketID  string   `json:"ticket_id"`
	VariantID string   `json:"variant_id"`
	Quantity  int32    `json:"quantity"`
	Notes     *string  `json:"notes"`
	Modifiers []string `json:"modifiers"`
}

type cancelItemRequest struct {
	Quantity int32  `json:"quantity"`
	Reason   string `json:"reason"`
}

// Add handles POST /orders/{id}/items.
func (h *ItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ticketID, err := uuid.Parse(req.TicketID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket_id"})
		return
	}

	result, err := h.svc.AddItem(r.Context(), claims, service.AddItemRequest{
		OrderID:    orderID,
		TicketID:   ticketID,
		MenuItemID: req.MenuItemID,
		VariantID:  req.VariantID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
		Modifiers:  req.Modifiers,
	})
	if err != nil {
		respondServiceError(w, "add item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(result.Item, result.Modifiers))
}

// Update handles PUT /items/{id}.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.UpdateItem(r.Context(), claims, service.UpdateItemRequest{
		ItemID:    itemID,
		TicketID:  req.TicketID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
		Modifiers: req.Modifiers,
	})
	if err != nil {
		respondServiceError(w, "update item", err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(result.Item, result.Modifiers))
}

// Cancel handles POST /items/{id}/cancel: cancels part or all of the line's
// quantity with a mandatory reason.
func (h *ItemHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req cancelItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.CancelQuantity(r.Context(), claims, service.CancelItemRequest{
		ItemID:   itemID,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		respondServiceError(w, "cancel item", err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(*item, nil))
}

// Delete handles DELETE /items/{id}.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	if err := h.svc.DeleteItem(r.Context(), claims, itemID); err != nil {
		respondServiceError(w, "delete item", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
