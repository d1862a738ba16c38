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

// BillServicer defines the service methods needed by bill handlers.
// Satisfied by *service.BillService; narrow interface for testability.
type BillServicer interface {
	CreateBill(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (*database.OrderBill, error)
	AssignItems(ctx context.Context, billID uuid.UUID, itemIDs []uuid.UUID) error
	MoveItems(ctx context.Context, sourceBillID, destBillID uuid.UUID, itemIDs []uuid.UUID) error
	DeleteBill(ctx context.Context, billID uuid.UUID) error
	ApplyDiscount(ctx context.Context, claims *auth.Claims, billID uuid.UUID, discountID string) (*database.OrderBill, error)
	Pay(ctx context.Context, claims *auth.Claims, req service.PayBillRequest) (*service.PayBillResult, error)
	PrintBill(ctx context.Context, billID uuid.UUID) (*database.PrintJob, error)
}

// BillStore defines the database reads needed by bill handlers.
type BillStore interface {
	GetBill(ctx context.Context, id uuid.UUID) (database.OrderBill, error)
	ListItemsByBill(ctx context.Context, billID uuid.UUID) ([]database.OrderItem, error)
	ListTransactionsByBill(ctx context.Context, billID uuid.UUID) ([]database.Transaction, error)
}

// BillHandler handles bill splitting and settlement endpoints.
type BillHandler struct {
	svc   BillServicer
	store BillStore
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillServicer, store BillStore) *BillHandler {
	return &BillHandler{svc: svc, store: store}
}

// RegisterOrderRoutes registers the bill creation endpoint on the /orders
// subrouter.
func (h *BillHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/bills", h.Create)
}

// RegisterRoutes registers bill endpoints on the given Chi router.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/items", h.AssignItems)
	r.Post("/{id}/move-items", h.MoveItems)
	r.Post("/{id}/discount", h.ApplyDiscount)
	r.Post("/{id}/pay", h.Pay)
	r.Post("/{id}/print", h.Print)
}

type createBillRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type assignItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type moveItemsRequest struct {
	DestBillID string   `json:"dest_bill_id"`
	ItemIDs    []string `json:"item_ids"`
}

type applyDiscountRequest struct {
	DiscountID string `json:"discount_id"`
}

type payBillRequest struct {
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	CustomerID  string `json:"customer_id"`
	PayedByName string `json:"payed_by_name"`
}

type payBillResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Bill        billResponse        `json:"bill"`
	Clamped     bool                `json:"clamped"`
}

type billDetailResponse struct {
	billResponse
	Items    []itemResponse        `json:"items"`
	Payments []transactionResponse `json:"payments"`
}

func parseUUIDList(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ids))
	for i, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// Create handles POST /orders/{id}/bills: splits the given items onto a new
// bill.
func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	itemIDs, err := parseUUIDList(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	bill, err := h.svc.CreateBill(r.Context(), orderID, itemIDs)
	if err != nil {
		respondServiceError(w, "create bill", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBillResponse(*bill))
}

// Get handles GET /bills/{id}: returns the bill with its items and payments.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	bill, err := h.store.GetBill(r.Context(), billID)
	if err != nil {
		respondServiceError(w, "get bill", err)
		return
	}
	items, err := h.store.ListItemsByBill(r.Context(), billID)
	if err != nil {
		respondServiceError(w, "get bill items", err)
		return
	}
	transactions, err := h.store.ListTransactionsByBill(r.Context(), billID)
	if err != nil {
		respondServiceError(w, "get bill payments", err)
		return
	}

	resp := billDetailResponse{
		billResponse: toBillResponse(bill),
		Items:        make([]itemResponse, len(items)),
		Payments:     make([]transactionResponse, len(transactions)),
	}
	for i, it := range items {
		resp.Items[i] = toItemResponse(it, nil)
	}
	for i, tx := range transactions {
		resp.Payments[i] = toTransactionResponse(tx)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssignItems handles POST /bills/{id}/items.
func (h *BillHandler) AssignItems(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req assignItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	itemIDs, err := parseUUIDList(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	if err := h.svc.AssignItems(r.Context(), billID, itemIDs); err != nil {
		respondServiceError(w, "assign bill items", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MoveItems handles POST /bills/{id}/move-items: moves items from this bill
// onto another bill of the same order.
func (h *BillHandler) MoveItems(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req moveItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	destBillID, err := uuid.Parse(req.DestBillID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dest_bill_id"})
		return
	}
	itemIDs, err := parseUUIDList(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	if err := h.svc.MoveItems(r.Context(), billID, destBillID, itemIDs); err != nil {
		respondServiceError(w, "move bill items", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /bills/{id}.
func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	if err := h.svc.DeleteBill(r.Context(), billID); err != nil {
		respondServiceError(w, "delete bill", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyDiscount handles POST /bills/{id}/discount. An empty discount_id
// clears the bill's discount.
func (h *BillHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	bill, err := h.svc.ApplyDiscount(r.Context(), claims, billID, req.DiscountID)
	if err != nil {
		respondServiceError(w, "apply discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toBillResponse(*bill))
}

// Pay handles POST /bills/{id}/pay.
func (h *BillHandler) Pay(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req payBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Pay(r.Context(), claims, service.PayBillRequest{
		BillID:      billID,
		Amount:      req.Amount,
		Method:      req.Method,
		CustomerID:  req.CustomerID,
		PayedByName: req.PayedByName,
	})
	if err != nil {
		respondServiceError(w, "pay bill", err)
		return
	}

	writeJSON(w, http.StatusCreated, payBillResponse{
		Transaction: toTransactionResponse(result.Transaction),
		Bill:        toBillResponse(result.Bill),
		Clamped:     result.Clamped,
	})
}

// Print handles POST /bills/{id}/print: queues a receipt print job.
func (h *BillHandler) Print(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	job, err := h.svc.PrintBill(r.Context(), billID)
	if err != nil {
		respondServiceError(w, "print bill", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPrintJobResponse(*job))
}
