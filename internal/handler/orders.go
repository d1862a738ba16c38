package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, claims *auth.Claims, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	CompleteOrder(ctx context.Context, claims *auth.Claims, orderID uuid.UUID) (*database.Order, error)
	CancelOrder(ctx context.Context, claims *auth.Claims, orderID uuid.UUID, reason string) (*database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderTicket, error)
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemModifier, error)
	ListBillsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBill, error)
	ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Transaction, error)
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableNumber string `json:"table_number"`
	Guests      int32  `json:"guests"`
	CustomerID  string `json:"customer_id"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	Status        string     `json:"status"`
	KitchenStatus string     `json:"kitchen_status"`
	TableNumber   *string    `json:"table_number"`
	Guests        int32      `json:"guests"`
	CustomerID    *string    `json:"customer_id"`
	WaiterID      uuid.UUID  `json:"waiter_id"`
	WorkShiftID   *string    `json:"work_shift_id"`
	Total         string     `json:"total"`
	PaidAmount    string     `json:"paid_amount"`
	DiscountUsed  string     `json:"discount_used"`
	Balance       string     `json:"balance"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

type ticketResponse struct {
	ID          uuid.UUID  `json:"id"`
	Code        int32      `json:"code"`
	Status      string     `json:"status"`
	StationID   *string    `json:"station_id"`
	Printed     bool       `json:"printed"`
	FiredAt     *time.Time `json:"fired_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type itemResponse struct {
	ID           uuid.UUID              `json:"id"`
	TicketID     uuid.UUID              `json:"ticket_id"`
	BillID       *string                `json:"bill_id"`
	MenuItemID   uuid.UUID              `json:"menu_item_id"`
	VariantID    *string                `json:"variant_id"`
	Name         string                 `json:"name"`
	UnitPrice    string                 `json:"unit_price"`
	Quantity     int32                  `json:"quantity"`
	Amount       string                 `json:"amount"`
	Notes        *string                `json:"notes"`
	Status       string                 `json:"status"`
	CancelReason *string                `json:"cancel_reason"`
	Modifiers    []itemModifierResponse `json:"modifiers"`
}

type itemModifierResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	AdditionalPrice string    `json:"additional_price"`
}

type billResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Code           int32     `json:"code"`
	Printed        bool      `json:"printed"`
	DiscountID     *string   `json:"discount_id"`
	DiscountAmount string    `json:"discount_amount"`
	PaymentStatus  string    `json:"payment_status"`
	CreatedAt      time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID            uuid.UUID `json:"id"`
	BillID        uuid.UUID `json:"bill_id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PayedByName   *string   `json:"payed_by_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// orderDetailResponse expands an order with its tickets, items, bills and
// payments for the table view.
type orderDetailResponse struct {
	orderResponse
	Tickets  []ticketResponse      `json:"tickets"`
	Items    []itemResponse        `json:"items"`
	Bills    []billResponse        `json:"bills"`
	Payments []transactionResponse `json:"payments"`
}

type createOrderResponse struct {
	orderResponse
	Ticket ticketResponse `json:"ticket"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), claims, service.CreateOrderRequest{
		TableNumber: req.TableNumber,
		Guests:      req.Guests,
		CustomerID:  req.CustomerID,
	})
	if err != nil {
		respondServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		orderResponse: toOrderResponse(result.Order),
		Ticket:        toTicketResponse(result.Ticket),
	})
}

// List handles GET /orders with status/date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	params := database.ListOrdersParams{
		Status: r.URL.Query().Get("status"),
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}, expanded with tickets, items, bills and
// payments.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, "get order", err)
		return
	}

	tickets, err := h.store.ListTicketsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list tickets: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	items, err := h.store.ListItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	bills, err := h.store.ListBillsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list bills: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	payments, err := h.store.ListTransactionsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detail := orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Tickets:       make([]ticketResponse, len(tickets)),
		Items:         make([]itemResponse, len(items)),
		Bills:         make([]billResponse, len(bills)),
		Payments:      make([]transactionResponse, len(payments)),
	}
	for i, t := range tickets {
		detail.Tickets[i] = toTicketResponse(t)
	}
	for i, it := range items {
		mods, err := h.store.ListModifiersByOrderItem(r.Context(), it.ID)
		if err != nil {
			log.Printf("ERROR: list item modifiers: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		detail.Items[i] = toItemResponse(it, mods)
	}
	for i, b := range bills {
		detail.Bills[i] = toBillResponse(b)
	}
	for i, p := range payments {
		detail.Payments[i] = toTransactionResponse(p)
	}

	writeJSON(w, http.StatusOK, detail)
}

// Complete handles POST /orders/{id}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.svc.CompleteOrder(r.Context(), claims, orderID)
	if err != nil {
		respondServiceError(w, "complete order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), claims, orderID, req.Reason)
	if err != nil {
		respondServiceError(w, "cancel order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// --- Response builders ---

func toOrderResponse(o database.Order) orderResponse {
	total := database.NumericToDecimal(o.Total)
	paid := database.NumericToDecimal(o.PaidAmount)
	discount := database.NumericToDecimal(o.DiscountUsed)
	balance := total.Sub(paid).Sub(discount)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	resp := orderResponse{
		ID:            o.ID,
		Code:          o.Code,
		Status:        o.Status,
		KitchenStatus: o.KitchenStatus,
		Guests:        o.Guests,
		WaiterID:      o.WaiterID,
		Total:         total.StringFixed(2),
		PaidAmount:    paid.StringFixed(2),
		DiscountUsed:  discount.StringFixed(2),
		Balance:       balance.StringFixed(2),
		CreatedAt:     o.CreatedAt,
	}
	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.WorkShiftID.Valid {
		s := uuid.UUID(o.WorkShiftID.Bytes).String()
		resp.WorkShiftID = &s
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	return resp
}

func toTicketResponse(t database.OrderTicket) ticketResponse {
	resp := ticketResponse{
		ID:      t.ID,
		Code:    t.Code,
		Status:  t.Status,
		Printed: t.Printed,
	}
	if t.StationID.Valid {
		s := uuid.UUID(t.StationID.Bytes).String()
		resp.StationID = &s
	}
	if t.FiredAt.Valid {
		resp.FiredAt = &t.FiredAt.Time
	}
	if t.CompletedAt.Valid {
		resp.CompletedAt = &t.CompletedAt.Time
	}
	return resp
}

func toItemResponse(it database.OrderItem, mods []database.OrderItemModifier) itemResponse {
	resp := itemResponse{
		ID:         it.ID,
		TicketID:   it.TicketID,
		MenuItemID: it.MenuItemID,
		Name:       it.Name,
		UnitPrice:  numericToString(it.UnitPrice),
		Quantity:   it.Quantity,
		Amount:     numericToString(it.Amount),
		Status:     it.Status,
		Modifiers:  make([]itemModifierResponse, len(mods)),
	}
	if it.BillID.Valid {
		s := uuid.UUID(it.BillID.Bytes).String()
		resp.BillID = &s
	}
	if it.VariantID.Valid {
		s := uuid.UUID(it.VariantID.Bytes).String()
		resp.VariantID = &s
	}
	if it.Notes.Valid {
		resp.Notes = &it.Notes.String
	}
	if it.CancelReason.Valid {
		resp.CancelReason = &it.CancelReason.String
	}
	for i, m := range mods {
		resp.Modifiers[i] = itemModifierResponse{
			ID:              m.ID,
			Name:            m.Name,
			AdditionalPrice: numericToString(m.AdditionalPrice),
		}
	}
	return resp
}

func toBillResponse(b database.OrderBill) billResponse {
	resp := billResponse{
		ID:             b.ID,
		OrderID:        b.OrderID,
		Code:           b.Code,
		Printed:        b.Printed,
		DiscountAmount: numericToString(b.DiscountAmount),
		PaymentStatus:  b.PaymentStatus,
		CreatedAt:      b.CreatedAt,
	}
	if b.DiscountID.Valid {
		s := uuid.UUID(b.DiscountID.Bytes).String()
		resp.DiscountID = &s
	}
	return resp
}

func toTransactionResponse(t database.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		BillID:        t.BillID,
		Amount:        numericToString(t.Amount),
		PaymentMethod: t.PaymentMethod,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
	}
	if t.PayedByName.Valid {
		resp.PayedByName = &t.PayedByName.String
	}
	return resp
}

// numericToString renders a money column as a 2-dp string, treating NULL as
// zero.
func numericToString(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(2)
}
