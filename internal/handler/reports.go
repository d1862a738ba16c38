package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
	ListActivityLogs(ctx context.Context, arg database.ListActivityLogsParams) ([]database.ActivityLog, error)
}

// ReportHandler handles sales reporting and audit log endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/payment-summary", h.PaymentSummary)
}

// RegisterActivityLogRoutes registers the audit log endpoint, mounted under
// /activity-logs.
func (h *ReportHandler) RegisterActivityLogRoutes(r chi.Router) {
	r.Get("/", h.ActivityLogs)
}

type dailySalesResponse struct {
	SaleDate      string `json:"sale_date"`
	OrderCount    int64  `json:"order_count"`
	TotalSales    string `json:"total_sales"`
	TotalDiscount string `json:"total_discount"`
	TotalPaid     string `json:"total_paid"`
}

type paymentSummaryResponse struct {
	PaymentMethod    string `json:"payment_method"`
	TransactionCount int64  `json:"transaction_count"`
	TotalAmount      string `json:"total_amount"`
}

type activityLogResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  uuid.UUID `json:"entity_id"`
	Detail    *string   `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// parseDateRange reads start_date and end_date query params in YYYY-MM-DD
// form. Defaults to the last 30 days when absent; the end date is exclusive.
func parseDateRange(r *http.Request) (pgtype.Timestamptz, pgtype.Timestamptz, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)
	end := now

	if s := r.URL.Query().Get("start_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return pgtype.Timestamptz{}, pgtype.Timestamptz{}, err
		}
		start = parsed
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return pgtype.Timestamptz{}, pgtype.Timestamptz{}, err
		}
		end = parsed.AddDate(0, 0, 1)
	}

	return pgtype.Timestamptz{Time: start, Valid: true},
		pgtype.Timestamptz{Time: end, Valid: true}, nil
}

// DailySales handles GET /reports/daily-sales.
func (h *ReportHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		respondServiceError(w, "daily sales report", err)
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailySalesResponse{
			SaleDate:      row.SaleDate.Time.Format("2006-01-02"),
			OrderCount:    row.OrderCount,
			TotalSales:    numericToString(row.TotalSales),
			TotalDiscount: numericToString(row.TotalDiscount),
			TotalPaid:     numericToString(row.TotalPaid),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PaymentSummary handles GET /reports/payment-summary.
func (h *ReportHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), database.GetPaymentSummaryParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		respondServiceError(w, "payment summary report", err)
		return
	}

	resp := make([]paymentSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = paymentSummaryResponse{
			PaymentMethod:    row.PaymentMethod,
			TransactionCount: row.TransactionCount,
			TotalAmount:      numericToString(row.TotalAmount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ActivityLogs handles GET /activity-logs.
func (h *ReportHandler) ActivityLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	logs, err := h.store.ListActivityLogs(r.Context(), database.ListActivityLogsParams{
		Entity: r.URL.Query().Get("entity"),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		respondServiceError(w, "list activity logs", err)
		return
	}

	resp := make([]activityLogResponse, len(logs))
	for i, l := range logs {
		entry := activityLogResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Entity:    l.Entity,
			EntityID:  l.EntityID,
			CreatedAt: l.CreatedAt,
		}
		if l.Detail.Valid {
			entry.Detail = &l.Detail.String
		}
		resp[i] = entry
	}
	writeJSON(w, http.StatusOK, resp)
}
