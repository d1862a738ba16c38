package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
)

// ShiftServicer defines the service methods needed by shift handlers.
// Satisfied by *service.ShiftService; narrow interface for testability.
type ShiftServicer interface {
	OpenWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error)
	CloseWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error)
	OpenShift(ctx context.Context, claims *auth.Claims, employeeID uuid.UUID) (*database.WorkShift, error)
	ReportDraft(ctx context.Context, shiftID uuid.UUID) (*service.ReportDraft, error)
	SubmitReport(ctx context.Context, claims *auth.Claims, req service.SubmitReportRequest) (*service.SubmitReportResult, error)
	DeleteShift(ctx context.Context, claims *auth.Claims, shiftID uuid.UUID) error
}

// ShiftStore defines the database reads needed by shift handlers.
type ShiftStore interface {
	GetOpenWorkPeriod(ctx context.Context) (database.WorkPeriod, error)
	GetWorkPeriod(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error)
	ListWorkShifts(ctx context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error)
	GetWorkShift(ctx context.Context, id uuid.UUID) (database.WorkShift, error)
	GetShiftReportByShift(ctx context.Context, workShiftID uuid.UUID) (database.ShiftReport, error)
	ListReportPayments(ctx context.Context, reportID uuid.UUID) ([]database.ShiftReportPayment, error)
	ListReportAllowances(ctx context.Context, reportID uuid.UUID) ([]database.ShiftReportAllowance, error)
	ListCreditsByReport(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error)
}

// ShiftHandler handles work period and work shift endpoints.
type ShiftHandler struct {
	svc   ShiftServicer
	store ShiftStore
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(svc ShiftServicer, store ShiftStore) *ShiftHandler {
	return &ShiftHandler{svc: svc, store: store}
}

// RegisterWorkPeriodRoutes registers work period endpoints, mounted under
// /work-periods.
func (h *ShiftHandler) RegisterWorkPeriodRoutes(r chi.Router) {
	r.Get("/current", h.CurrentWorkPeriod)
	r.Post("/open", h.OpenWorkPeriod)
	r.Post("/close", h.CloseWorkPeriod)
	r.Get("/{id}/shifts", h.ListShifts)
}

// RegisterRoutes registers shift endpoints on the given Chi router.
func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Post("/open", h.Open)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/report", h.ReportDraft)
	r.Put("/{id}/report", h.SubmitReport)
}

type openShiftRequest struct {
	EmployeeID string `json:"employee_id"`
}

type workPeriodResponse struct {
	ID        uuid.UUID  `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type shiftResponse struct {
	ID                uuid.UUID  `json:"id"`
	EmployeeID        uuid.UUID  `json:"employee_id"`
	WorkPeriodID      uuid.UUID  `json:"work_period_id"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	CustomGrossAmount *string    `json:"custom_gross_amount,omitempty"`
}

type cancelledItemResponse struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderCode    string    `json:"order_code"`
	ItemID       uuid.UUID `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Quantity     int32     `json:"quantity"`
	Amount       string    `json:"amount"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
}

type reportDraftResponse struct {
	Shift          shiftResponse           `json:"shift"`
	GrossSales     string                  `json:"gross_sales"`
	CustomGross    bool                    `json:"custom_gross"`
	PaymentTotals  map[string]string       `json:"payment_totals"`
	DiscountTotal  string                  `json:"discount_total"`
	CancelledItems []cancelledItemResponse `json:"cancelled_items"`
}

type reportPaymentInput struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

type reportAllowanceInput struct {
	EmployeeID string `json:"employee_id"`
	Amount     string `json:"amount"`
}

type reportCreditInput struct {
	ID          string `json:"id"`
	Deleted     bool   `json:"deleted"`
	CustomerID  string `json:"customer_id"`
	EmployeeID  string `json:"employee_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

type submitReportRequest struct {
	Payments     []reportPaymentInput   `json:"payments"`
	Allowances   []reportAllowanceInput `json:"allowances"`
	Credits      []reportCreditInput    `json:"credits"`
	ClosingNotes string                 `json:"closing_notes"`
}

type reportResponse struct {
	ID           uuid.UUID `json:"id"`
	WorkShiftID  uuid.UUID `json:"work_shift_id"`
	GrossAmount  string    `json:"gross_amount"`
	NetAmount    string    `json:"net_amount"`
	OwedAmount   string    `json:"owed_amount"`
	ClosingNotes *string   `json:"closing_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type submitReportResponse struct {
	Report reportResponse `json:"report"`
	Shift  shiftResponse  `json:"shift"`
}

type reportPaymentResponse struct {
	PaymentMethod string `json:"payment_method"`
	Amount        string `json:"amount"`
}

type reportAllowanceResponse struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	Amount     string    `json:"amount"`
	DailyLimit string    `json:"daily_limit"`
}

type reportCreditResponse struct {
	ID          uuid.UUID  `json:"id"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	EmployeeID  *uuid.UUID `json:"employee_id,omitempty"`
	Amount      string     `json:"amount"`
	Description *string    `json:"description,omitempty"`
	Reason      *string    `json:"reason,omitempty"`
	Status      string     `json:"status"`
}

type shiftDetailResponse struct {
	shiftResponse
	Report     *reportResponse           `json:"report,omitempty"`
	Payments   []reportPaymentResponse   `json:"payments,omitempty"`
	Allowances []reportAllowanceResponse `json:"allowances,omitempty"`
	Credits    []reportCreditResponse    `json:"credits,omitempty"`
}

func toWorkPeriodResponse(wp database.WorkPeriod) workPeriodResponse {
	resp := workPeriodResponse{ID: wp.ID, StartedAt: wp.StartedAt}
	if wp.EndedAt.Valid {
		resp.EndedAt = &wp.EndedAt.Time
	}
	return resp
}

func toShiftResponse(s database.WorkShift) shiftResponse {
	resp := shiftResponse{
		ID:           s.ID,
		EmployeeID:   s.EmployeeID,
		WorkPeriodID: s.WorkPeriodID,
		Status:       s.Status,
		StartedAt:    s.StartedAt,
	}
	if s.EndedAt.Valid {
		resp.EndedAt = &s.EndedAt.Time
	}
	if s.CustomGrossAmount.Valid {
		amount := numericToString(s.CustomGrossAmount)
		resp.CustomGrossAmount = &amount
	}
	return resp
}

func toReportResponse(rep database.ShiftReport) reportResponse {
	resp := reportResponse{
		ID:          rep.ID,
		WorkShiftID: rep.WorkShiftID,
		GrossAmount: numericToString(rep.GrossAmount),
		NetAmount:   numericToString(rep.NetAmount),
		OwedAmount:  numericToString(rep.OwedAmount),
		CreatedAt:   rep.CreatedAt,
	}
	if rep.ClosingNotes.Valid {
		resp.ClosingNotes = &rep.ClosingNotes.String
	}
	return resp
}

// CurrentWorkPeriod handles GET /work-periods/current.
func (h *ShiftHandler) CurrentWorkPeriod(w http.ResponseWriter, r *http.Request) {
	wp, err := h.store.GetOpenWorkPeriod(r.Context())
	if err != nil {
		respondServiceError(w, "get open work period", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkPeriodResponse(wp))
}

// OpenWorkPeriod handles POST /work-periods/open.
func (h *ShiftHandler) OpenWorkPeriod(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	wp, err := h.svc.OpenWorkPeriod(r.Context(), claims)
	if err != nil {
		respondServiceError(w, "open work period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkPeriodResponse(*wp))
}

// CloseWorkPeriod handles POST /work-periods/close.
func (h *ShiftHandler) CloseWorkPeriod(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	wp, err := h.svc.CloseWorkPeriod(r.Context(), claims)
	if err != nil {
		respondServiceError(w, "close work period", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkPeriodResponse(*wp))
}

// ListShifts handles GET /work-periods/{id}/shifts.
func (h *ShiftHandler) ListShifts(w http.ResponseWriter, r *http.Request) {
	workPeriodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid work period ID"})
		return
	}

	shifts, err := h.store.ListWorkShifts(r.Context(), workPeriodID)
	if err != nil {
		respondServiceError(w, "list shifts", err)
		return
	}

	resp := make([]shiftResponse, len(shifts))
	for i, s := range shifts {
		resp[i] = toShiftResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Open handles POST /shifts/open. The employee defaults to the caller;
// managers can open a shift for someone else by passing employee_id.
func (h *ShiftHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	// body is optional: an empty body opens a shift for the caller
	var req openShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	employeeID := claims.UserID
	if req.EmployeeID != "" {
		parsed, err := uuid.Parse(req.EmployeeID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid employee_id"})
			return
		}
		employeeID = parsed
	}

	shift, err := h.svc.OpenShift(r.Context(), claims, employeeID)
	if err != nil {
		respondServiceError(w, "open shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftResponse(*shift))
}

// Get handles GET /shifts/{id}: returns the shift with its report details
// when a report has been submitted.
func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	shift, err := h.store.GetWorkShift(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, "get shift", err)
		return
	}

	resp := shiftDetailResponse{shiftResponse: toShiftResponse(shift)}

	report, err := h.store.GetShiftReportByShift(r.Context(), shiftID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		respondServiceError(w, "get shift report", err)
		return
	}
	if err == nil {
		rep := toReportResponse(report)
		resp.Report = &rep

		payments, err := h.store.ListReportPayments(r.Context(), report.ID)
		if err != nil {
			respondServiceError(w, "get shift report payments", err)
			return
		}
		for _, p := range payments {
			resp.Payments = append(resp.Payments, reportPaymentResponse{
				PaymentMethod: p.PaymentMethod,
				Amount:        numericToString(p.Amount),
			})
		}

		allowances, err := h.store.ListReportAllowances(r.Context(), report.ID)
		if err != nil {
			respondServiceError(w, "get shift report allowances", err)
			return
		}
		for _, a := range allowances {
			resp.Allowances = append(resp.Allowances, reportAllowanceResponse{
				EmployeeID: a.EmployeeID,
				Amount:     numericToString(a.Amount),
				DailyLimit: numericToString(a.DailyLimit),
			})
		}

		credits, err := h.store.ListCreditsByReport(r.Context(), report.ID)
		if err != nil {
			respondServiceError(w, "get shift report credits", err)
			return
		}
		for _, c := range credits {
			resp.Credits = append(resp.Credits, toReportCreditResponse(c))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func toReportCreditResponse(c database.Credit) reportCreditResponse {
	resp := reportCreditResponse{
		ID:     c.ID,
		Amount: numericToString(c.Amount),
		Status: c.Status,
	}
	if c.CustomerID.Valid {
		u := uuid.UUID(c.CustomerID.Bytes)
		resp.CustomerID = &u
	}
	if c.EmployeeID.Valid {
		u := uuid.UUID(c.EmployeeID.Bytes)
		resp.EmployeeID = &u
	}
	if c.Description.Valid {
		resp.Description = &c.Description.String
	}
	if c.Reason.Valid {
		resp.Reason = &c.Reason.String
	}
	return resp
}

// ReportDraft handles GET /shifts/{id}/report: computes the expected totals
// for the close-out screen.
func (h *ShiftHandler) ReportDraft(w http.ResponseWriter, r *http.Request) {
	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	draft, err := h.svc.ReportDraft(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, "shift report draft", err)
		return
	}

	totals := make(map[string]string, len(draft.PaymentTotals))
	for method, amount := range draft.PaymentTotals {
		totals[method] = amount.StringFixed(2)
	}

	resp := reportDraftResponse{
		Shift:          toShiftResponse(draft.Shift),
		GrossSales:     draft.GrossSales.StringFixed(2),
		CustomGross:    draft.CustomGross,
		PaymentTotals:  totals,
		DiscountTotal:  draft.DiscountTotal.StringFixed(2),
		CancelledItems: make([]cancelledItemResponse, len(draft.CancelledItems)),
	}
	for i, item := range draft.CancelledItems {
		ci := cancelledItemResponse{
			OrderID:   item.OrderID,
			OrderCode: item.OrderCode,
			ItemID:    item.ItemID,
			ItemName:  item.ItemName,
			Quantity:  item.Quantity,
			Amount:    numericToString(item.Amount),
		}
		if item.CancelReason.Valid {
			ci.CancelReason = &item.CancelReason.String
		}
		resp.CancelledItems[i] = ci
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitReport handles PUT /shifts/{id}/report: records the close-out and
// closes the shift.
func (h *ShiftHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	var req submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.SubmitReportRequest{
		ShiftID:      shiftID,
		ClosingNotes: req.ClosingNotes,
	}
	for _, p := range req.Payments {
		svcReq.Payments = append(svcReq.Payments, service.ReportPaymentInput{
			Method: p.Method,
			Amount: p.Amount,
		})
	}
	for _, a := range req.Allowances {
		svcReq.Allowances = append(svcReq.Allowances, service.ReportAllowanceInput{
			EmployeeID: a.EmployeeID,
			Amount:     a.Amount,
		})
	}
	for _, c := range req.Credits {
		svcReq.Credits = append(svcReq.Credits, service.ReportCreditInput{
			ID:          c.ID,
			Deleted:     c.Deleted,
			CustomerID:  c.CustomerID,
			EmployeeID:  c.EmployeeID,
			Amount:      c.Amount,
			Description: c.Description,
			Reason:      c.Reason,
		})
	}

	result, err := h.svc.SubmitReport(r.Context(), claims, svcReq)
	if err != nil {
		respondServiceError(w, "submit shift report", err)
		return
	}

	writeJSON(w, http.StatusOK, submitReportResponse{
		Report: toReportResponse(result.Report),
		Shift:  toShiftResponse(result.Shift),
	})
}

// Delete handles DELETE /shifts/{id}.
func (h *ShiftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	shiftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift ID"})
		return
	}

	if err := h.svc.DeleteShift(r.Context(), claims, shiftID); err != nil {
		respondServiceError(w, "delete shift", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
