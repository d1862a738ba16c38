package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/handler"
	mw "github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type mockShiftService struct {
	openWorkPeriodFn  func(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error)
	closeWorkPeriodFn func(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error)
	openShiftFn       func(ctx context.Context, claims *auth.Claims, employeeID uuid.UUID) (*database.WorkShift, error)
	reportDraftFn     func(ctx context.Context, shiftID uuid.UUID) (*service.ReportDraft, error)
	submitReportFn    func(ctx context.Context, claims *auth.Claims, req service.SubmitReportRequest) (*service.SubmitReportResult, error)
	deleteShiftFn     func(ctx context.Context, claims *auth.Claims, shiftID uuid.UUID) error
}

func (m *mockShiftService) OpenWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error) {
	return m.openWorkPeriodFn(ctx, claims)
}

func (m *mockShiftService) CloseWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error) {
	return m.closeWorkPeriodFn(ctx, claims)
}

func (m *mockShiftService) OpenShift(ctx context.Context, claims *auth.Claims, employeeID uuid.UUID) (*database.WorkShift, error) {
	return m.openShiftFn(ctx, claims, employeeID)
}

func (m *mockShiftService) ReportDraft(ctx context.Context, shiftID uuid.UUID) (*service.ReportDraft, error) {
	return m.reportDraftFn(ctx, shiftID)
}

func (m *mockShiftService) SubmitReport(ctx context.Context, claims *auth.Claims, req service.SubmitReportRequest) (*service.SubmitReportResult, error) {
	return m.submitReportFn(ctx, claims, req)
}

func (m *mockShiftService) DeleteShift(ctx context.Context, claims *auth.Claims, shiftID uuid.UUID) error {
	return m.deleteShiftFn(ctx, claims, shiftID)
}

type mockShiftStore struct {
	workPeriods map[uuid.UUID]database.WorkPeriod
	shifts      map[uuid.UUID]database.WorkShift
	reports     map[uuid.UUID]database.ShiftReport // keyed by work shift ID
}

func newMockShiftStore() *mockShiftStore {
	return &mockShiftStore{
		workPeriods: make(map[uuid.UUID]database.WorkPeriod),
		shifts:      make(map[uuid.UUID]database.WorkShift),
		reports:     make(map[uuid.UUID]database.ShiftReport),
	}
}

func (m *mockShiftStore) GetOpenWorkPeriod(_ context.Context) (database.WorkPeriod, error) {
	for _, wp := range m.workPeriods {
		if !wp.EndedAt.Valid {
			return wp, nil
		}
	}
	return database.WorkPeriod{}, pgx.ErrNoRows
}

func (m *mockShiftStore) GetWorkPeriod(_ context.Context, id uuid.UUID) (database.WorkPeriod, error) {
	wp, ok := m.workPeriods[id]
	if !ok {
		return database.WorkPeriod{}, pgx.ErrNoRows
	}
	return wp, nil
}

func (m *mockShiftStore) ListWorkShifts(_ context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error) {
	var result []database.WorkShift
	for _, s := range m.shifts {
		if s.WorkPeriodID == workPeriodID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockShiftStore) GetWorkShift(_ context.Context, id uuid.UUID) (database.WorkShift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return database.WorkShift{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockShiftStore) GetShiftReportByShift(_ context.Context, workShiftID uuid.UUID) (database.ShiftReport, error) {
	r, ok := m.reports[workShiftID]
	if !ok {
		return database.ShiftReport{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockShiftStore) ListReportPayments(_ context.Context, _ uuid.UUID) ([]database.ShiftReportPayment, error) {
	return nil, nil
}

func (m *mockShiftStore) ListReportAllowances(_ context.Context, _ uuid.UUID) ([]database.ShiftReportAllowance, error) {
	return nil, nil
}

func (m *mockShiftStore) ListCreditsByReport(_ context.Context, _ uuid.UUID) ([]database.Credit, error) {
	return nil, nil
}

// --- Helpers ---

func setupShiftRouter(svc *mockShiftService, store *mockShiftStore) *chi.Mux {
	h := handler.NewShiftHandler(svc, store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(testJWTSecret))
		r.Route("/work-periods", h.RegisterWorkPeriodRoutes)
		r.Route("/shifts", h.RegisterRoutes)
	})
	return r
}

// --- Tests ---

func TestWorkPeriodCurrent(t *testing.T) {
	store := newMockShiftStore()
	wp := database.WorkPeriod{ID: uuid.New(), StartedAt: time.Now()}
	store.workPeriods[wp.ID] = wp

	router := setupShiftRouter(&mockShiftService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/work-periods/current", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["id"] != wp.ID.String() {
		t.Errorf("id: got %v, want %v", resp["id"], wp.ID)
	}
	if _, ok := resp["ended_at"]; ok {
		t.Error("expected no ended_at on an open work period")
	}
}

func TestWorkPeriodCurrentNone(t *testing.T) {
	router := setupShiftRouter(&mockShiftService{}, newMockShiftStore())

	req := httptest.NewRequest(http.MethodGet, "/work-periods/current", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestWorkPeriodOpenAlreadyOpen(t *testing.T) {
	svc := &mockShiftService{
		openWorkPeriodFn: func(_ context.Context, _ *auth.Claims) (*database.WorkPeriod, error) {
			return nil, service.ErrWorkPeriodAlreadyOpen
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodPost, "/work-periods/open", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestWorkPeriodCloseWithOpenShifts(t *testing.T) {
	svc := &mockShiftService{
		closeWorkPeriodFn: func(_ context.Context, _ *auth.Claims) (*database.WorkPeriod, error) {
			return nil, service.ErrWorkPeriodOpenShifts
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodPost, "/work-periods/close", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestShiftOpenDefaultsToCaller(t *testing.T) {
	var gotEmployee uuid.UUID
	svc := &mockShiftService{
		openShiftFn: func(_ context.Context, claims *auth.Claims, employeeID uuid.UUID) (*database.WorkShift, error) {
			gotEmployee = employeeID
			return &database.WorkShift{
				ID:           uuid.New(),
				EmployeeID:   employeeID,
				WorkPeriodID: uuid.New(),
				Status:       enum.ShiftStatusOpen,
				StartedAt:    time.Now(),
			}, nil
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodPost, "/shifts/open", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rr.Code, rr.Body.String())
	}
	if gotEmployee == uuid.Nil {
		t.Error("expected employee ID to default to the caller")
	}
}

func TestShiftOpenAlreadyOpen(t *testing.T) {
	svc := &mockShiftService{
		openShiftFn: func(_ context.Context, _ *auth.Claims, _ uuid.UUID) (*database.WorkShift, error) {
			return nil, service.ErrShiftAlreadyOpen
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodPost, "/shifts/open", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestShiftReportDraft(t *testing.T) {
	shiftID := uuid.New()
	svc := &mockShiftService{
		reportDraftFn: func(_ context.Context, id uuid.UUID) (*service.ReportDraft, error) {
			if id != shiftID {
				t.Errorf("shift ID: got %v, want %v", id, shiftID)
			}
			return &service.ReportDraft{
				Shift: database.WorkShift{
					ID:           shiftID,
					EmployeeID:   uuid.New(),
					WorkPeriodID: uuid.New(),
					Status:       enum.ShiftStatusOpen,
					StartedAt:    time.Now(),
				},
				GrossSales: decimal.RequireFromString("350000"),
				PaymentTotals: map[string]decimal.Decimal{
					enum.PaymentMethodCash: decimal.RequireFromString("200000"),
					enum.PaymentMethodCard: decimal.RequireFromString("150000"),
				},
				DiscountTotal: decimal.RequireFromString("10000"),
			}, nil
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodGet, "/shifts/"+shiftID.String()+"/report", nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["gross_sales"] != "350000.00" {
		t.Errorf("gross_sales: got %v, want 350000.00", resp["gross_sales"])
	}
	totals := resp["payment_totals"].(map[string]interface{})
	if totals[enum.PaymentMethodCash] != "200000.00" {
		t.Errorf("cash total: got %v, want 200000.00", totals[enum.PaymentMethodCash])
	}
}

func TestShiftSubmitReport(t *testing.T) {
	shiftID := uuid.New()
	svc := &mockShiftService{
		submitReportFn: func(_ context.Context, claims *auth.Claims, req service.SubmitReportRequest) (*service.SubmitReportResult, error) {
			if claims == nil {
				t.Fatal("expected claims to be passed to service")
			}
			if req.ShiftID != shiftID {
				t.Errorf("shift ID: got %v, want %v", req.ShiftID, shiftID)
			}
			if len(req.Payments) != 1 || req.Payments[0].Method != enum.PaymentMethodCash {
				t.Errorf("payments: got %+v", req.Payments)
			}
			return &service.SubmitReportResult{
				Report: database.ShiftReport{
					ID:          uuid.New(),
					WorkShiftID: shiftID,
					GrossAmount: testNumeric(t, "350000.00"),
					NetAmount:   testNumeric(t, "340000.00"),
					OwedAmount:  testNumeric(t, "0.00"),
					CreatedAt:   time.Now(),
				},
				Shift: database.WorkShift{
					ID:        shiftID,
					Status:    enum.ShiftStatusClosed,
					StartedAt: time.Now(),
				},
			}, nil
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	body, _ := json.Marshal(map[string]interface{}{
		"payments": []map[string]string{
			{"method": enum.PaymentMethodCash, "amount": "350000.00"},
		},
		"closing_notes": "drawer balanced",
	})
	req := httptest.NewRequest(http.MethodPut, "/shifts/"+shiftID.String()+"/report", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	shift := resp["shift"].(map[string]interface{})
	if shift["status"] != enum.ShiftStatusClosed {
		t.Errorf("shift status: got %v, want %v", shift["status"], enum.ShiftStatusClosed)
	}
	report := resp["report"].(map[string]interface{})
	if report["net_amount"] != "340000.00" {
		t.Errorf("net_amount: got %v, want 340000.00", report["net_amount"])
	}
}

func TestShiftSubmitReportUnbalanced(t *testing.T) {
	svc := &mockShiftService{
		submitReportFn: func(_ context.Context, _ *auth.Claims, _ service.SubmitReportRequest) (*service.SubmitReportResult, error) {
			return nil, service.ErrReportUnbalanced
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	body, _ := json.Marshal(map[string]interface{}{
		"payments": []map[string]string{
			{"method": enum.PaymentMethodCash, "amount": "100.00"},
		},
	})
	req := httptest.NewRequest(http.MethodPut, "/shifts/"+uuid.NewString()+"/report", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestShiftGetWithReport(t *testing.T) {
	store := newMockShiftStore()
	shift := database.WorkShift{
		ID:           uuid.New(),
		EmployeeID:   uuid.New(),
		WorkPeriodID: uuid.New(),
		Status:       enum.ShiftStatusClosed,
		StartedAt:    time.Now(),
	}
	store.shifts[shift.ID] = shift
	store.reports[shift.ID] = database.ShiftReport{
		ID:          uuid.New(),
		WorkShiftID: shift.ID,
		GrossAmount: testNumeric(t, "350000.00"),
		NetAmount:   testNumeric(t, "340000.00"),
		OwedAmount:  testNumeric(t, "0.00"),
		CreatedAt:   time.Now(),
	}

	router := setupShiftRouter(&mockShiftService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/shifts/"+shift.ID.String(), nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	report := resp["report"].(map[string]interface{})
	if report["gross_amount"] != "350000.00" {
		t.Errorf("gross_amount: got %v, want 350000.00", report["gross_amount"])
	}
}

func TestShiftDeleteWithOrders(t *testing.T) {
	svc := &mockShiftService{
		deleteShiftFn: func(_ context.Context, _ *auth.Claims, _ uuid.UUID) error {
			return service.ErrShiftHasOrders
		},
	}
	router := setupShiftRouter(svc, newMockShiftStore())

	req := httptest.NewRequest(http.MethodDelete, "/shifts/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}
