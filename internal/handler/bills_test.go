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
)

// --- Mocks ---

type mockBillService struct {
	createFn        func(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (*database.OrderBill, error)
	assignFn        func(ctx context.Context, billID uuid.UUID, itemIDs []uuid.UUID) error
	moveFn          func(ctx context.Context, sourceBillID, destBillID uuid.UUID, itemIDs []uuid.UUID) error
	deleteFn        func(ctx context.Context, billID uuid.UUID) error
	applyDiscountFn func(ctx context.Context, claims *auth.Claims, billID uuid.UUID, discountID string) (*database.OrderBill, error)
	payFn           func(ctx context.Context, claims *auth.Claims, req service.PayBillRequest) (*service.PayBillResult, error)
	printFn         func(ctx context.Context, billID uuid.UUID) (*database.PrintJob, error)
}

func (m *mockBillService) CreateBill(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (*database.OrderBill, error) {
	return m.createFn(ctx, orderID, itemIDs)
}

func (m *mockBillService) AssignItems(ctx context.Context, billID uuid.UUID, itemIDs []uuid.UUID) error {
	return m.assignFn(ctx, billID, itemIDs)
}

func (m *mockBillService) MoveItems(ctx context.Context, sourceBillID, destBillID uuid.UUID, itemIDs []uuid.UUID) error {
	return m.moveFn(ctx, sourceBillID, destBillID, itemIDs)
}

func (m *mockBillService) DeleteBill(ctx context.Context, billID uuid.UUID) error {
	return m.deleteFn(ctx, billID)
}

func (m *mockBillService) ApplyDiscount(ctx context.Context, claims *auth.Claims, billID uuid.UUID, discountID string) (*database.OrderBill, error) {
	return m.applyDiscountFn(ctx, claims, billID, discountID)
}

func (m *mockBillService) Pay(ctx context.Context, claims *auth.Claims, req service.PayBillRequest) (*service.PayBillResult, error) {
	return m.payFn(ctx, claims, req)
}

func (m *mockBillService) PrintBill(ctx context.Context, billID uuid.UUID) (*database.PrintJob, error) {
	return m.printFn(ctx, billID)
}

type mockBillStore struct {
	bills        map[uuid.UUID]database.OrderBill
	items        map[uuid.UUID][]database.OrderItem
	transactions map[uuid.UUID][]database.Transaction
}

func newMockBillStore() *mockBillStore {
	return &mockBillStore{
		bills:        make(map[uuid.UUID]database.OrderBill),
		items:        make(map[uuid.UUID][]database.OrderItem),
		transactions: make(map[uuid.UUID][]database.Transaction),
	}
}

func (m *mockBillStore) GetBill(_ context.Context, id uuid.UUID) (database.OrderBill, error) {
	b, ok := m.bills[id]
	if !ok {
		return database.OrderBill{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockBillStore) ListItemsByBill(_ context.Context, billID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[billID], nil
}

func (m *mockBillStore) ListTransactionsByBill(_ context.Context, billID uuid.UUID) ([]database.Transaction, error) {
	return m.transactions[billID], nil
}

// --- Helpers ---

func setupBillRouter(svc *mockBillService, store *mockBillStore) *chi.Mux {
	h := handler.NewBillHandler(svc, store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(testJWTSecret))
		r.Route("/bills", h.RegisterRoutes)
		r.Route("/orders", h.RegisterOrderRoutes)
	})
	return r
}

func testBill(t *testing.T, status string) database.OrderBill {
	t.Helper()
	return database.OrderBill{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		Code:           1,
		PaymentStatus:  status,
		DiscountAmount: testNumeric(t, "0.00"),
		CreatedAt:      time.Now(),
	}
}

// --- Tests ---

func TestBillCreate(t *testing.T) {
	bill := testBill(t, enum.BillStatusPending)
	itemID := uuid.New()

	svc := &mockBillService{
		createFn: func(_ context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (*database.OrderBill, error) {
			if orderID != bill.OrderID {
				t.Errorf("order ID: got %v, want %v", orderID, bill.OrderID)
			}
			if len(itemIDs) != 1 || itemIDs[0] != itemID {
				t.Errorf("item IDs: got %v, want [%v]", itemIDs, itemID)
			}
			return &bill, nil
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]interface{}{
		"item_ids": []string{itemID.String()},
	})
	req := httptest.NewRequest(http.MethodPost, "/orders/"+bill.OrderID.String()+"/bills", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["payment_status"] != enum.BillStatusPending {
		t.Errorf("payment_status: got %v, want %v", resp["payment_status"], enum.BillStatusPending)
	}
}

func TestBillCreateNoItems(t *testing.T) {
	svc := &mockBillService{
		createFn: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID) (*database.OrderBill, error) {
			return nil, service.ErrNoItemsSelected
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]interface{}{"item_ids": []string{}})
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/bills", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestBillGetDetail(t *testing.T) {
	store := newMockBillStore()
	bill := testBill(t, enum.BillStatusPartialPaid)
	store.bills[bill.ID] = bill
	store.transactions[bill.ID] = []database.Transaction{
		{
			ID:            uuid.New(),
			OrderID:       bill.OrderID,
			BillID:        bill.ID,
			Amount:        testNumeric(t, "50000.00"),
			PaymentMethod: enum.PaymentMethodCash,
			Status:        enum.TransactionStatusApproved,
			CreatedBy:     uuid.New(),
			CreatedAt:     time.Now(),
		},
	}

	router := setupBillRouter(&mockBillService{}, store)

	req := httptest.NewRequest(http.MethodGet, "/bills/"+bill.ID.String(), nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	payments := resp["payments"].([]interface{})
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	payment := payments[0].(map[string]interface{})
	if payment["amount"] != "50000.00" {
		t.Errorf("payment amount: got %v, want 50000.00", payment["amount"])
	}
}

func TestBillPay(t *testing.T) {
	bill := testBill(t, enum.BillStatusPaid)

	svc := &mockBillService{
		payFn: func(_ context.Context, claims *auth.Claims, req service.PayBillRequest) (*service.PayBillResult, error) {
			if claims == nil {
				t.Fatal("expected claims to be passed to service")
			}
			if req.Amount != "75000.00" {
				t.Errorf("amount: got %q, want 75000.00", req.Amount)
			}
			if req.Method != enum.PaymentMethodCash {
				t.Errorf("method: got %q, want %q", req.Method, enum.PaymentMethodCash)
			}
			return &service.PayBillResult{
				Transaction: database.Transaction{
					ID:            uuid.New(),
					OrderID:       bill.OrderID,
					BillID:        bill.ID,
					Amount:        testNumeric(t, "75000.00"),
					PaymentMethod: enum.PaymentMethodCash,
					Status:        enum.TransactionStatusApproved,
					CreatedAt:     time.Now(),
				},
				Bill: bill,
			}, nil
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]string{
		"amount": "75000.00",
		"method": enum.PaymentMethodCash,
	})
	req := httptest.NewRequest(http.MethodPost, "/bills/"+bill.ID.String()+"/pay", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	tx := resp["transaction"].(map[string]interface{})
	if tx["amount"] != "75000.00" {
		t.Errorf("transaction amount: got %v, want 75000.00", tx["amount"])
	}
	respBill := resp["bill"].(map[string]interface{})
	if respBill["payment_status"] != enum.BillStatusPaid {
		t.Errorf("payment_status: got %v, want %v", respBill["payment_status"], enum.BillStatusPaid)
	}
	if resp["clamped"] != false {
		t.Errorf("clamped: got %v, want false", resp["clamped"])
	}
}

func TestBillPayClamped(t *testing.T) {
	bill := testBill(t, enum.BillStatusPaid)

	svc := &mockBillService{
		payFn: func(_ context.Context, _ *auth.Claims, _ service.PayBillRequest) (*service.PayBillResult, error) {
			return &service.PayBillResult{
				Transaction: database.Transaction{
					ID:        uuid.New(),
					BillID:    bill.ID,
					Amount:    testNumeric(t, "25000.00"),
					Status:    enum.TransactionStatusApproved,
					CreatedAt: time.Now(),
				},
				Bill:    bill,
				Clamped: true,
			}, nil
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]string{
		"amount": "100000.00",
		"method": enum.PaymentMethodCash,
	})
	req := httptest.NewRequest(http.MethodPost, "/bills/"+bill.ID.String()+"/pay", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["clamped"] != true {
		t.Errorf("clamped: got %v, want true", resp["clamped"])
	}
}

func TestBillPayNothingDue(t *testing.T) {
	svc := &mockBillService{
		payFn: func(_ context.Context, _ *auth.Claims, _ service.PayBillRequest) (*service.PayBillResult, error) {
			return nil, service.ErrNothingDue
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]string{
		"amount": "100.00",
		"method": enum.PaymentMethodCash,
	})
	req := httptest.NewRequest(http.MethodPost, "/bills/"+uuid.NewString()+"/pay", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestBillMoveItems(t *testing.T) {
	sourceID := uuid.New()
	destID := uuid.New()
	itemID := uuid.New()

	svc := &mockBillService{
		moveFn: func(_ context.Context, src, dst uuid.UUID, itemIDs []uuid.UUID) error {
			if src != sourceID || dst != destID {
				t.Errorf("bill IDs: got %v -> %v, want %v -> %v", src, dst, sourceID, destID)
			}
			if len(itemIDs) != 1 || itemIDs[0] != itemID {
				t.Errorf("item IDs: got %v, want [%v]", itemIDs, itemID)
			}
			return nil
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]interface{}{
		"dest_bill_id": destID.String(),
		"item_ids":     []string{itemID.String()},
	})
	req := httptest.NewRequest(http.MethodPost, "/bills/"+sourceID.String()+"/move-items", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d; body: %s", rr.Code, rr.Body.String())
	}
}

func TestBillDeleteWithPayments(t *testing.T) {
	svc := &mockBillService{
		deleteFn: func(_ context.Context, _ uuid.UUID) error {
			return service.ErrBillHasPayments
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	req := httptest.NewRequest(http.MethodDelete, "/bills/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleCashier))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestBillApplyDiscountForbidden(t *testing.T) {
	svc := &mockBillService{
		applyDiscountFn: func(_ context.Context, _ *auth.Claims, _ uuid.UUID, _ string) (*database.OrderBill, error) {
			return nil, service.ErrForbidden
		},
	}
	router := setupBillRouter(svc, newMockBillStore())

	body, _ := json.Marshal(map[string]string{"discount_id": uuid.NewString()})
	req := httptest.NewRequest(http.MethodPost, "/bills/"+uuid.NewString()+"/discount", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, enum.UserRoleKitchen))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}
