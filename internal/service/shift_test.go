package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

type mockShiftStore struct {
	getOpenWorkPeriodFn       func(ctx context.Context) (database.WorkPeriod, error)
	getWorkPeriodFn           func(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error)
	createWorkPeriodFn        func(ctx context.Context) (database.WorkPeriod, error)
	closeWorkPeriodFn         func(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error)
	listWorkShiftsFn          func(ctx context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error)
	createWorkShiftFn         func(ctx context.Context, arg database.CreateWorkShiftParams) (database.WorkShift, error)
	getWorkShiftFn            func(ctx context.Context, id uuid.UUID) (database.WorkShift, error)
	getOpenShiftByEmployeeFn  func(ctx context.Context, employeeID uuid.UUID) (database.WorkShift, error)
	closeWorkShiftFn          func(ctx context.Context, id uuid.UUID) (database.WorkShift, error)
	deleteWorkShiftFn         func(ctx context.Context, id uuid.UUID) error
	listOrdersByShiftFn       func(ctx context.Context, workShiftID uuid.UUID) ([]database.Order, error)
	getShiftGrossSalesFn      func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error)
	getShiftPaymentTotalsFn   func(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftPaymentTotalRow, error)
	getShiftDiscountTotalFn   func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error)
	listShiftCancelledItemsFn func(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftCancelledItemRow, error)
	upsertShiftReportFn       func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error)
	getShiftReportByShiftFn   func(ctx context.Context, workShiftID uuid.UUID) (database.ShiftReport, error)
	deleteReportPaymentsFn    func(ctx context.Context, reportID uuid.UUID) error
	createReportPaymentFn     func(ctx context.Context, arg database.CreateReportPaymentParams) (database.ShiftReportPayment, error)
	deleteReportAllowancesFn  func(ctx context.Context, reportID uuid.UUID) error
	createReportAllowanceFn   func(ctx context.Context, arg database.CreateReportAllowanceParams) (database.ShiftReportAllowance, error)
	listCreditsByReportFn     func(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error)
	getCreditFn               func(ctx context.Context, id uuid.UUID) (database.Credit, error)
	createCreditFn            func(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error)
	updateCreditFn            func(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error)
	deleteCreditFn            func(ctx context.Context, id uuid.UUID) error
	getSettingsFn             func(ctx context.Context) (database.Settings, error)
	createActivityLogFn       func(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

func (m *mockShiftStore) GetOpenWorkPeriod(ctx context.Context) (database.WorkPeriod, error) {
	return m.getOpenWorkPeriodFn(ctx)
}
func (m *mockShiftStore) GetWorkPeriod(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error) {
	return m.getWorkPeriodFn(ctx, id)
}
func (m *mockShiftStore) CreateWorkPeriod(ctx context.Context) (database.WorkPeriod, error) {
	return m.createWorkPeriodFn(ctx)
}
func (m *mockShiftStore) CloseWorkPeriod(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error) {
	return m.closeWorkPeriodFn(ctx, id)
}
func (m *mockShiftStore) ListWorkShifts(ctx context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error) {
	return m.listWorkShiftsFn(ctx, workPeriodID)
}
func (m *mockShiftStore) CreateWorkShift(ctx context.Context, arg database.CreateWorkShiftParams) (database.WorkShift, error) {
	return m.createWorkShiftFn(ctx, arg)
}
func (m *mockShiftStore) GetWorkShift(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
	return m.getWorkShiftFn(ctx, id)
}
func (m *mockShiftStore) GetOpenShiftByEmployee(ctx context.Context, employeeID uuid.UUID) (database.WorkShift, error) {
	return m.getOpenShiftByEmployeeFn(ctx, employeeID)
}
func (m *mockShiftStore) CloseWorkShift(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
	return m.closeWorkShiftFn(ctx, id)
}
func (m *mockShiftStore) DeleteWorkShift(ctx context.Context, id uuid.UUID) error {
	return m.deleteWorkShiftFn(ctx, id)
}
func (m *mockShiftStore) ListOrdersByShift(ctx context.Context, workShiftID uuid.UUID) ([]database.Order, error) {
	return m.listOrdersByShiftFn(ctx, workShiftID)
}
func (m *mockShiftStore) GetShiftGrossSales(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
	return m.getShiftGrossSalesFn(ctx, workShiftID)
}
func (m *mockShiftStore) GetShiftPaymentTotals(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftPaymentTotalRow, error) {
	return m.getShiftPaymentTotalsFn(ctx, workShiftID)
}
func (m *mockShiftStore) GetShiftDiscountTotal(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
	return m.getShiftDiscountTotalFn(ctx, workShiftID)
}
func (m *mockShiftStore) ListShiftCancelledItems(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftCancelledItemRow, error) {
	return m.listShiftCancelledItemsFn(ctx, workShiftID)
}
func (m *mockShiftStore) UpsertShiftReport(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
	return m.upsertShiftReportFn(ctx, arg)
}
func (m *mockShiftStore) GetShiftReportByShift(ctx context.Context, workShiftID uuid.UUID) (database.ShiftReport, error) {
	return m.getShiftReportByShiftFn(ctx, workShiftID)
}
func (m *mockShiftStore) DeleteReportPayments(ctx context.Context, reportID uuid.UUID) error {
	return m.deleteReportPaymentsFn(ctx, reportID)
}
func (m *mockShiftStore) CreateReportPayment(ctx context.Context, arg database.CreateReportPaymentParams) (database.ShiftReportPayment, error) {
	return m.createReportPaymentFn(ctx, arg)
}
func (m *mockShiftStore) DeleteReportAllowances(ctx context.Context, reportID uuid.UUID) error {
	return m.deleteReportAllowancesFn(ctx, reportID)
}
func (m *mockShiftStore) CreateReportAllowance(ctx context.Context, arg database.CreateReportAllowanceParams) (database.ShiftReportAllowance, error) {
	return m.createReportAllowanceFn(ctx, arg)
}
func (m *mockShiftStore) ListCreditsByReport(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error) {
	return m.listCreditsByReportFn(ctx, shiftReportID)
}
func (m *mockShiftStore) GetCredit(ctx context.Context, id uuid.UUID) (database.Credit, error) {
	return m.getCreditFn(ctx, id)
}
func (m *mockShiftStore) CreateCredit(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error) {
	return m.createCreditFn(ctx, arg)
}
func (m *mockShiftStore) UpdateCredit(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error) {
	return m.updateCreditFn(ctx, arg)
}
func (m *mockShiftStore) DeleteCredit(ctx context.Context, id uuid.UUID) error {
	return m.deleteCreditFn(ctx, id)
}
func (m *mockShiftStore) GetSettings(ctx context.Context) (database.Settings, error) {
	return m.getSettingsFn(ctx)
}
func (m *mockShiftStore) CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error) {
	return m.createActivityLogFn(ctx, arg)
}

type shiftFixture struct {
	shiftID    uuid.UUID
	employeeID uuid.UUID
	periodID   uuid.UUID
}

// closableShiftStore wires an open shift with 100.00 gross, no discounts and a
// 5000 allowance limit.
func closableShiftStore(f shiftFixture) *mockShiftStore {
	return &mockShiftStore{
		getWorkShiftFn: func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
			return database.WorkShift{ID: f.shiftID, EmployeeID: f.employeeID, WorkPeriodID: f.periodID, Status: enum.ShiftStatusOpen}, nil
		},
		getWorkPeriodFn: func(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error) {
			return database.WorkPeriod{ID: f.periodID}, nil
		},
		getShiftGrossSalesFn: func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
			return makeNumeric("100.00"), nil
		},
		getShiftDiscountTotalFn: func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
			return makeNumeric("0"), nil
		},
		getSettingsFn: func(ctx context.Context) (database.Settings, error) {
			return database.Settings{CompanyName: "Mesa Restaurant", AllowanceDailyLimit: makeNumeric("5000")}, nil
		},
		upsertShiftReportFn: func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
			return database.ShiftReport{
				ID:          uuid.New(),
				WorkShiftID: arg.WorkShiftID,
				GrossAmount: arg.GrossAmount,
				NetAmount:   arg.NetAmount,
				OwedAmount:  arg.OwedAmount,
			}, nil
		},
		deleteReportPaymentsFn: func(ctx context.Context, reportID uuid.UUID) error { return nil },
		createReportPaymentFn: func(ctx context.Context, arg database.CreateReportPaymentParams) (database.ShiftReportPayment, error) {
			return database.ShiftReportPayment{ID: uuid.New(), ReportID: arg.ReportID, PaymentMethod: arg.PaymentMethod, Amount: arg.Amount}, nil
		},
		deleteReportAllowancesFn: func(ctx context.Context, reportID uuid.UUID) error { return nil },
		createReportAllowanceFn: func(ctx context.Context, arg database.CreateReportAllowanceParams) (database.ShiftReportAllowance, error) {
			return database.ShiftReportAllowance{ID: uuid.New(), ReportID: arg.ReportID, EmployeeID: arg.EmployeeID, Amount: arg.Amount}, nil
		},
		listCreditsByReportFn: func(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error) {
			return nil, nil
		},
		getCreditFn: func(ctx context.Context, id uuid.UUID) (database.Credit, error) {
			return database.Credit{}, pgx.ErrNoRows
		},
		createCreditFn: func(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error) {
			return database.Credit{ID: uuid.New(), CustomerID: arg.CustomerID, EmployeeID: arg.EmployeeID, Amount: arg.Amount}, nil
		},
		updateCreditFn: func(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error) {
			return database.Credit{ID: arg.ID, Amount: arg.Amount, Status: arg.Status}, nil
		},
		deleteCreditFn: func(ctx context.Context, id uuid.UUID) error { return nil },
		closeWorkShiftFn: func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
			return database.WorkShift{ID: id, EmployeeID: f.employeeID, Status: enum.ShiftStatusClosed}, nil
		},
		createActivityLogFn: func(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error) {
			return database.ActivityLog{ID: uuid.New()}, nil
		},
	}
}

func newTestShiftService(store *mockShiftStore) (*ShiftService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewShiftService(pool, func(db database.DBTX) ShiftStore { return store }), tx
}

func TestOpenWorkPeriod_OnlyOneAtATime(t *testing.T) {
	store := closableShiftStore(shiftFixture{})
	store.getOpenWorkPeriodFn = func(ctx context.Context) (database.WorkPeriod, error) {
		return database.WorkPeriod{ID: uuid.New()}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.OpenWorkPeriod(context.Background(), managerClaims(uuid.New()))
	if !errors.Is(err, ErrWorkPeriodAlreadyOpen) {
		t.Fatalf("expected ErrWorkPeriodAlreadyOpen, got: %v", err)
	}
}

func TestOpenWorkPeriod_RequiresCapability(t *testing.T) {
	svc, _ := newTestShiftService(closableShiftStore(shiftFixture{}))

	_, err := svc.OpenWorkPeriod(context.Background(), waiterClaims(uuid.New()))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
}

func TestCloseWorkPeriod_OpenShiftBlocks(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getOpenWorkPeriodFn = func(ctx context.Context) (database.WorkPeriod, error) {
		return database.WorkPeriod{ID: f.periodID}, nil
	}
	store.listWorkShiftsFn = func(ctx context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error) {
		return []database.WorkShift{{ID: f.shiftID, Status: enum.ShiftStatusOpen}}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.CloseWorkPeriod(context.Background(), managerClaims(uuid.New()))
	if !errors.Is(err, ErrWorkPeriodOpenShifts) {
		t.Fatalf("expected ErrWorkPeriodOpenShifts, got: %v", err)
	}
}

func TestOpenShift_SecondShiftRejected(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getOpenWorkPeriodFn = func(ctx context.Context) (database.WorkPeriod, error) {
		return database.WorkPeriod{ID: f.periodID}, nil
	}
	store.getOpenShiftByEmployeeFn = func(ctx context.Context, employeeID uuid.UUID) (database.WorkShift, error) {
		return database.WorkShift{ID: f.shiftID, EmployeeID: employeeID, Status: enum.ShiftStatusOpen}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.OpenShift(context.Background(), waiterClaims(f.employeeID), f.employeeID)
	if !errors.Is(err, ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got: %v", err)
	}
}

func TestOpenShift_ForAnotherEmployeeNeedsCapability(t *testing.T) {
	f := shiftFixture{employeeID: uuid.New()}
	svc, _ := newTestShiftService(closableShiftStore(f))

	_, err := svc.OpenShift(context.Background(), waiterClaims(uuid.New()), f.employeeID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
}

// --- SubmitReport ---

func TestSubmitReport_BalancedClosesShift(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	var report database.UpsertShiftReportParams
	upsert := store.upsertShiftReportFn
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		report = arg
		return upsert(ctx, arg)
	}
	svc, tx := newTestShiftService(store)

	// 100.00 gross: 70 cash + 25 card + 5 staff meal allowance.
	result, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "70.00"},
			{Method: enum.PaymentMethodCard, Amount: "25.00"},
		},
		Allowances: []ReportAllowanceInput{
			{EmployeeID: f.employeeID.String(), Amount: "5.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Shift.Status != enum.ShiftStatusClosed {
		t.Errorf("shift status: got %v, want CLOSED", result.Shift.Status)
	}
	if !numericEquals(report.GrossAmount, "100.00") {
		t.Errorf("gross: got %v, want 100.00", database.NumericToDecimal(report.GrossAmount))
	}
	if !numericEquals(report.NetAmount, "95.00") {
		t.Errorf("net must be the declared payment total, got %v", database.NumericToDecimal(report.NetAmount))
	}
	if !numericEquals(report.OwedAmount, "5.00") {
		t.Errorf("owed must be gross minus declared payments, got %v", database.NumericToDecimal(report.OwedAmount))
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestSubmitReport_UnbalancedRejected(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	svc, tx := newTestShiftService(closableShiftStore(f))

	// 90 declared against 100 gross with no allowance or credit covering it.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "90.00"},
		},
	})
	if !errors.Is(err, ErrReportUnbalanced) {
		t.Fatalf("expected ErrReportUnbalanced, got: %v", err)
	}
	if tx.committed {
		t.Error("unbalanced report must not commit")
	}
}

func TestSubmitReport_OwedIsGrossMinusDeclared(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	var report database.UpsertShiftReportParams
	upsert := store.upsertShiftReportFn
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		report = arg
		return upsert(ctx, arg)
	}
	svc, _ := newTestShiftService(store)

	// 100.00 gross: 60 cash + 30 card declared, 10 carried as a tab credit.
	// The shift still owes the undeclared 10, not the cash portion.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "60.00"},
			{Method: enum.PaymentMethodCard, Amount: "30.00"},
		},
		Credits: []ReportCreditInput{
			{CustomerID: uuid.NewString(), Amount: "10.00", Reason: "customer_tab"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(report.NetAmount, "90.00") {
		t.Errorf("net: got %v, want 90.00", database.NumericToDecimal(report.NetAmount))
	}
	if !numericEquals(report.OwedAmount, "10.00") {
		t.Errorf("owed: got %v, want 10.00", database.NumericToDecimal(report.OwedAmount))
	}
}

func TestSubmitReport_OverageAccepted(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	var report database.UpsertShiftReportParams
	upsert := store.upsertShiftReportFn
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		report = arg
		return upsert(ctx, arg)
	}
	svc, tx := newTestShiftService(store)

	// A drawer that comes back over closes fine; owed goes negative.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "110.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(report.OwedAmount, "-10.00") {
		t.Errorf("owed: got %v, want -10.00", database.NumericToDecimal(report.OwedAmount))
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestSubmitReport_ShortfallCoveredByEmployeeCredit(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	var credit database.CreateCreditParams
	store.createCreditFn = func(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error) {
		credit = arg
		return database.Credit{ID: uuid.New(), EmployeeID: arg.EmployeeID, Amount: arg.Amount}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "90.00"},
		},
		Credits: []ReportCreditInput{
			{EmployeeID: f.employeeID.String(), Amount: "10.00", Reason: "drawer_short"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !credit.EmployeeID.Valid || credit.EmployeeID.Bytes != f.employeeID {
		t.Errorf("shortfall credit must land on the employee, got %+v", credit.EmployeeID)
	}
	if !credit.ShiftReportID.Valid {
		t.Error("report credit must reference its report")
	}
	if !numericEquals(credit.Amount, "10.00") {
		t.Errorf("credit amount: got %v, want 10.00", database.NumericToDecimal(credit.Amount))
	}
}

func TestSubmitReport_DiscountsReduceExpected(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getShiftDiscountTotalFn = func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
		return makeNumeric("20.00"), nil
	}
	svc, _ := newTestShiftService(store)

	// 100 gross minus 20 discounts: 80 declared balances.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "80.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitReport_CustomGrossOverride(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getWorkShiftFn = func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
		return database.WorkShift{
			ID: f.shiftID, EmployeeID: f.employeeID, Status: enum.ShiftStatusOpen,
			CustomGrossAmount: makeNumeric("60.00"),
		}, nil
	}
	store.getShiftGrossSalesFn = func(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
		t.Fatal("computed gross must not be queried when an override is set")
		return pgtype.Numeric{}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "60.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitReport_AllowanceOverLimit(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getSettingsFn = func(ctx context.Context) (database.Settings, error) {
		return database.Settings{AllowanceDailyLimit: makeNumeric("5.00")}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "90.00"},
		},
		Allowances: []ReportAllowanceInput{
			{EmployeeID: f.employeeID.String(), Amount: "10.00"},
		},
	})
	if !errors.Is(err, ErrAllowanceOverLimit) {
		t.Fatalf("expected ErrAllowanceOverLimit, got: %v", err)
	}
}

func TestSubmitReport_CreditNeedsAParty(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	svc, _ := newTestShiftService(closableShiftStore(f))

	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Credits: []ReportCreditInput{
			{Amount: "10.00"},
		},
	})
	if !errors.Is(err, ErrCreditParty) {
		t.Fatalf("expected ErrCreditParty, got: %v", err)
	}
}

func TestSubmitReport_SomeoneElsesShiftNeedsCapability(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	svc, _ := newTestShiftService(closableShiftStore(f))

	_, err := svc.SubmitReport(context.Background(), waiterClaims(uuid.New()), SubmitReportRequest{ShiftID: f.shiftID})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
}

func TestSubmitReport_ClosedShiftAmendsWhilePeriodOpen(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getWorkShiftFn = func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
		return database.WorkShift{ID: f.shiftID, EmployeeID: f.employeeID, WorkPeriodID: f.periodID, Status: enum.ShiftStatusClosed}, nil
	}
	store.closeWorkShiftFn = func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
		t.Fatal("a closed shift must not be closed again")
		return database.WorkShift{}, nil
	}
	svc, tx := newTestShiftService(store)

	result, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "100.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Shift.Status != enum.ShiftStatusClosed {
		t.Errorf("shift status: got %v, want CLOSED", result.Shift.Status)
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestSubmitReport_EndedPeriodRejected(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.getWorkShiftFn = func(ctx context.Context, id uuid.UUID) (database.WorkShift, error) {
		return database.WorkShift{ID: f.shiftID, EmployeeID: f.employeeID, WorkPeriodID: f.periodID, Status: enum.ShiftStatusClosed}, nil
	}
	store.getWorkPeriodFn = func(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error) {
		return database.WorkPeriod{ID: f.periodID, EndedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true}}, nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{ShiftID: f.shiftID})
	if !errors.Is(err, ErrWorkPeriodEnded) {
		t.Fatalf("expected ErrWorkPeriodEnded, got: %v", err)
	}
}

func TestSubmitReport_ResubmissionReplacesPayments(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	paymentsDeleted := false
	store.deleteReportPaymentsFn = func(ctx context.Context, reportID uuid.UUID) error {
		paymentsDeleted = true
		return nil
	}
	svc, _ := newTestShiftService(store)

	_, err := svc.SubmitReport(context.Background(), managerClaims(uuid.New()), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "100.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !paymentsDeleted {
		t.Error("resubmission must clear previously declared payments")
	}
}

func TestSubmitReport_CreditRowUpdatedInPlace(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	reportID := uuid.New()
	creditID := uuid.New()
	customerID := uuid.New()
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		return database.ShiftReport{ID: reportID, WorkShiftID: arg.WorkShiftID, GrossAmount: arg.GrossAmount}, nil
	}
	onReport := database.Credit{
		ID:            creditID,
		CustomerID:    pgtype.UUID{Bytes: customerID, Valid: true},
		ShiftReportID: pgtype.UUID{Bytes: reportID, Valid: true},
		Amount:        makeNumeric("10.00"),
		Status:        "PENDING",
	}
	store.listCreditsByReportFn = func(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error) {
		return []database.Credit{onReport}, nil
	}
	store.getCreditFn = func(ctx context.Context, id uuid.UUID) (database.Credit, error) {
		return onReport, nil
	}
	var updated database.UpdateCreditParams
	store.updateCreditFn = func(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error) {
		updated = arg
		return database.Credit{ID: arg.ID, Amount: arg.Amount, Status: arg.Status}, nil
	}
	store.createCreditFn = func(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error) {
		t.Fatal("a carried credit ID must update, not create")
		return database.Credit{}, nil
	}
	store.deleteCreditFn = func(ctx context.Context, id uuid.UUID) error {
		t.Fatal("an updated credit must not be deleted")
		return nil
	}
	svc, _ := newTestShiftService(store)

	// The 10.00 tab grew to 12.00; declared drops to 88 and still balances.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "88.00"},
		},
		Credits: []ReportCreditInput{
			{ID: creditID.String(), CustomerID: customerID.String(), Amount: "12.00", Reason: "customer_tab"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != creditID {
		t.Errorf("updated credit: got %v, want %v", updated.ID, creditID)
	}
	if !numericEquals(updated.Amount, "12.00") {
		t.Errorf("updated amount: got %v, want 12.00", database.NumericToDecimal(updated.Amount))
	}
}

func TestSubmitReport_CreditRowDeletedByMarker(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	reportID := uuid.New()
	creditID := uuid.New()
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		return database.ShiftReport{ID: reportID, WorkShiftID: arg.WorkShiftID}, nil
	}
	store.listCreditsByReportFn = func(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error) {
		return []database.Credit{{ID: creditID, ShiftReportID: pgtype.UUID{Bytes: reportID, Valid: true}, Amount: makeNumeric("10.00")}}, nil
	}
	var deleted uuid.UUID
	store.deleteCreditFn = func(ctx context.Context, id uuid.UUID) error {
		deleted = id
		return nil
	}
	svc, _ := newTestShiftService(store)

	// The deleted credit no longer counts, so the full 100 must be declared.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "100.00"},
		},
		Credits: []ReportCreditInput{
			{ID: creditID.String(), Deleted: true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != creditID {
		t.Errorf("deleted credit: got %v, want %v", deleted, creditID)
	}
}

func TestSubmitReport_UntouchedCreditsStillCount(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	reportID := uuid.New()
	store.upsertShiftReportFn = func(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error) {
		return database.ShiftReport{ID: reportID, WorkShiftID: arg.WorkShiftID}, nil
	}
	store.listCreditsByReportFn = func(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error) {
		return []database.Credit{{ID: uuid.New(), ShiftReportID: pgtype.UUID{Bytes: reportID, Valid: true}, Amount: makeNumeric("10.00")}}, nil
	}
	store.deleteCreditFn = func(ctx context.Context, id uuid.UUID) error {
		t.Fatal("credits the client never mentioned must survive a resubmission")
		return nil
	}
	svc, _ := newTestShiftService(store)

	// 90 declared plus the untouched 10.00 credit covers the 100 gross.
	_, err := svc.SubmitReport(context.Background(), waiterClaims(f.employeeID), SubmitReportRequest{
		ShiftID: f.shiftID,
		Payments: []ReportPaymentInput{
			{Method: enum.PaymentMethodCash, Amount: "90.00"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- DeleteShift ---

func TestDeleteShift_WithOrdersRejected(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.listOrdersByShiftFn = func(ctx context.Context, workShiftID uuid.UUID) ([]database.Order, error) {
		return []database.Order{{ID: uuid.New()}}, nil
	}
	svc, _ := newTestShiftService(store)

	err := svc.DeleteShift(context.Background(), managerClaims(uuid.New()), f.shiftID)
	if !errors.Is(err, ErrShiftHasOrders) {
		t.Fatalf("expected ErrShiftHasOrders, got: %v", err)
	}
}

func TestDeleteShift_EmptyShiftDeleted(t *testing.T) {
	f := shiftFixture{shiftID: uuid.New(), employeeID: uuid.New(), periodID: uuid.New()}
	store := closableShiftStore(f)
	store.listOrdersByShiftFn = func(ctx context.Context, workShiftID uuid.UUID) ([]database.Order, error) {
		return nil, nil
	}
	deleted := false
	store.deleteWorkShiftFn = func(ctx context.Context, id uuid.UUID) error {
		deleted = true
		return nil
	}
	svc, tx := newTestShiftService(store)

	if err := svc.DeleteShift(context.Background(), managerClaims(uuid.New()), f.shiftID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted || !tx.committed {
		t.Error("expected the shift deleted and the transaction committed")
	}
}
