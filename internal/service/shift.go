package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the shift service.
var (
	ErrWorkPeriodAlreadyOpen = errors.New("a work period is already open")
	ErrWorkPeriodOpenShifts  = errors.New("work period still has open shifts")
	ErrShiftAlreadyOpen      = errors.New("employee already has an open shift")
	ErrShiftNotOpen          = errors.New("shift is not open")
	ErrShiftHasOrders        = errors.New("shift has orders attached")
	ErrWorkPeriodEnded       = errors.New("work period has ended")
	ErrReportUnbalanced      = errors.New("declared amounts do not cover gross sales")
	ErrAllowanceOverLimit    = errors.New("allowance exceeds the daily limit")
	ErrCreditParty           = errors.New("credit needs a customer or an employee")
	ErrCreditNotFound        = errors.New("credit not found on this report")
)

// ShiftStore defines the DB methods needed by the shift workflows.
type ShiftStore interface {
	GetOpenWorkPeriod(ctx context.Context) (database.WorkPeriod, error)
	GetWorkPeriod(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error)
	CreateWorkPeriod(ctx context.Context) (database.WorkPeriod, error)
	CloseWorkPeriod(ctx context.Context, id uuid.UUID) (database.WorkPeriod, error)
	ListWorkShifts(ctx context.Context, workPeriodID uuid.UUID) ([]database.WorkShift, error)
	CreateWorkShift(ctx context.Context, arg database.CreateWorkShiftParams) (database.WorkShift, error)
	GetWorkShift(ctx context.Context, id uuid.UUID) (database.WorkShift, error)
	GetOpenShiftByEmployee(ctx context.Context, employeeID uuid.UUID) (database.WorkShift, error)
	CloseWorkShift(ctx context.Context, id uuid.UUID) (database.WorkShift, error)
	DeleteWorkShift(ctx context.Context, id uuid.UUID) error
	ListOrdersByShift(ctx context.Context, workShiftID uuid.UUID) ([]database.Order, error)
	GetShiftGrossSales(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error)
	GetShiftPaymentTotals(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftPaymentTotalRow, error)
	GetShiftDiscountTotal(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error)
	ListShiftCancelledItems(ctx context.Context, workShiftID uuid.UUID) ([]database.ShiftCancelledItemRow, error)
	UpsertShiftReport(ctx context.Context, arg database.UpsertShiftReportParams) (database.ShiftReport, error)
	GetShiftReportByShift(ctx context.Context, workShiftID uuid.UUID) (database.ShiftReport, error)
	DeleteReportPayments(ctx context.Context, reportID uuid.UUID) error
	CreateReportPayment(ctx context.Context, arg database.CreateReportPaymentParams) (database.ShiftReportPayment, error)
	DeleteReportAllowances(ctx context.Context, reportID uuid.UUID) error
	CreateReportAllowance(ctx context.Context, arg database.CreateReportAllowanceParams) (database.ShiftReportAllowance, error)
	ListCreditsByReport(ctx context.Context, shiftReportID uuid.UUID) ([]database.Credit, error)
	GetCredit(ctx context.Context, id uuid.UUID) (database.Credit, error)
	CreateCredit(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error)
	UpdateCredit(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error)
	DeleteCredit(ctx context.Context, id uuid.UUID) error
	GetSettings(ctx context.Context) (database.Settings, error)
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

// NewShiftStore creates a ShiftStore from a DBTX (pool or tx).
type NewShiftStore func(db database.DBTX) ShiftStore

// ReportDraft is the pre-filled close-out form for an open shift.
type ReportDraft struct {
	Shift          database.WorkShift
	GrossSales     decimal.Decimal
	CustomGross    bool
	PaymentTotals  map[string]decimal.Decimal
	DiscountTotal  decimal.Decimal
	CancelledItems []database.ShiftCancelledItemRow
}

// ReportPaymentInput is one declared drawer count by payment method.
type ReportPaymentInput struct {
	Method string
	Amount string
}

// ReportAllowanceInput is one staff meal allowance on the report.
type ReportAllowanceInput struct {
	EmployeeID string
	Amount     string
}

// ReportCreditInput is one credit on the report: a customer tab carried over
// or an employee covering a shortfall. An empty ID creates a new row, a known
// ID updates it, and Deleted removes it.
type ReportCreditInput struct {
	ID          string
	Deleted     bool
	CustomerID  string
	EmployeeID  string
	Amount      string
	Description string
	Reason      string
}

// SubmitReportRequest is the full close-out submission for a shift.
type SubmitReportRequest struct {
	ShiftID      uuid.UUID
	Payments     []ReportPaymentInput
	Allowances   []ReportAllowanceInput
	Credits      []ReportCreditInput
	ClosingNotes string
}

// SubmitReportResult is the stored report with the now-closed shift.
type SubmitReportResult struct {
	Report database.ShiftReport
	Shift  database.WorkShift
}

// ShiftService handles work periods, shifts and cash close-out.
type ShiftService struct {
	pool     TxBeginner
	newStore NewShiftStore
}

func NewShiftService(pool TxBeginner, newStore NewShiftStore) *ShiftService {
	return &ShiftService{pool: pool, newStore: newStore}
}

// OpenWorkPeriod starts the business day. Only one period is open at a time.
func (s *ShiftService) OpenWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error) {
	if !claims.CanPerform(auth.CapabilityManageShifts) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetOpenWorkPeriod(ctx); err == nil {
		return nil, ErrWorkPeriodAlreadyOpen
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open work period: %w", err)
	}

	period, err := store.CreateWorkPeriod(ctx)
	if err != nil {
		return nil, fmt.Errorf("create work period: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &period, nil
}

// CloseWorkPeriod ends the business day once every shift has closed out.
func (s *ShiftService) CloseWorkPeriod(ctx context.Context, claims *auth.Claims) (*database.WorkPeriod, error) {
	if !claims.CanPerform(auth.CapabilityManageShifts) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	period, err := store.GetOpenWorkPeriod(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenWorkPeriod
		}
		return nil, fmt.Errorf("get open work period: %w", err)
	}

	shifts, err := store.ListWorkShifts(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("list work shifts: %w", err)
	}
	for _, shift := range shifts {
		if shift.Status == enum.ShiftStatusOpen {
			return nil, ErrWorkPeriodOpenShifts
		}
	}

	closed, err := store.CloseWorkPeriod(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("close work period: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &closed, nil
}

// OpenShift clocks an employee in. Self-service for the employee, capability
// gated when opening someone else's shift.
func (s *ShiftService) OpenShift(ctx context.Context, claims *auth.Claims, employeeID uuid.UUID) (*database.WorkShift, error) {
	if employeeID != claims.UserID && !claims.CanPerform(auth.CapabilityManageShifts) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	period, err := store.GetOpenWorkPeriod(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenWorkPeriod
		}
		return nil, fmt.Errorf("get open work period: %w", err)
	}

	if _, err := store.GetOpenShiftByEmployee(ctx, employeeID); err == nil {
		return nil, ErrShiftAlreadyOpen
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	shift, err := store.CreateWorkShift(ctx, database.CreateWorkShiftParams{
		EmployeeID:   employeeID,
		WorkPeriodID: period.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create work shift: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &shift, nil
}

// ReportDraft pre-computes the close-out numbers for a shift: gross sales from
// its orders' fired items, payments taken by method, discounts granted and the
// cancelled lines the manager reviews.
func (s *ShiftService) ReportDraft(ctx context.Context, shiftID uuid.UUID) (*ReportDraft, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetWorkShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	gross, custom, err := shiftGross(ctx, store, shift)
	if err != nil {
		return nil, err
	}
	paymentRows, err := store.GetShiftPaymentTotals(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("get payment totals: %w", err)
	}
	payments := make(map[string]decimal.Decimal, len(paymentRows))
	for _, row := range paymentRows {
		payments[row.PaymentMethod] = database.NumericToDecimal(row.Amount)
	}
	discountSum, err := store.GetShiftDiscountTotal(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("get discount total: %w", err)
	}
	cancelled, err := store.ListShiftCancelledItems(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list cancelled items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ReportDraft{
		Shift:          shift,
		GrossSales:     gross,
		CustomGross:    custom,
		PaymentTotals:  payments,
		DiscountTotal:  database.NumericToDecimal(discountSum),
		CancelledItems: cancelled,
	}, nil
}

// SubmitReport closes a shift against its declared drawer counts. The report
// only goes through when declared payments, allowances and credits cover
// gross sales minus discounts; any gap must be declared as an explicit credit
// (employee shortfall) before the shift can close. Overages are accepted and
// show up as a negative owed amount. A closed shift's report can be
// resubmitted until its work period ends.
func (s *ShiftService) SubmitReport(ctx context.Context, claims *auth.Claims, req SubmitReportRequest) (*SubmitReportResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetWorkShift(ctx, req.ShiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != enum.ShiftStatusOpen {
		period, err := store.GetWorkPeriod(ctx, shift.WorkPeriodID)
		if err != nil {
			return nil, fmt.Errorf("get work period: %w", err)
		}
		if period.EndedAt.Valid {
			return nil, ErrWorkPeriodEnded
		}
	}
	if shift.EmployeeID != claims.UserID && !claims.CanPerform(auth.CapabilityManageShifts) {
		return nil, ErrForbidden
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	gross, _, err := shiftGross(ctx, store, shift)
	if err != nil {
		return nil, err
	}
	discountSum, err := store.GetShiftDiscountTotal(ctx, req.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("get discount total: %w", err)
	}
	expected := gross.Sub(database.NumericToDecimal(discountSum))

	declaredTotal := decimal.Zero
	type paymentRow struct {
		method string
		amount decimal.Decimal
	}
	var payments []paymentRow
	for _, p := range req.Payments {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil || amount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		amount = amount.Round(2)
		declaredTotal = declaredTotal.Add(amount)
		payments = append(payments, paymentRow{method: p.Method, amount: amount})
	}

	allowanceLimit := database.NumericToDecimal(settings.AllowanceDailyLimit)
	allowanceTotal := decimal.Zero
	type allowanceRow struct {
		employeeID uuid.UUID
		amount     decimal.Decimal
	}
	var allowances []allowanceRow
	for _, a := range req.Allowances {
		employeeID, err := uuid.Parse(a.EmployeeID)
		if err != nil {
			return nil, ErrInvalidAmount
		}
		amount, err := decimal.NewFromString(a.Amount)
		if err != nil || amount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		amount = amount.Round(2)
		if allowanceLimit.IsPositive() && amount.GreaterThan(allowanceLimit) {
			return nil, ErrAllowanceOverLimit
		}
		allowanceTotal = allowanceTotal.Add(amount)
		allowances = append(allowances, allowanceRow{employeeID: employeeID, amount: amount})
	}

	type creditRow struct {
		id          uuid.UUID // zero for new rows
		customerID  pgtype.UUID
		employeeID  pgtype.UUID
		amount      decimal.Decimal
		description string
		reason      string
	}
	var credits []creditRow
	var removedCredits []uuid.UUID
	for _, c := range req.Credits {
		var id uuid.UUID
		if c.ID != "" {
			parsed, err := uuid.Parse(c.ID)
			if err != nil {
				return nil, ErrCreditNotFound
			}
			id = parsed
		}
		if c.Deleted {
			if id == uuid.Nil {
				return nil, ErrCreditNotFound
			}
			removedCredits = append(removedCredits, id)
			continue
		}
		row := creditRow{id: id, description: c.Description, reason: c.Reason}
		if c.CustomerID != "" {
			cid, err := uuid.Parse(c.CustomerID)
			if err != nil {
				return nil, ErrInvalidCustomerID
			}
			row.customerID = pgtype.UUID{Bytes: cid, Valid: true}
		}
		if c.EmployeeID != "" {
			eid, err := uuid.Parse(c.EmployeeID)
			if err != nil {
				return nil, ErrCreditParty
			}
			row.employeeID = pgtype.UUID{Bytes: eid, Valid: true}
		}
		if !row.customerID.Valid && !row.employeeID.Valid {
			return nil, ErrCreditParty
		}
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil || !amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		row.amount = amount.Round(2)
		credits = append(credits, row)
	}

	closingNotes := pgtype.Text{}
	if req.ClosingNotes != "" {
		closingNotes = pgtype.Text{String: req.ClosingNotes, Valid: true}
	}

	// Owed is what the shift still has to hand in: gross minus everything
	// declared as taken. Negative when the drawer came back over.
	report, err := store.UpsertShiftReport(ctx, database.UpsertShiftReportParams{
		WorkShiftID:  req.ShiftID,
		GrossAmount:  database.DecimalToNumeric(gross),
		NetAmount:    database.DecimalToNumeric(declaredTotal),
		OwedAmount:   database.DecimalToNumeric(gross.Sub(declaredTotal)),
		ClosingNotes: closingNotes,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert shift report: %w", err)
	}

	// Replace child rows wholesale; a retried submission must not stack.
	if err := store.DeleteReportPayments(ctx, report.ID); err != nil {
		return nil, fmt.Errorf("delete report payments: %w", err)
	}
	for _, p := range payments {
		if _, err := store.CreateReportPayment(ctx, database.CreateReportPaymentParams{
			ReportID:      report.ID,
			PaymentMethod: p.method,
			Amount:        database.DecimalToNumeric(p.amount),
		}); err != nil {
			return nil, fmt.Errorf("create report payment: %w", err)
		}
	}
	if err := store.DeleteReportAllowances(ctx, report.ID); err != nil {
		return nil, fmt.Errorf("delete report allowances: %w", err)
	}
	for _, a := range allowances {
		if _, err := store.CreateReportAllowance(ctx, database.CreateReportAllowanceParams{
			ReportID:   report.ID,
			EmployeeID: a.employeeID,
			Amount:     database.DecimalToNumeric(a.amount),
			DailyLimit: settings.AllowanceDailyLimit,
		}); err != nil {
			return nil, fmt.Errorf("create report allowance: %w", err)
		}
	}
	// Credit rows are reconciled one by one: the client marks deletions and
	// carries IDs for edits, and rows it never mentions stay on the report.
	existing, err := store.ListCreditsByReport(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("list report credits: %w", err)
	}
	untouched := make(map[uuid.UUID]database.Credit, len(existing))
	for _, c := range existing {
		untouched[c.ID] = c
	}

	creditTotal := decimal.Zero
	for _, id := range removedCredits {
		if _, ok := untouched[id]; !ok {
			return nil, ErrCreditNotFound
		}
		if err := store.DeleteCredit(ctx, id); err != nil {
			return nil, fmt.Errorf("delete report credit: %w", err)
		}
		delete(untouched, id)
	}
	for _, c := range credits {
		description := pgtype.Text{}
		if c.description != "" {
			description = pgtype.Text{String: c.description, Valid: true}
		}
		reason := pgtype.Text{}
		if c.reason != "" {
			reason = pgtype.Text{String: c.reason, Valid: true}
		}
		if c.id == uuid.Nil {
			if _, err := store.CreateCredit(ctx, database.CreateCreditParams{
				CustomerID:    c.customerID,
				EmployeeID:    c.employeeID,
				ShiftReportID: pgtype.UUID{Bytes: report.ID, Valid: true},
				Amount:        database.DecimalToNumeric(c.amount),
				Description:   description,
				Reason:        reason,
			}); err != nil {
				return nil, fmt.Errorf("create report credit: %w", err)
			}
		} else {
			current, err := store.GetCredit(ctx, c.id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, ErrCreditNotFound
				}
				return nil, fmt.Errorf("get report credit: %w", err)
			}
			if !current.ShiftReportID.Valid || current.ShiftReportID.Bytes != report.ID {
				return nil, ErrCreditNotFound
			}
			if _, err := store.UpdateCredit(ctx, database.UpdateCreditParams{
				ID:          c.id,
				Amount:      database.DecimalToNumeric(c.amount),
				Description: description,
				Status:      current.Status,
			}); err != nil {
				return nil, fmt.Errorf("update report credit: %w", err)
			}
			delete(untouched, c.id)
		}
		creditTotal = creditTotal.Add(c.amount)
	}
	for _, c := range untouched {
		creditTotal = creditTotal.Add(database.NumericToDecimal(c.Amount))
	}

	// The tx rolls back on an unbalanced report, so the writes above never
	// land. Overages pass: only an unexplained shortfall blocks the close.
	if declaredTotal.Add(allowanceTotal).Add(creditTotal).LessThan(expected) {
		return nil, ErrReportUnbalanced
	}

	closed := shift
	action := "shift.report_amend"
	if shift.Status == enum.ShiftStatusOpen {
		closed, err = store.CloseWorkShift(ctx, req.ShiftID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrShiftNotOpen
			}
			return nil, fmt.Errorf("close work shift: %w", err)
		}
		action = "shift.close"
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   action,
		Entity:   "work_shift",
		EntityID: req.ShiftID,
		Detail:   pgtype.Text{String: "gross " + gross.StringFixed(2), Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log shift close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SubmitReportResult{Report: report, Shift: closed}, nil
}

// DeleteShift removes an open shift that never took an order, e.g. someone
// clocked in by mistake.
func (s *ShiftService) DeleteShift(ctx context.Context, claims *auth.Claims, shiftID uuid.UUID) error {
	if !claims.CanPerform(auth.CapabilityManageShifts) {
		return ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetWorkShift(ctx, shiftID)
	if err != nil {
		return err
	}
	if shift.Status != enum.ShiftStatusOpen {
		return ErrShiftNotOpen
	}
	orders, err := store.ListOrdersByShift(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("list shift orders: %w", err)
	}
	if len(orders) > 0 {
		return ErrShiftHasOrders
	}
	if err := store.DeleteWorkShift(ctx, shiftID); err != nil {
		return fmt.Errorf("delete work shift: %w", err)
	}
	return tx.Commit(ctx)
}

// shiftGross returns the shift's gross sales, honoring a manager-set override.
func shiftGross(ctx context.Context, store ShiftStore, shift database.WorkShift) (decimal.Decimal, bool, error) {
	if shift.CustomGrossAmount.Valid {
		return database.NumericToDecimal(shift.CustomGrossAmount), true, nil
	}
	sum, err := store.GetShiftGrossSales(ctx, shift.ID)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get gross sales: %w", err)
	}
	return database.NumericToDecimal(sum), false, nil
}
